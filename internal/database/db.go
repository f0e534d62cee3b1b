package database

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return nil
}

// AutoMigrate runs database migrations
func AutoMigrate() error {
	log.Println("Running database migrations...")

	// The embedding column needs the pgvector extension before the bugs
	// table can be created.
	if DB.Dialector.Name() == "postgres" {
		if err := DB.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("failed to enable pgvector extension: %w", err)
		}
	}

	err := DB.AutoMigrate(
		&User{},
		&Bug{},
		&Comment{},
		&ChatSession{},
		&ChatMessage{},
		&BugMerge{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// SeedUser is one user entry in the seed fixtures file
type SeedUser struct {
	Email string `yaml:"email"`
	Name  string `yaml:"name"`
}

// SeedBug is one bug entry in the seed fixtures file
type SeedBug struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
	Area        string `yaml:"area"`
	Status      string `yaml:"status"`
	ReporterIdx int    `yaml:"reporter"` // index into the users list
}

// SeedData is the layout of the optional seed fixtures YAML file
type SeedData struct {
	Users []SeedUser `yaml:"users"`
	Bugs  []SeedBug  `yaml:"bugs"`
}

// SeedFromFile loads users and sample bugs from a YAML fixtures file.
// Seeding is idempotent: it does nothing when users already exist.
// Seeded bugs carry no embedding; they get one on demand via find-similar.
func SeedFromFile(db *gorm.DB, path string) error {
	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil // Already seeded
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}

	users := make([]User, len(data.Users))
	for i, su := range data.Users {
		users[i] = User{Email: su.Email, Name: su.Name}
		if err := db.Create(&users[i]).Error; err != nil {
			return fmt.Errorf("failed to seed user %s: %w", su.Email, err)
		}
	}

	for _, sb := range data.Bugs {
		if sb.ReporterIdx < 0 || sb.ReporterIdx >= len(users) {
			return fmt.Errorf("seed bug %q references unknown reporter index %d", sb.Title, sb.ReporterIdx)
		}
		bug := Bug{
			Title:       sb.Title,
			Description: sb.Description,
			CreatedByID: users[sb.ReporterIdx].ID,
		}
		if sb.Severity != "" {
			sev := Severity(sb.Severity)
			bug.Severity = &sev
		}
		if sb.Area != "" {
			area := Area(sb.Area)
			bug.Area = &area
		}
		if sb.Status != "" {
			bug.Status = BugStatus(sb.Status)
		}
		if err := db.Create(&bug).Error; err != nil {
			return fmt.Errorf("failed to seed bug %q: %w", sb.Title, err)
		}
	}

	log.Printf("Seeded %d users and %d bugs from %s", len(data.Users), len(data.Bugs), path)
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the database connection
func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
