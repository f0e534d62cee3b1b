package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
)

// Timeframe selects the window for trend analysis
type Timeframe string

const (
	TimeframeLastDay   Timeframe = "last_day"
	TimeframeLastWeek  Timeframe = "last_week"
	TimeframeLastMonth Timeframe = "last_month"
	TimeframeAllTime   Timeframe = "all_time"
)

// cutoff returns the start of the window, or zero time for all_time
func (t Timeframe) cutoff(now time.Time) (time.Time, error) {
	switch t {
	case TimeframeLastDay:
		return now.Add(-24 * time.Hour), nil
	case TimeframeLastWeek:
		return now.Add(-7 * 24 * time.Hour), nil
	case TimeframeLastMonth:
		return now.Add(-30 * 24 * time.Hour), nil
	case TimeframeAllTime, "":
		return time.Time{}, nil
	default:
		return time.Time{}, domain.NewValidationError("invalid timeframe %q", string(t))
	}
}

// DistributionEntry is one bucket of a severity/area/status breakdown
type DistributionEntry struct {
	Key        string  `json:"key"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CriticalBug is one entry in the critical-open-bugs insight list
type CriticalBug struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Severity *database.Severity `json:"severity"`
	Area     *database.Area     `json:"area"`
	Status   database.BugStatus `json:"status"`
}

// TrendsReport summarizes bug distribution over a time window
type TrendsReport struct {
	TotalBugs            int64               `json:"total_bugs"`
	Timeframe            Timeframe           `json:"timeframe"`
	FocusArea            string              `json:"focus_area"`
	SeverityDistribution []DistributionEntry `json:"severity_distribution"`
	AreaDistribution     []DistributionEntry `json:"area_distribution"`
	StatusDistribution   []DistributionEntry `json:"status_distribution"`
	CriticalOpenBugs     []CriticalBug       `json:"critical_open_bugs"`
}

// TrendsService analyzes bug patterns across the database
type TrendsService struct {
	db *gorm.DB

	// now is replaceable in tests
	now func() time.Time
}

// NewTrendsService creates a new trends service
func NewTrendsService(db *gorm.DB) *TrendsService {
	return &TrendsService{db: db, now: time.Now}
}

// Analyze computes severity/area/status distributions and surfaces the most
// recent critical open bugs within the window.
func (s *TrendsService) Analyze(ctx context.Context, timeframe Timeframe, focusArea *database.Area) (*TrendsReport, error) {
	cutoff, err := timeframe.cutoff(s.now())
	if err != nil {
		return nil, err
	}
	if timeframe == "" {
		timeframe = TimeframeAllTime
	}

	scoped := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&database.Bug{})
		if !cutoff.IsZero() {
			q = q.Where("created_at >= ?", cutoff)
		}
		if focusArea != nil {
			q = q.Where("area = ?", *focusArea)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count bugs: %w", err)
	}

	severityDist, err := s.distribution(scoped(), "severity", total)
	if err != nil {
		return nil, err
	}
	areaDist, err := s.distribution(scoped(), "area", total)
	if err != nil {
		return nil, err
	}
	statusDist, err := s.distribution(scoped(), "status", total)
	if err != nil {
		return nil, err
	}

	var critical []database.Bug
	criticalQuery := scoped().
		Where("severity IN ?", []database.Severity{database.SeverityS0, database.SeverityS1}).
		Where("status IN ?", []database.BugStatus{database.BugStatusOpen, database.BugStatusInProgress}).
		Order("created_at DESC").
		Limit(5)
	if err := criticalQuery.Find(&critical).Error; err != nil {
		return nil, fmt.Errorf("failed to find critical bugs: %w", err)
	}

	report := &TrendsReport{
		TotalBugs:            total,
		Timeframe:            timeframe,
		FocusArea:            "all",
		SeverityDistribution: severityDist,
		AreaDistribution:     areaDist,
		StatusDistribution:   statusDist,
		CriticalOpenBugs:     make([]CriticalBug, len(critical)),
	}
	if focusArea != nil {
		report.FocusArea = string(*focusArea)
	}
	for i, bug := range critical {
		report.CriticalOpenBugs[i] = CriticalBug{
			ID:       bug.ID,
			Title:    bug.Title,
			Severity: bug.Severity,
			Area:     bug.Area,
			Status:   bug.Status,
		}
	}
	return report, nil
}

// distributionRow is the scan target for grouped counts
type distributionRow struct {
	Key   *string
	Count int64
}

func (s *TrendsService) distribution(q *gorm.DB, column string, total int64) ([]DistributionEntry, error) {
	var rows []distributionRow
	err := q.Select(column + " AS key, COUNT(*) AS count").
		Group(column).
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group by %s: %w", column, err)
	}

	entries := make([]DistributionEntry, len(rows))
	for i, row := range rows {
		key := "unassigned"
		if row.Key != nil && *row.Key != "" {
			key = *row.Key
		}
		entry := DistributionEntry{Key: key, Count: row.Count}
		if total > 0 {
			entry.Percentage = float64(row.Count) / float64(total) * 100
		}
		entries[i] = entry
	}
	return entries, nil
}
