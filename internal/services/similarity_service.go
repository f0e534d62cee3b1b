package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/bugbase/bugbase/internal/database"
	"github.com/bugbase/bugbase/internal/domain"
	"github.com/bugbase/bugbase/internal/llm"
)

// Similarity score thresholds for the labels shown to users
const (
	LikelyDuplicateThreshold = 0.8
	SimilarThreshold         = 0.6
)

// SimilarityFilters optionally restrict candidates before ranking.
// They are combined into the WHERE clause, so the k-limit applies after
// filtering, never before.
type SimilarityFilters struct {
	Severity *database.Severity
	Area     *database.Area
	Status   *database.BugStatus
}

// Neighbor is one similarity search hit. Score is 1 - cosine distance,
// clamped to [0,1]. Neighbors are transient and never persisted.
type Neighbor struct {
	Bug      database.Bug
	Distance float64
	Score    float64
}

// Label returns the human-readable relation for this neighbor's score
func (n Neighbor) Label() string {
	return SimilarityLabel(n.Score)
}

// SimilarityLabel maps a score to the reference labeling scheme
func SimilarityLabel(score float64) string {
	switch {
	case score >= LikelyDuplicateThreshold:
		return "Likely duplicate"
	case score >= SimilarThreshold:
		return "Similar"
	default:
		return "Related"
	}
}

// SimilarityService performs nearest-neighbor queries over the persisted
// embedding column. Bugs without an embedding are excluded from candidacy
// entirely: they cannot be found as similar, though they can still search
// once their embedding is computed on demand.
type SimilarityService struct {
	db       *gorm.DB
	embedder EmbeddingProvider
}

// NewSimilarityService creates a new similarity service
func NewSimilarityService(db *gorm.DB, embedder EmbeddingProvider) *SimilarityService {
	return &SimilarityService{db: db, embedder: embedder}
}

// NearestNeighbors returns up to k bugs ordered by ascending cosine distance
// to the query vector. On PostgreSQL the ranking happens in the database via
// the pgvector <=> operator; on other dialects candidates are ranked
// in-process.
func (s *SimilarityService) NearestNeighbors(ctx context.Context, query database.Vector, excludeID string, filters SimilarityFilters, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, domain.NewValidationError("k must be positive, got %d", k)
	}

	if s.db.Dialector.Name() == "postgres" {
		return s.nearestNeighborsPostgres(ctx, query, excludeID, filters, k)
	}
	return s.nearestNeighborsPortable(ctx, query, excludeID, filters, k)
}

// neighborRow is the scan target for the raw pgvector query
type neighborRow struct {
	ID                string
	Title             string
	Description       string
	Severity          *database.Severity
	Area              *database.Area
	SuggestedSeverity *database.Severity
	SuggestedArea     *database.Area
	Status            database.BugStatus
	CreatedByID       string
	Distance          float64
}

func (s *SimilarityService) nearestNeighborsPostgres(ctx context.Context, query database.Vector, excludeID string, filters SimilarityFilters, k int) ([]Neighbor, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT b.id, b.title, b.description, b.severity, b.area,
		b.suggested_severity, b.suggested_area, b.status, b.created_by_id,
		(b.embedding <=> ?::vector) AS distance
		FROM bugs b WHERE b.embedding IS NOT NULL`)
	args := []interface{}{query.String()}

	if excludeID != "" {
		sb.WriteString(" AND b.id <> ?")
		args = append(args, excludeID)
	}
	if filters.Severity != nil {
		sb.WriteString(" AND b.severity = ?")
		args = append(args, *filters.Severity)
	}
	if filters.Area != nil {
		sb.WriteString(" AND b.area = ?")
		args = append(args, *filters.Area)
	}
	if filters.Status != nil {
		sb.WriteString(" AND b.status = ?")
		args = append(args, *filters.Status)
	}
	sb.WriteString(" ORDER BY distance LIMIT ?")
	args = append(args, k)

	var rows []neighborRow
	if err := s.db.WithContext(ctx).Raw(sb.String(), args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	neighbors := make([]Neighbor, len(rows))
	for i, row := range rows {
		neighbors[i] = Neighbor{
			Bug: database.Bug{
				ID:                row.ID,
				Title:             row.Title,
				Description:       row.Description,
				Severity:          row.Severity,
				Area:              row.Area,
				SuggestedSeverity: row.SuggestedSeverity,
				SuggestedArea:     row.SuggestedArea,
				Status:            row.Status,
				CreatedByID:       row.CreatedByID,
			},
			Distance: row.Distance,
			Score:    database.SimilarityScore(row.Distance),
		}
	}
	return neighbors, nil
}

func (s *SimilarityService) nearestNeighborsPortable(ctx context.Context, query database.Vector, excludeID string, filters SimilarityFilters, k int) ([]Neighbor, error) {
	q := s.db.WithContext(ctx).Where("embedding IS NOT NULL")
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if filters.Severity != nil {
		q = q.Where("severity = ?", *filters.Severity)
	}
	if filters.Area != nil {
		q = q.Where("area = ?", *filters.Area)
	}
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}

	var candidates []database.Bug
	if err := q.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(candidates))
	for _, bug := range candidates {
		if bug.Embedding == nil {
			continue
		}
		dist := database.CosineDistance(*bug.Embedding, query)
		bug.Embedding = nil // Not needed by callers, drop the payload
		neighbors = append(neighbors, Neighbor{
			Bug:      bug,
			Distance: dist,
			Score:    database.SimilarityScore(dist),
		})
	}

	// Stable sort keeps the database scan order for equal distances
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

// SearchByText embeds a natural-language query and runs a nearest-neighbor
// search. There is no fallback here: a provider failure fails the search.
func (s *SimilarityService) SearchByText(ctx context.Context, query string, filters SimilarityFilters, k int) ([]Neighbor, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewValidationError("search query must not be empty")
	}
	if s.embedder == nil {
		return nil, domain.NewProviderError("embedding", errors.New("no embedding provider configured"))
	}

	vec, err := s.embedder.Generate(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.NearestNeighbors(ctx, vec, "", filters, k)
}

// FindSimilarToBug returns the nearest neighbors of an existing bug.
// If the bug has no stored embedding yet, one is computed on demand and
// persisted, so the bug becomes findable by future searches too. A provider
// failure here is fatal since the caller explicitly asked for similarity.
func (s *SimilarityService) FindSimilarToBug(ctx context.Context, bugID string, k int) ([]Neighbor, error) {
	var bug database.Bug
	if err := s.db.WithContext(ctx).First(&bug, "id = ?", bugID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("bug", bugID)
		}
		return nil, err
	}

	if bug.Embedding == nil {
		if s.embedder == nil {
			return nil, domain.NewProviderError("embedding", errors.New("no embedding provider configured"))
		}
		vec, err := s.embedder.Generate(ctx, llm.FormatBugText(bug.Title, bug.Description))
		if err != nil {
			return nil, err
		}
		if err := s.db.WithContext(ctx).Model(&database.Bug{}).
			Where("id = ?", bug.ID).
			Update("embedding", &vec).Error; err != nil {
			return nil, fmt.Errorf("failed to store embedding: %w", err)
		}
		bug.Embedding = &vec
	}

	return s.NearestNeighbors(ctx, *bug.Embedding, bug.ID, SimilarityFilters{}, k)
}
