package database

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// EmbeddingDim is the fixed dimensionality of stored embeddings.
// It must match the embedding model; vectors from other models or dimensions
// are not comparable.
const EmbeddingDim = 1536

// Vector is an embedding column. On PostgreSQL it maps to the pgvector
// vector(1536) type so cosine distance can be computed in ORDER BY; on other
// dialects it is stored as text. The wire format is a bracketed
// comma-separated decimal list: [0.0123,-0.0456,...]
type Vector []float32

// GormDataType is the generic data type consulted during schema parsing;
// without it GORM treats the slice as a has-many relation.
func (Vector) GormDataType() string {
	return "text"
}

// GormDBDataType picks the column type per dialect
func (Vector) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return fmt.Sprintf("vector(%d)", EmbeddingDim)
	}
	return "text"
}

// Value implements the driver.Valuer interface
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return v.String(), nil
}

// Scan implements the sql.Scanner interface
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}

	var s string
	switch raw := value.(type) {
	case []byte:
		s = string(raw)
	case string:
		s = raw
	default:
		return fmt.Errorf("cannot scan %T into Vector", value)
	}

	parsed, err := ParseVector(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String renders the bracketed comma-separated representation
func (v Vector) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParseVector parses the bracketed comma-separated representation
func ParseVector(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, errors.New("vector must be a bracketed comma-separated list")
	}
	inner := s[1 : len(s)-1]
	if strings.TrimSpace(inner) == "" {
		return Vector{}, nil
	}

	parts := strings.Split(inner, ",")
	vec := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector element at index %d: %w", i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// CosineDistance computes 1 - cosine similarity between two vectors.
// Lower is more similar. The result lies in [0, 2]; a zero vector yields the
// maximum distance since it has no direction to compare.
func CosineDistance(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// SimilarityScore converts a cosine distance to the score exposed to callers,
// clamped to [0, 1]. Cosine distance can exceed 1 for dissimilar vectors;
// negative similarity carries no extra information for ranking duplicates.
func SimilarityScore(distance float64) float64 {
	score := 1 - distance
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
