package database

import (
	"math"
	"testing"
)

func TestVectorStringRoundTrip(t *testing.T) {
	vec := Vector{0.25, -1.5, 0, 3.75}
	s := vec.String()

	parsed, err := ParseVector(s)
	if err != nil {
		t.Fatalf("ParseVector(%q) failed: %v", s, err)
	}
	if len(parsed) != len(vec) {
		t.Fatalf("expected %d elements, got %d", len(vec), len(parsed))
	}
	for i := range vec {
		if parsed[i] != vec[i] {
			t.Errorf("element %d: expected %v, got %v", i, vec[i], parsed[i])
		}
	}
}

func TestParseVectorRejectsMalformed(t *testing.T) {
	cases := []string{"", "1,2,3", "[1,2", "1,2]", "[1,x,3]"}
	for _, c := range cases {
		if _, err := ParseVector(c); err == nil {
			t.Errorf("ParseVector(%q): expected error, got nil", c)
		}
	}
}

func TestParseVectorEmpty(t *testing.T) {
	vec, err := ParseVector("[]")
	if err != nil {
		t.Fatalf("ParseVector(\"[]\") failed: %v", err)
	}
	if len(vec) != 0 {
		t.Errorf("expected empty vector, got %d elements", len(vec))
	}
}

func TestVectorScanNil(t *testing.T) {
	v := Vector{1, 2}
	if err := v.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil vector after scanning NULL, got %v", v)
	}
}

func TestCosineDistance(t *testing.T) {
	a := Vector{1, 0, 0}
	b := Vector{0, 1, 0}
	c := Vector{1, 0, 0}
	d := Vector{-1, 0, 0}

	if dist := CosineDistance(a, c); math.Abs(dist) > 1e-9 {
		t.Errorf("identical vectors: expected distance 0, got %v", dist)
	}
	if dist := CosineDistance(a, b); math.Abs(dist-1) > 1e-9 {
		t.Errorf("orthogonal vectors: expected distance 1, got %v", dist)
	}
	if dist := CosineDistance(a, d); math.Abs(dist-2) > 1e-9 {
		t.Errorf("opposite vectors: expected distance 2, got %v", dist)
	}
}

func TestCosineDistanceDegenerateInputs(t *testing.T) {
	if dist := CosineDistance(Vector{1, 0}, Vector{1, 0, 0}); dist != 2 {
		t.Errorf("mismatched lengths: expected max distance 2, got %v", dist)
	}
	if dist := CosineDistance(Vector{0, 0}, Vector{1, 0}); dist != 2 {
		t.Errorf("zero vector: expected max distance 2, got %v", dist)
	}
}

func TestSimilarityScoreClamped(t *testing.T) {
	cases := []struct {
		distance float64
		expected float64
	}{
		{0, 1},
		{0.3, 0.7},
		{1, 0},
		{1.5, 0},  // Negative similarity clamps to 0
		{-0.1, 1}, // Float noise below 0 clamps to 1
	}
	for _, c := range cases {
		if got := SimilarityScore(c.distance); math.Abs(got-c.expected) > 1e-9 {
			t.Errorf("SimilarityScore(%v): expected %v, got %v", c.distance, c.expected, got)
		}
	}
}
