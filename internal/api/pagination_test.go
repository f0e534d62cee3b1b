package api

import (
	"net/http/httptest"
	"testing"
)

func TestParsePaginationDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/bugs", nil)
	p := ParsePagination(r)
	if p.Page != 1 || p.PerPage != 50 {
		t.Errorf("expected defaults page=1 per_page=50, got %+v", p)
	}
	if p.Offset() != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset())
	}
}

func TestParsePaginationExplicit(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/bugs?page=3&per_page=10", nil)
	p := ParsePagination(r)
	if p.Page != 3 || p.PerPage != 10 {
		t.Errorf("unexpected params: %+v", p)
	}
	if p.Offset() != 20 {
		t.Errorf("expected offset 20, got %d", p.Offset())
	}
}

func TestParsePaginationClampsAndIgnoresGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/bugs?page=-1&per_page=5000", nil)
	p := ParsePagination(r)
	if p.Page != 1 {
		t.Errorf("negative page should fall back to 1, got %d", p.Page)
	}
	if p.PerPage != 100 {
		t.Errorf("per_page should clamp to 100, got %d", p.PerPage)
	}

	r = httptest.NewRequest("GET", "/api/bugs?page=abc&per_page=xyz", nil)
	p = ParsePagination(r)
	if p.Page != 1 || p.PerPage != 50 {
		t.Errorf("non-numeric params should use defaults, got %+v", p)
	}
}

func TestTotalPages(t *testing.T) {
	p := PaginationParams{Page: 1, PerPage: 10}
	cases := []struct {
		total int64
		want  int
	}{
		{0, 0},
		{1, 1},
		{10, 1},
		{11, 2},
		{100, 10},
	}
	for _, c := range cases {
		if got := p.TotalPages(c.total); got != c.want {
			t.Errorf("TotalPages(%d): expected %d, got %d", c.total, c.want, got)
		}
	}
}
