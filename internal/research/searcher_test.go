package research

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"intelbrief/backend/internal/brave"
)

type stubSearchTool struct {
	mu        sync.Mutex
	calls     []string
	freshness []string
	active    int
	maxActive int
	results   map[string][]brave.SearchResult
	errs      map[string]error
}

func (s *stubSearchTool) Search(_ context.Context, query string, _ int, freshness string) ([]brave.SearchResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.freshness = append(s.freshness, freshness)
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()

	if err, ok := s.errs[query]; ok {
		return nil, err
	}
	return s.results[query], nil
}

func scopeWithQueries(timeframe string, queries ...string) Scope {
	scope := Scope{Kind: ScopeCompany, Topic: "Acme Corp", Timeframe: timeframe}
	for _, q := range queries {
		scope.Searches = append(scope.Searches, PlannedQuery{Query: q, Reason: "test"})
	}
	return scope
}

func TestSearchAllMergesAndDedupes(t *testing.T) {
	tool := &stubSearchTool{
		results: map[string][]brave.SearchResult{
			"q1": {
				{URL: "https://www.reuters.com/a", Title: "A"},
				{URL: "https://www.reuters.com/b", Title: "B"},
			},
			"q2": {
				{URL: "https://www.reuters.com/a/#frag", Title: "A again"},
				{URL: "https://example.com/c", Title: "C"},
			},
		},
	}
	searcher := NewSearcher(tool, 8, 5)

	merged, failed, err := searcher.SearchAll(context.Background(), scopeWithQueries("past 3 months", "q1", "q2"))
	if err != nil {
		t.Fatalf("SearchAll returned error: %v", err)
	}
	if failed != 0 {
		t.Fatalf("expected no failed queries, got %d", failed)
	}
	if len(merged) != 3 {
		t.Fatalf("expected 3 deduplicated results, got %d", len(merged))
	}
}

func TestSearchAllCountsFailedQueries(t *testing.T) {
	tool := &stubSearchTool{
		results: map[string][]brave.SearchResult{
			"ok": {{URL: "https://example.com/a", Title: "A"}},
		},
		errs: map[string]error{
			"boom": errors.New("upstream 500"),
		},
	}
	searcher := NewSearcher(tool, 8, 5)

	merged, failed, err := searcher.SearchAll(context.Background(), scopeWithQueries("", "ok", "boom"))
	if err != nil {
		t.Fatalf("SearchAll returned error: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed query, got %d", failed)
	}
	if len(merged) != 1 {
		t.Fatalf("expected surviving query results, got %d", len(merged))
	}
}

func TestSearchAllRespectsConcurrencyLimit(t *testing.T) {
	tool := &stubSearchTool{results: map[string][]brave.SearchResult{}}
	searcher := NewSearcher(tool, 8, 2)

	_, _, err := searcher.SearchAll(context.Background(), scopeWithQueries("", "a", "b", "c", "d", "e", "f"))
	if err != nil {
		t.Fatalf("SearchAll returned error: %v", err)
	}
	if tool.maxActive > 2 {
		t.Fatalf("expected at most 2 concurrent searches, observed %d", tool.maxActive)
	}
	if len(tool.calls) != 6 {
		t.Fatalf("expected all 6 queries executed, got %d", len(tool.calls))
	}
}

func TestSearchAllRequiresTool(t *testing.T) {
	searcher := NewSearcher(nil, 8, 5)
	_, _, err := searcher.SearchAll(context.Background(), scopeWithQueries("", "q"))
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageSearcher {
		t.Fatalf("expected searcher StageError, got %v", err)
	}
}

func TestFreshnessForTimeframe(t *testing.T) {
	cases := []struct {
		timeframe string
		want      string
	}{
		{"past 24 hours", brave.FreshnessYear},
		{"past 1 day", brave.FreshnessDay},
		{"past week", brave.FreshnessYear},
		{"past 1 week", brave.FreshnessWeek},
		{"past 3 weeks", brave.FreshnessMonth},
		{"past 1 month", brave.FreshnessMonth},
		{"past 6 months", brave.FreshnessYear},
		{"", brave.FreshnessYear},
	}
	for _, tc := range cases {
		if got := freshnessForTimeframe(tc.timeframe); got != tc.want {
			t.Fatalf("freshnessForTimeframe(%q) = %q, want %q", tc.timeframe, got, tc.want)
		}
	}
}
