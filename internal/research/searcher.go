package research

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"intelbrief/backend/internal/brave"
)

// Searcher fans the planned queries out to the search tool with a capped
// level of concurrency, then merges the results deduplicated by canonical
// URL. Individual query failures are counted, not fatal; the only network
// use in the pipeline happens here.
type Searcher struct {
	tool            SearchTool
	resultsPerQuery int
	maxConcurrency  int
}

func NewSearcher(tool SearchTool, resultsPerQuery, maxConcurrency int) Searcher {
	if resultsPerQuery < 1 {
		resultsPerQuery = 5
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return Searcher{tool: tool, resultsPerQuery: resultsPerQuery, maxConcurrency: maxConcurrency}
}

func (s Searcher) SearchAll(ctx context.Context, scope Scope) ([]brave.SearchResult, int, error) {
	if s.tool == nil {
		return nil, 0, &StageError{Stage: StageSearcher, Err: errors.New("search tool unavailable")}
	}
	if len(scope.Searches) == 0 {
		return nil, 0, nil
	}

	freshness := freshnessForTimeframe(scope.Timeframe)

	var mu sync.Mutex
	merged := make([]brave.SearchResult, 0, len(scope.Searches)*s.resultsPerQuery)
	seen := make(map[string]struct{}, len(scope.Searches)*s.resultsPerQuery)
	failed := 0

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.maxConcurrency)

	for _, planned := range scope.Searches {
		query := planned.Query
		group.Go(func() error {
			results, err := s.tool.Search(groupCtx, query, s.resultsPerQuery, freshness)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// A single failed query does not sink the request,
				// unless the whole run was cancelled.
				if groupCtx.Err() != nil {
					return groupCtx.Err()
				}
				failed++
				return nil
			}
			for _, item := range results {
				key := canonicalOrRawURL(item.URL)
				if key == "" {
					continue
				}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				merged = append(merged, item)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, failed, &StageError{Stage: StageSearcher, Err: err}
	}
	return merged, failed, nil
}

// freshnessForTimeframe maps the planner's plain-language window onto the
// search tool's freshness buckets.
func freshnessForTimeframe(timeframe string) string {
	days := timeframeDays(timeframe)
	switch {
	case days == 0:
		return brave.FreshnessYear
	case days <= 1:
		return brave.FreshnessDay
	case days <= 7:
		return brave.FreshnessWeek
	case days <= 31:
		return brave.FreshnessMonth
	default:
		return brave.FreshnessYear
	}
}
