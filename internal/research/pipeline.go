package research

import (
	"context"
	"fmt"
	"time"

	"intelbrief/backend/internal/brave"
	"intelbrief/backend/internal/groq"
)

const minRankedForConfidence = 2

// ProgressFunc receives stage transitions while a brief is being built.
// A nil func disables reporting.
type ProgressFunc func(Progress)

// Pipeline runs the full planner, searcher, ranker, writer sequence for
// one question. Each stage failure stops the run and surfaces as a
// *StageError naming the stage.
type Pipeline struct {
	planner  Planner
	searcher Searcher
	writer   Writer
	cfg      Config
	now      func() time.Time
}

func NewPipeline(responder Responder, tool SearchTool, cfg Config) *Pipeline {
	if cfg.MaxSources < 1 {
		cfg.MaxSources = 3
	}
	if cfg.MaxBodyWords < 1 {
		cfg.MaxBodyWords = defaultMaxBodyWords
	}
	return &Pipeline{
		planner:  NewPlanner(responder, cfg.PlannerModel, cfg.MaxQueries),
		searcher: NewSearcher(tool, cfg.ResultsPerQuery, cfg.MaxConcurrency),
		writer:   NewWriter(responder, cfg.WriterModel, cfg.MaxBodyWords),
		cfg:      cfg,
		now:      time.Now,
	}
}

func (p *Pipeline) Run(ctx context.Context, question string, report ProgressFunc) (Result, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	emit := func(progress Progress) {
		if report != nil {
			report(progress)
		}
	}

	emit(Progress{Phase: PhasePlanning, Message: "Resolving topic and planning searches"})
	scope, usage, err := p.planner.Plan(ctx, question, false)
	if err != nil {
		return Result{}, err
	}

	result := Result{Scope: scope, Usage: usage}

	emit(Progress{
		Phase:   PhaseSearching,
		Message: fmt.Sprintf("Running %d searches", len(scope.Searches)),
		Queries: len(scope.Searches),
	})
	merged, failed, err := p.searcher.SearchAll(ctx, scope)
	if err != nil {
		return Result{}, err
	}
	result.Results = merged
	result.FailedQueries = failed

	emit(Progress{
		Phase:         PhaseRanking,
		Message:       fmt.Sprintf("Scoring %d results", len(merged)),
		Queries:       len(scope.Searches),
		FailedQueries: failed,
		Results:       len(merged),
	})
	ranked, diversity := Rank(merged, scope, p.now(), p.cfg.MaxSources)

	// A thin result set gets one tightened re-plan before writing.
	if len(ranked) < minRankedForConfidence {
		emit(Progress{Phase: PhaseTightening, Message: "Few usable sources, tightening the search plan"})
		tightScope, tightUsage, err := p.planner.Plan(ctx, question, true)
		result.Usage = addUsage(result.Usage, tightUsage)
		if err == nil {
			tightMerged, tightFailed, searchErr := p.searcher.SearchAll(ctx, tightScope)
			if searchErr == nil && len(tightMerged) > 0 {
				result.Tightened = true
				result.Scope = tightScope
				result.Results = mergeResults(merged, tightMerged)
				result.FailedQueries = failed + tightFailed
				scope = tightScope
				ranked, diversity = Rank(result.Results, scope, p.now(), p.cfg.MaxSources)
			}
		}
	}
	result.Ranked = ranked

	emit(Progress{
		Phase:         PhaseWriting,
		Message:       fmt.Sprintf("Writing brief from %d sources", len(ranked)),
		Queries:       len(result.Scope.Searches),
		FailedQueries: result.FailedQueries,
		Results:       len(result.Results),
		Sources:       len(ranked),
	})
	brief, writeUsage, err := p.writer.Write(ctx, scope, ranked, diversity)
	result.Usage = addUsage(result.Usage, writeUsage)
	if err != nil {
		return Result{}, err
	}
	result.Brief = brief

	emit(Progress{
		Phase:   PhaseFinalizing,
		Message: "Brief ready",
		Sources: len(brief.Sources),
	})
	return result, nil
}

func addUsage(a, b groq.Usage) groq.Usage {
	return groq.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

func mergeResults(first, second []brave.SearchResult) []brave.SearchResult {
	merged := make([]brave.SearchResult, 0, len(first)+len(second))
	seen := make(map[string]struct{}, len(first)+len(second))
	for _, item := range append(append([]brave.SearchResult{}, first...), second...) {
		key := canonicalOrRawURL(item.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, item)
	}
	return merged
}
