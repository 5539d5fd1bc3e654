package research

import (
	"context"
	"fmt"
	"time"

	"intelbrief/backend/internal/brave"
	"intelbrief/backend/internal/config"
	"intelbrief/backend/internal/groq"
)

type Stage string

const (
	StagePlanner  Stage = "planner"
	StageSearcher Stage = "searcher"
	StageRanker   Stage = "ranker"
	StageWriter   Stage = "writer"
)

// StageError marks a schema-validation or hard failure inside one pipeline
// stage. It is a terminal error for the request; there is no cross-stage
// retry.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type ScopeKind string

const (
	ScopeCompany ScopeKind = "Company"
	ScopeSector  ScopeKind = "Sector"
)

type PlannedQuery struct {
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

// Scope is the planner's structured reading of the user question. It is
// produced once per request and never mutated afterwards.
type Scope struct {
	Kind        ScopeKind      `json:"scope"`
	Topic       string         `json:"resolvedTopic"`
	Timeframe   string         `json:"timeframe"`
	IntentTerms []string       `json:"intentTerms"`
	Searches    []PlannedQuery `json:"searches"`
}

type DomainTier string

const (
	TierOfficial DomainTier = "official"
	TierTrusted  DomainTier = "trusted"
	TierNeutral  DomainTier = "neutral"
	TierLow      DomainTier = "low"
)

type RankedResult struct {
	brave.SearchResult
	Score float64
	Tier  DomainTier
}

// Diversity flags computed over the final ranked set, used by the writer
// to decide whether an evidence-quality caveat is warranted.
type Diversity struct {
	HasOfficial    bool
	HasIndependent bool
	SingleDomain   bool
}

func (d Diversity) Low() bool {
	return !d.HasOfficial || !d.HasIndependent || d.SingleDomain
}

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
}

type Brief struct {
	Markdown     string   `json:"markdown"`
	Body         string   `json:"body"`
	Sources      []Source `json:"sources"`
	EvidenceNote string   `json:"evidenceNote,omitempty"`
}

type Phase string

const (
	PhasePlanning   Phase = "planning"
	PhaseSearching  Phase = "searching"
	PhaseRanking    Phase = "ranking"
	PhaseTightening Phase = "tightening"
	PhaseWriting    Phase = "writing"
	PhaseFinalizing Phase = "finalizing"
)

type Progress struct {
	Phase         Phase  `json:"phase"`
	Message       string `json:"message,omitempty"`
	Queries       int    `json:"queries,omitempty"`
	FailedQueries int    `json:"failedQueries,omitempty"`
	Results       int    `json:"results,omitempty"`
	Sources       int    `json:"sources,omitempty"`
}

type Result struct {
	Scope         Scope
	Results       []brave.SearchResult
	Ranked        []RankedResult
	Brief         Brief
	Tightened     bool
	FailedQueries int
	Usage         groq.Usage
}

// Responder is the model surface the planner and writer talk to. Satisfied
// by groq.Client.
type Responder interface {
	CompleteJSON(ctx context.Context, req groq.Request) (string, groq.Usage, error)
}

// SearchTool is the web-search surface. Satisfied by brave.Client.
type SearchTool interface {
	Search(ctx context.Context, query string, count int, freshness string) ([]brave.SearchResult, error)
}

type Config struct {
	PlannerModel    string
	WriterModel     string
	MaxQueries      int
	MaxConcurrency  int
	MaxSources      int
	ResultsPerQuery int
	MaxBodyWords    int
	RecencyWindow   time.Duration
	Timeout         time.Duration
}

// ConfigFrom maps the service configuration onto pipeline settings.
func ConfigFrom(cfg config.Config) Config {
	return Config{
		PlannerModel:    cfg.PlannerModel,
		WriterModel:     cfg.WriterModel,
		MaxQueries:      cfg.MaxQueries,
		MaxConcurrency:  cfg.MaxConcurrency,
		MaxSources:      cfg.MaxSources,
		ResultsPerQuery: cfg.ResultsPerQuery,
		MaxBodyWords:    defaultMaxBodyWords,
		Timeout:         time.Duration(cfg.BriefTimeoutSeconds) * time.Second,
	}
}
