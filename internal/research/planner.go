package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"intelbrief/backend/internal/groq"
)

const plannerTemperature = 0.3

// Planner turns a free-text question into a research Scope via one
// JSON-mode model call. Malformed output is a hard validation error for
// the request; there is no fallback plan.
type Planner struct {
	responder  Responder
	model      string
	maxQueries int
}

func NewPlanner(responder Responder, model string, maxQueries int) Planner {
	if maxQueries < 1 {
		maxQueries = 1
	}
	return Planner{responder: responder, model: model, maxQueries: maxQueries}
}

func (p Planner) Plan(ctx context.Context, question string, tighten bool) (Scope, groq.Usage, error) {
	if p.responder == nil {
		return Scope{}, groq.Usage{}, &StageError{Stage: StagePlanner, Err: errors.New("planner responder unavailable")}
	}
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return Scope{}, groq.Usage{}, &StageError{Stage: StagePlanner, Err: errors.New("question is empty")}
	}

	raw, usage, err := p.responder.CompleteJSON(ctx, groq.Request{
		Model:       p.model,
		Temperature: plannerTemperature,
		Messages: []groq.Message{
			{Role: "system", Content: buildPlannerSystemPrompt()},
			{Role: "user", Content: buildPlannerUserPrompt(trimmed, p.maxQueries, tighten)},
		},
	})
	if err != nil {
		return Scope{}, usage, &StageError{Stage: StagePlanner, Err: err}
	}

	scope, err := parseScope(raw, p.maxQueries)
	if err != nil {
		return Scope{}, usage, &StageError{Stage: StagePlanner, Err: err}
	}
	return scope, usage, nil
}

func parseScope(raw string, maxQueries int) (Scope, error) {
	jsonRaw := extractJSONBlock(raw)
	if jsonRaw == "" {
		return Scope{}, errors.New("planner response did not include json")
	}

	decoder := json.NewDecoder(strings.NewReader(jsonRaw))
	decoder.DisallowUnknownFields()

	var scope Scope
	if err := decoder.Decode(&scope); err != nil {
		return Scope{}, fmt.Errorf("decode planner response: %w", err)
	}

	scope.Topic = strings.TrimSpace(scope.Topic)
	if scope.Topic == "" {
		return Scope{}, errors.New("planner resolvedTopic is empty")
	}
	if scope.Kind != ScopeCompany && scope.Kind != ScopeSector {
		return Scope{}, fmt.Errorf("planner scope must be Company or Sector, got %q", scope.Kind)
	}
	scope.Timeframe = strings.TrimSpace(scope.Timeframe)
	scope.IntentTerms = dedupeStrings(scope.IntentTerms)

	scope.Searches = dedupeQueries(scope.Searches)
	if len(scope.Searches) == 0 {
		return Scope{}, errors.New("planner produced no usable queries")
	}
	if maxQueries > 0 && len(scope.Searches) > maxQueries {
		scope.Searches = scope.Searches[:maxQueries]
	}

	return scope, nil
}
