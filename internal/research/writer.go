package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"intelbrief/backend/internal/groq"
)

const (
	writerTemperature   = 0.34
	defaultMaxBodyWords = 220

	evidenceCaveat = "Limited official/independent source mix in the recent window; interpret with caution."
)

var sourceLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)(?:\s*[—–-]+\s*([^\n]*))?`)

// Writer synthesizes the ranked sources into a short cited brief. Every
// URL in the Sources section must come from the ranked set; anything else
// is a validation error, not a warning.
type Writer struct {
	responder    Responder
	model        string
	maxBodyWords int
}

func NewWriter(responder Responder, model string, maxBodyWords int) Writer {
	if maxBodyWords < 1 {
		maxBodyWords = defaultMaxBodyWords
	}
	return Writer{responder: responder, model: model, maxBodyWords: maxBodyWords}
}

func (w Writer) Write(ctx context.Context, scope Scope, ranked []RankedResult, diversity Diversity) (Brief, groq.Usage, error) {
	if len(ranked) == 0 {
		return insufficientEvidenceBrief(scope), groq.Usage{}, nil
	}
	if w.responder == nil {
		return Brief{}, groq.Usage{}, &StageError{Stage: StageWriter, Err: errors.New("writer responder unavailable")}
	}

	raw, usage, err := w.responder.CompleteJSON(ctx, groq.Request{
		Model:       w.model,
		Temperature: writerTemperature,
		Messages: []groq.Message{
			{Role: "system", Content: buildWriterSystemPrompt(w.maxBodyWords)},
			{Role: "user", Content: buildWriterUserPrompt(scope, ranked, diversity)},
		},
	})
	if err != nil {
		return Brief{}, usage, &StageError{Stage: StageWriter, Err: err}
	}

	markdown := parseWriterMarkdown(raw)
	if strings.TrimSpace(markdown) == "" {
		return Brief{}, usage, &StageError{Stage: StageWriter, Err: errors.New("writer produced empty markdown")}
	}

	brief, err := finalizeBrief(markdown, ranked, diversity, w.maxBodyWords)
	if err != nil {
		return Brief{}, usage, &StageError{Stage: StageWriter, Err: err}
	}
	return brief, usage, nil
}

// parseWriterMarkdown expects {"markdown":"..."} but tolerates a model
// that answers in plain markdown: the single-field schema makes the raw
// text an acceptable fallback.
func parseWriterMarkdown(raw string) string {
	jsonRaw := extractJSONBlock(raw)
	if jsonRaw != "" {
		decoder := json.NewDecoder(strings.NewReader(jsonRaw))
		decoder.DisallowUnknownFields()
		var payload struct {
			Markdown string `json:"markdown"`
		}
		if err := decoder.Decode(&payload); err == nil && strings.TrimSpace(payload.Markdown) != "" {
			return payload.Markdown
		}
	}
	return strings.TrimSpace(raw)
}

func finalizeBrief(markdown string, ranked []RankedResult, diversity Diversity, maxBodyWords int) (Brief, error) {
	allowed := make(map[string]Source, len(ranked))
	for _, item := range ranked {
		date := ""
		if item.PublishedAt != nil {
			date = item.PublishedAt.Format("2006-01-02")
		}
		allowed[canonicalOrRawURL(item.URL)] = Source{
			Title: strings.TrimSpace(item.Title),
			URL:   item.URL,
			Date:  date,
		}
	}

	body, sourcesSection := splitSourcesSection(markdown)

	sources := make([]Source, 0, len(ranked))
	seen := make(map[string]struct{}, len(ranked))
	for _, match := range sourceLinkPattern.FindAllStringSubmatch(sourcesSection, -1) {
		title := strings.TrimSpace(match[1])
		rawURL := strings.TrimSpace(match[2])
		key := canonicalOrRawURL(rawURL)
		known, ok := allowed[key]
		if !ok {
			return Brief{}, fmt.Errorf("brief cites url not present in ranked sources: %s", rawURL)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		date := strings.TrimSpace(match[3])
		if date == "" {
			date = known.Date
		}
		sources = append(sources, Source{Title: title, URL: known.URL, Date: date})
	}

	// Links inside the body would bypass the subset check above.
	for _, match := range sourceLinkPattern.FindAllStringSubmatch(body, -1) {
		if _, ok := allowed[canonicalOrRawURL(strings.TrimSpace(match[2]))]; !ok {
			return Brief{}, fmt.Errorf("brief cites url not present in ranked sources: %s", strings.TrimSpace(match[2]))
		}
	}

	note := ""
	caveat := ""
	if diversity.Low() {
		note = evidenceCaveat
		if !strings.Contains(strings.ToLower(body), "interpret with caution") {
			caveat = "_" + evidenceCaveat + "_"
		}
	}

	// The caveat counts against the word bound, so the clamp budget
	// shrinks when one will be appended.
	limit := maxBodyWords
	if caveat != "" {
		limit -= wordCount(caveat)
		if limit < 1 {
			limit = 1
		}
	}
	if wordCount(body) > limit {
		body = clampWords(body, limit)
	}
	if caveat != "" {
		body = strings.TrimRight(body, "\n") + "\n\n" + caveat
	}

	final := strings.TrimRight(body, "\n")
	if len(sources) > 0 {
		var b strings.Builder
		b.WriteString(final)
		b.WriteString("\n\n## Sources\n")
		for _, source := range sources {
			b.WriteString("- [")
			b.WriteString(source.Title)
			b.WriteString("](")
			b.WriteString(source.URL)
			b.WriteString(")")
			if source.Date != "" {
				b.WriteString(" — ")
				b.WriteString(source.Date)
			}
			b.WriteString("\n")
		}
		final = strings.TrimRight(b.String(), "\n")
	}

	return Brief{
		Markdown:     final,
		Body:         strings.TrimSpace(stripEvidenceNote(body)),
		Sources:      sources,
		EvidenceNote: note,
	}, nil
}

func splitSourcesSection(markdown string) (body, sources string) {
	lower := strings.ToLower(markdown)
	idx := strings.Index(lower, "## sources")
	if idx == -1 {
		return markdown, ""
	}
	return markdown[:idx], markdown[idx:]
}

func stripEvidenceNote(body string) string {
	return strings.ReplaceAll(body, "_"+evidenceCaveat+"_", "")
}

func insufficientEvidenceBrief(scope Scope) Brief {
	topic := strings.TrimSpace(scope.Topic)
	if topic == "" {
		topic = "the requested topic"
	}
	body := fmt.Sprintf(
		"# Intelligence Brief: %s\n\nNo recent credible sources were found for %s within the requested window. "+
			"This brief is low-confidence: rather than guessing, no claims are made. "+
			"Try a narrower question or a wider timeframe.",
		topic, topic,
	)
	return Brief{
		Markdown:     body,
		Body:         body,
		Sources:      []Source{},
		EvidenceNote: "Insufficient recent evidence; no sources cited.",
	}
}
