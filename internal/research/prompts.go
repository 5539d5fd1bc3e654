package research

import (
	"fmt"
	"strings"
	"time"
)

func buildPlannerSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a web research planner for company and sector intelligence briefs. Respond with strict JSON only.\n")
	b.WriteString("Schema: {\"scope\":\"Company|Sector\",\"resolvedTopic\":string,\"timeframe\":string,\"intentTerms\":string[],\"searches\":[{\"query\":string,\"reason\":string}]}\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Infer scope from the question: a single company or a sector.\n")
	b.WriteString("- Disambiguate homonyms: pick ONE most likely entity and add negative keywords to exclude others.\n")
	b.WriteString("- Detect 1-3 intent facets (launch, layoffs, earnings, pricing, partnerships, regulation, incidents) and list them in intentTerms.\n")
	b.WriteString("- Every query must include the resolved topic AND at least one intent term, plus a recency hint.\n")
	b.WriteString("- Prefer a mix of official sources (investor relations, newsroom, filings), regulators, and credible trade press.\n")
	b.WriteString("- No generic market-trends queries unless the user asked for macro.\n")
	b.WriteString("- timeframe is a plain window like \"last 30 days\" or \"last 7 days\".\n")
	b.WriteString(fmt.Sprintf("- Current UTC date: %s.\n", time.Now().UTC().Format("2006-01-02")))
	return strings.TrimSpace(b.String())
}

func buildPlannerUserPrompt(question string, maxQueries int, tighten bool) string {
	var b strings.Builder
	if tighten {
		b.WriteString("TIGHTEN:true\n")
	}
	b.WriteString(fmt.Sprintf("MAX_QUERIES:%d\n", maxQueries))
	b.WriteString("Topic: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nGoal: Plan searches for an Intelligence Brief.")
	if tighten {
		b.WriteString("\nUse stricter operators (intitle:, site:, filetype:pdf), a narrower time window, and avoid opinion pieces.")
	}
	return b.String()
}

func buildWriterSystemPrompt(maxBodyWords int) string {
	var b strings.Builder
	b.WriteString("You are an intelligence analyst. Write a clear, professional, but conversational brief.\n")
	b.WriteString("Use ONLY the ProvidedSources for any links. Do not invent URLs. Do not mix homonyms.\n")
	b.WriteString("Answer the user's question directly first, then add context and nuance.\n")
	b.WriteString("Style rules:\n")
	b.WriteString("- Be specific: products, launches, partners, numbers, dates when available.\n")
	b.WriteString("- Avoid boilerplate and redundancy; merge overlapping points.\n")
	b.WriteString("- Do not put links inside bullets; links belong in the Sources section only.\n")
	b.WriteString("- If fresh data is limited, say so briefly rather than guessing.\n")
	b.WriteString(fmt.Sprintf("- Keep everything before the Sources section under %d words.\n", maxBodyWords))
	b.WriteString("Output ONLY json as {\"markdown\":\"...\"}. Put all content inside 'markdown'. No extra keys.\n")
	b.WriteString("\n")
	b.WriteString("Structure of the markdown:\n")
	b.WriteString("# Intelligence Brief: <resolved topic>\n")
	b.WriteString("## <short title reflecting the question>\n")
	b.WriteString("- 3-5 crisp bullets answering the question with the freshest data.\n")
	b.WriteString("## <short title expanding the question>\n")
	b.WriteString("- 3-5 bullets of useful context.\n")
	b.WriteString("## Conclusion\n")
	b.WriteString("- 2-3 plain sentences summing up the answer.\n")
	b.WriteString("## Sources\n")
	b.WriteString("- Only ProvidedSources actually used, as [Title](URL) — Date. No duplicates, no unused sources.\n")
	return strings.TrimSpace(b.String())
}

func buildWriterUserPrompt(scope Scope, ranked []RankedResult, diversity Diversity) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("resolved_topic: %s\n", scope.Topic))
	b.WriteString(fmt.Sprintf("scope: %s\n", scope.Kind))
	timeframe := strings.TrimSpace(scope.Timeframe)
	if timeframe == "" {
		timeframe = "Up to " + time.Now().UTC().Format("January 2006")
	}
	b.WriteString(fmt.Sprintf("timeframe_text: %s\n", timeframe))
	if diversity.Low() {
		b.WriteString("evidence_note: " + evidenceCaveat + "\n")
	}

	b.WriteString("ProvidedSources:\n")
	for _, item := range ranked {
		date := ""
		if item.PublishedAt != nil {
			date = item.PublishedAt.Format("2006-01-02")
		}
		b.WriteString(fmt.Sprintf("- %s | %s | %s\n", strings.TrimSpace(item.Title), item.URL, date))
	}

	b.WriteString("\nEvidence snippets:\n")
	for _, item := range ranked {
		snippet := strings.TrimSpace(item.Snippet)
		if snippet == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(trimToRunes(snippet, 400))
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
