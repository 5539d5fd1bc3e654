package research

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

func trimToRunes(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}

func canonicalURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	parsed.Fragment = ""
	parsed.RawQuery = ""
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Path = strings.TrimRight(parsed.EscapedPath(), "/")
	return parsed.String()
}

func canonicalOrRawURL(raw string) string {
	canonical := canonicalURL(raw)
	if canonical != "" {
		return canonical
	}
	return strings.TrimSpace(raw)
}

func hostnameFromURL(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parsed.Hostname()))
}

// apexDomain reduces a host to its last two labels, which is how the
// reputation table is keyed ("www.reuters.com" -> "reuters.com").
func apexDomain(host string) string {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(host)), ".")
	if len(parts) < 2 {
		return strings.ToLower(strings.TrimSpace(host))
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

func dedupeQueries(items []PlannedQuery) []PlannedQuery {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]PlannedQuery, 0, len(items))
	for _, item := range items {
		normalized := strings.Join(strings.Fields(strings.TrimSpace(item.Query)), " ")
		if normalized == "" {
			continue
		}
		key := strings.ToLower(normalized)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		item.Query = normalized
		item.Reason = strings.TrimSpace(item.Reason)
		out = append(out, item)
	}
	return out
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func extractJSONBlock(raw string) string {
	value := strings.TrimSpace(raw)
	if strings.HasPrefix(value, "{") && strings.HasSuffix(value, "}") {
		return value
	}
	start := strings.Index(value, "{")
	end := strings.LastIndex(value, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(value[start : end+1])
}

var timeframeDaysPattern = regexp.MustCompile(`(\d+)\s*(day|week|month)`)

// timeframeDays converts a planner timeframe like "last 7 days" or
// "last 3 weeks" into a day count. Zero means no explicit window.
func timeframeDays(timeframe string) int {
	match := timeframeDaysPattern.FindStringSubmatch(strings.ToLower(timeframe))
	if len(match) != 3 {
		return 0
	}
	n := 0
	for _, r := range match[1] {
		n = n*10 + int(r-'0')
	}
	switch match[2] {
	case "week":
		return n * 7
	case "month":
		return n * 30
	default:
		return n
	}
}

func wordCount(raw string) int {
	return len(strings.Fields(raw))
}

// clampWords cuts text after the given number of whitespace-separated
// words, leaving earlier formatting intact.
func clampWords(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	fields := strings.Fields(raw)
	if len(fields) <= limit {
		return raw
	}

	count := 0
	inWord := false
	for i, r := range raw {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inWord {
			inWord = true
			count++
		} else if isSpace {
			inWord = false
		}
		if count > limit {
			return strings.TrimRight(raw[:i], " \t\n\r")
		}
	}
	return raw
}
