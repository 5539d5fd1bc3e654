package research

import (
	"math"
	"sort"
	"strings"
	"time"

	"intelbrief/backend/internal/brave"
)

const defaultRecencyWindowDays = 180

// Static domain-reputation weights, keyed by apex domain. Anything not
// listed is neutral (1.0); low-tier domains are dropped outright.
var domainWeights = map[string]float64{
	"sec.gov":          2.5,
	"reuters.com":      1.8,
	"bloomberg.com":    1.8,
	"wsj.com":          1.7,
	"ft.com":           1.7,
	"cnbc.com":         1.6,
	"marketwatch.com":  1.4,
	"seekingalpha.com": 1.2,
	"forbes.com":       1.1,
}

var independentDomains = map[string]struct{}{
	"reuters.com":     {},
	"bloomberg.com":   {},
	"wsj.com":         {},
	"ft.com":          {},
	"cnbc.com":        {},
	"marketwatch.com": {},
}

var lowQualityDomains = map[string]struct{}{
	"blogspot.com":  {},
	"wordpress.com": {},
	"pinterest.com": {},
	"quora.com":     {},
	"answers.com":   {},
	"ehow.com":      {},
	"scoop.it":      {},
}

// Rank orders search results by topical relevance, domain reputation and
// recency, drops low-tier domains, and truncates to maxSources. It is a
// pure function of its inputs: ranking an already-ranked, unchanged set
// with the same scope and clock yields the same order.
func Rank(results []brave.SearchResult, scope Scope, now time.Time, maxSources int) ([]RankedResult, Diversity) {
	if maxSources < 1 {
		maxSources = 1
	}

	windowDays := timeframeDays(scope.Timeframe)
	if windowDays <= 0 {
		windowDays = defaultRecencyWindowDays
	}

	ranked := make([]RankedResult, 0, len(results))
	for _, result := range results {
		tier := classifyDomain(result.URL, scope.Topic)
		if tier == TierLow {
			continue
		}
		ranked = append(ranked, RankedResult{
			SearchResult: result,
			Score:        scoreResult(result, scope, now, windowDays),
			Tier:         tier,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		di, dj := dateOrZero(ranked[i].PublishedAt), dateOrZero(ranked[j].PublishedAt)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return ranked[i].URL < ranked[j].URL
	})

	if len(ranked) > maxSources {
		ranked = ranked[:maxSources]
	}

	return ranked, diversityOf(ranked, scope.Topic)
}

func scoreResult(result brave.SearchResult, scope Scope, now time.Time, windowDays int) float64 {
	topic := strings.ToLower(strings.TrimSpace(scope.Topic))
	score := 0.0
	if topic != "" {
		if strings.Contains(strings.ToLower(result.Title), topic) {
			score += 2.0
		}
		if strings.Contains(strings.ToLower(result.URL), strings.ReplaceAll(topic, " ", "")) {
			score += 1.0
		}
	}

	haystack := strings.ToLower(result.Title + " " + result.Snippet)
	for _, term := range scope.IntentTerms {
		if term = strings.ToLower(strings.TrimSpace(term)); term == "" {
			continue
		}
		if strings.Contains(haystack, term) {
			score += 0.5
			break
		}
	}

	score *= domainWeight(result.URL)

	if result.PublishedAt != nil {
		ageDays := now.UTC().Sub(result.PublishedAt.UTC()).Hours() / 24
		if ageDays >= 0 && ageDays <= float64(windowDays) {
			score += math.Max(0, 1.5-(ageDays/float64(windowDays)))
		}
	}

	return math.Round(score*1000) / 1000
}

func domainWeight(rawURL string) float64 {
	host := hostnameFromURL(rawURL)
	if host == "" {
		return 1.0
	}
	if weight, ok := domainWeights[host]; ok {
		return weight
	}
	if weight, ok := domainWeights[apexDomain(host)]; ok {
		return weight
	}
	return 1.0
}

func classifyDomain(rawURL, topic string) DomainTier {
	host := hostnameFromURL(rawURL)
	if host == "" {
		return TierLow
	}
	apex := apexDomain(host)
	if _, ok := lowQualityDomains[apex]; ok {
		return TierLow
	}
	if isOfficialHost(host, topic) {
		return TierOfficial
	}
	if _, ok := independentDomains[apex]; ok {
		return TierTrusted
	}
	if _, ok := domainWeights[apex]; ok {
		return TierTrusted
	}
	return TierNeutral
}

// isOfficialHost flags company sites, investor-relations subdomains and
// regulators as official sources.
func isOfficialHost(host, topic string) bool {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if strings.HasSuffix(host, "sec.gov") {
		return true
	}
	if strings.Contains(host, "investor") || strings.HasPrefix(host, "ir.") {
		return true
	}
	compactTopic := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(topic), " ", ""))
	return compactTopic != "" && strings.Contains(host, compactTopic)
}

func diversityOf(ranked []RankedResult, topic string) Diversity {
	diversity := Diversity{}
	domains := make(map[string]struct{}, len(ranked))
	for _, item := range ranked {
		host := hostnameFromURL(item.URL)
		domains[apexDomain(host)] = struct{}{}
		if isOfficialHost(host, topic) {
			diversity.HasOfficial = true
		}
		if _, ok := independentDomains[apexDomain(host)]; ok {
			diversity.HasIndependent = true
		}
	}
	diversity.SingleDomain = len(ranked) > 0 && len(domains) == 1
	return diversity
}

func dateOrZero(value *time.Time) time.Time {
	if value == nil {
		return time.Time{}
	}
	return value.UTC()
}
