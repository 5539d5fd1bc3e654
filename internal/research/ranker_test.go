package research

import (
	"testing"
	"time"

	"intelbrief/backend/internal/brave"
)

func datePtr(t *testing.T, value string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return &parsed
}

func TestRankDropsLowQualityDomains(t *testing.T) {
	scope := Scope{Kind: ScopeCompany, Topic: "Acme Corp"}
	results := []brave.SearchResult{
		{URL: "https://www.reuters.com/acme", Title: "Acme Corp cuts staff"},
		{URL: "https://acme-rumors.blogspot.com/post", Title: "Acme Corp secret plans"},
		{URL: "https://www.quora.com/what-is-acme", Title: "What is Acme Corp?"},
	}

	ranked, _ := Rank(results, scope, time.Now(), 3)
	if len(ranked) != 1 {
		t.Fatalf("expected low-quality domains dropped, got %d results", len(ranked))
	}
	if ranked[0].URL != "https://www.reuters.com/acme" {
		t.Fatalf("unexpected survivor %q", ranked[0].URL)
	}
}

func TestRankOrdersByScoreThenDateThenURL(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	scope := Scope{Kind: ScopeCompany, Topic: "Acme Corp", Timeframe: "past 3 months", IntentTerms: []string{"layoffs"}}
	results := []brave.SearchResult{
		{URL: "https://example.com/old", Title: "Unrelated note"},
		{URL: "https://www.reuters.com/acme-layoffs", Title: "Acme Corp layoffs confirmed", Snippet: "layoffs", PublishedAt: datePtr(t, "2026-08-20")},
		{URL: "https://www.cnbc.com/acme", Title: "Acme Corp layoffs widen", Snippet: "layoffs", PublishedAt: datePtr(t, "2026-08-01")},
	}

	ranked, _ := Rank(results, scope, now, 3)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked results, got %d", len(ranked))
	}
	if ranked[0].URL != "https://www.reuters.com/acme-layoffs" {
		t.Fatalf("expected reuters first, got %q", ranked[0].URL)
	}
	if ranked[1].URL != "https://www.cnbc.com/acme" {
		t.Fatalf("expected cnbc second, got %q", ranked[1].URL)
	}
	if ranked[0].Score <= ranked[1].Score || ranked[1].Score <= ranked[2].Score {
		t.Fatalf("expected strictly descending scores, got %v %v %v", ranked[0].Score, ranked[1].Score, ranked[2].Score)
	}
}

func TestRankIsDeterministic(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	scope := Scope{Kind: ScopeSector, Topic: "semiconductors", IntentTerms: []string{"export controls"}}
	results := []brave.SearchResult{
		{URL: "https://www.ft.com/chips-b", Title: "semiconductors export controls", PublishedAt: datePtr(t, "2026-07-01")},
		{URL: "https://www.ft.com/chips-a", Title: "semiconductors export controls", PublishedAt: datePtr(t, "2026-07-01")},
	}

	first, _ := Rank(results, scope, now, 3)
	second, _ := Rank(results, scope, now, 3)
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected both runs to keep 2 results")
	}
	for i := range first {
		if first[i].URL != second[i].URL {
			t.Fatalf("ranking not deterministic at %d: %q vs %q", i, first[i].URL, second[i].URL)
		}
	}
	// Equal score and date fall back to URL order.
	if first[0].URL != "https://www.ft.com/chips-a" {
		t.Fatalf("expected URL tiebreak, got %q first", first[0].URL)
	}
}

func TestRankTruncatesToMaxSources(t *testing.T) {
	scope := Scope{Kind: ScopeCompany, Topic: "Acme Corp"}
	results := []brave.SearchResult{
		{URL: "https://www.reuters.com/1", Title: "Acme Corp one"},
		{URL: "https://www.reuters.com/2", Title: "Acme Corp two"},
		{URL: "https://www.reuters.com/3", Title: "Acme Corp three"},
		{URL: "https://www.reuters.com/4", Title: "Acme Corp four"},
	}
	ranked, _ := Rank(results, scope, time.Now(), 3)
	if len(ranked) != 3 {
		t.Fatalf("expected truncation to 3, got %d", len(ranked))
	}
}

func TestRankScoresWithoutIntentTerms(t *testing.T) {
	scope := Scope{Kind: ScopeCompany, Topic: "Acme Corp"}
	results := []brave.SearchResult{
		{URL: "https://www.reuters.com/acme", Title: "Acme Corp earnings"},
	}
	ranked, _ := Rank(results, scope, time.Now(), 3)
	if len(ranked) != 1 {
		t.Fatalf("expected result kept, got %d", len(ranked))
	}
	if ranked[0].Score <= 0 {
		t.Fatalf("expected positive score from title match, got %v", ranked[0].Score)
	}
}

func TestDiversityFlags(t *testing.T) {
	now := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	scope := Scope{Kind: ScopeCompany, Topic: "Acme Corp"}

	t.Run("official plus independent", func(t *testing.T) {
		results := []brave.SearchResult{
			{URL: "https://investor.acmecorp.com/news", Title: "Acme Corp announcement"},
			{URL: "https://www.reuters.com/acme", Title: "Acme Corp report"},
		}
		_, diversity := Rank(results, scope, now, 3)
		if !diversity.HasOfficial || !diversity.HasIndependent || diversity.SingleDomain {
			t.Fatalf("unexpected diversity %+v", diversity)
		}
		if diversity.Low() {
			t.Fatalf("mixed set should not be flagged low")
		}
	})

	t.Run("single domain", func(t *testing.T) {
		results := []brave.SearchResult{
			{URL: "https://www.reuters.com/acme-1", Title: "Acme Corp one"},
			{URL: "https://www.reuters.com/acme-2", Title: "Acme Corp two"},
		}
		_, diversity := Rank(results, scope, now, 3)
		if !diversity.SingleDomain {
			t.Fatalf("expected single-domain flag, got %+v", diversity)
		}
		if !diversity.Low() {
			t.Fatalf("single-domain set should be flagged low")
		}
	})

	t.Run("regulator counts as official", func(t *testing.T) {
		results := []brave.SearchResult{
			{URL: "https://www.sec.gov/filing/acme-10k", Title: "Acme Corp 10-K"},
		}
		ranked, diversity := Rank(results, scope, now, 3)
		if len(ranked) != 1 || ranked[0].Tier != TierOfficial {
			t.Fatalf("expected sec.gov classified official, got %+v", ranked)
		}
		if !diversity.HasOfficial {
			t.Fatalf("expected official flag, got %+v", diversity)
		}
	})
}
