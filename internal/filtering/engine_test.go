package filtering

import (
	"context"
	"testing"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
)

func newTestEngine(t *testing.T, settings config.Filtering) *Engine {
	t.Helper()
	return NewEngine(settings, logging.NewNop())
}

func TestSkipReasonPriorityOrder(t *testing.T) {
	settings := config.Filtering{
		CompanyBlacklist: []string{"badco"},
		TitleBlacklist:   []string{"senior"},
		BlockedCountries: []string{"Narnia"},
	}
	engine := newTestEngine(t, settings)

	// The posting violates company, title, and country rules at once; the
	// company rule fires first and the rest are never evaluated.
	item := pipeline.JobPosting{
		Company:  "BadCo Inc",
		Title:    "Senior Go Developer",
		Location: "City, Narnia",
	}
	reason, skipped := engine.skipReason(item)
	if !skipped {
		t.Fatal("expected posting to be skipped")
	}
	if reason != ReasonCompanyBlacklisted {
		t.Fatalf("reason = %s, want %s", reason, ReasonCompanyBlacklisted)
	}
}

func TestBlacklistMatchingIsCaseInsensitiveSubstring(t *testing.T) {
	engine := newTestEngine(t, config.Filtering{TitleBlacklist: []string{"recruiter"}})
	item := pipeline.JobPosting{Company: "Acme", Title: "IT RECRUITER wanted"}
	reason, skipped := engine.skipReason(item)
	if !skipped || reason != ReasonTitleBlacklisted {
		t.Fatalf("got %s/%v, want title_blacklisted/true", reason, skipped)
	}
}

func TestCountryRules(t *testing.T) {
	cases := []struct {
		name     string
		settings config.Filtering
		item     pipeline.JobPosting
		skipped  bool
	}{
		{
			name:     "unknown country passes",
			settings: config.Filtering{AllowedCountries: []string{"Germany"}},
			item:     pipeline.JobPosting{Company: "A", Title: "B"},
			skipped:  false,
		},
		{
			name:     "blocked country rejected",
			settings: config.Filtering{BlockedCountries: []string{"Germany"}},
			item:     pipeline.JobPosting{Company: "A", Title: "B", Country: "germany"},
			skipped:  true,
		},
		{
			name:     "allowed list rejects others",
			settings: config.Filtering{AllowedCountries: []string{"Germany"}},
			item:     pipeline.JobPosting{Company: "A", Title: "B", Country: "France"},
			skipped:  true,
		},
		{
			name:     "country derived from location",
			settings: config.Filtering{AllowedCountries: []string{"Germany"}},
			item:     pipeline.JobPosting{Company: "A", Title: "B", Location: "Berlin, Germany"},
			skipped:  false,
		},
		{
			name:     "country from metadata",
			settings: config.Filtering{AllowedCountries: []string{"Germany"}},
			item:     pipeline.JobPosting{Company: "A", Title: "B", MetadataJSON: `{"country":"Germany"}`},
			skipped:  false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestEngine(t, tc.settings)
			_, skipped := engine.skipReason(tc.item)
			if skipped != tc.skipped {
				t.Fatalf("skipped = %v, want %v", skipped, tc.skipped)
			}
		})
	}
}

func TestLanguageRequirement(t *testing.T) {
	settings := config.Filtering{RequiredLanguages: []string{"uk", "ru"}}
	engine := newTestEngine(t, settings)

	cases := []struct {
		name    string
		item    pipeline.JobPosting
		skipped bool
	}{
		{
			name:    "declared matching language",
			item:    pipeline.JobPosting{Company: "A", Title: "B", Language: "uk"},
			skipped: false,
		},
		{
			name:    "declared mismatching language",
			item:    pipeline.JobPosting{Company: "A", Title: "B", Language: "de"},
			skipped: true,
		},
		{
			name:    "undeclared with cyrillic text passes",
			item:    pipeline.JobPosting{Company: "A", Title: "Розробник Go"},
			skipped: false,
		},
		{
			name:    "undeclared latin-only text rejected",
			item:    pipeline.JobPosting{Company: "A", Title: "Go Developer"},
			skipped: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, skipped := engine.skipReason(tc.item)
			if skipped != tc.skipped {
				t.Fatalf("skipped = %v (reason %s), want %v", skipped, reason, tc.skipped)
			}
		})
	}
}

func TestLanguageUndeclaredRejectedForNonCyrillicRequirement(t *testing.T) {
	engine := newTestEngine(t, config.Filtering{RequiredLanguages: []string{"de"}})
	item := pipeline.JobPosting{Company: "A", Title: "Entwickler"}
	reason, skipped := engine.skipReason(item)
	if !skipped || reason != ReasonLanguageMismatch {
		t.Fatalf("got %s/%v, want language_mismatch/true", reason, skipped)
	}
}

func TestMalformedMetadataIsTreatedAsAbsent(t *testing.T) {
	engine := newTestEngine(t, config.Filtering{AllowedCountries: []string{"Germany"}})
	item := pipeline.JobPosting{Company: "A", Title: "B", MetadataJSON: `{"country": `}
	_, skipped := engine.skipReason(item)
	if skipped {
		t.Fatal("malformed metadata must not reject a posting on its own")
	}
}

func TestExecuteProducesStats(t *testing.T) {
	engine := newTestEngine(t, config.Filtering{CompanyBlacklist: []string{"badco"}})
	items := []pipeline.JobPosting{
		{Company: "Acme", Title: "Go Developer"},
		{Company: "BadCo", Title: "Go Developer"},
		{Company: "Globex", Title: "Backend Engineer"},
	}

	outcome, err := engine.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome.Stats.FilteredCount != 2 {
		t.Fatalf("FilteredCount = %d, want 2", outcome.Stats.FilteredCount)
	}
	if outcome.Stats.SkippedCount != 1 {
		t.Fatalf("SkippedCount = %d, want 1", outcome.Stats.SkippedCount)
	}
	if outcome.Stats.Reasons[ReasonCompanyBlacklisted] != 1 {
		t.Fatalf("Reasons = %v, want company_blacklisted: 1", outcome.Stats.Reasons)
	}
	if len(outcome.Filtered) != 2 || len(outcome.Skipped) != 1 {
		t.Fatalf("partition = %d/%d, want 2/1", len(outcome.Filtered), len(outcome.Skipped))
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	engine := newTestEngine(t, config.Filtering{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Execute(ctx, []pipeline.JobPosting{{Company: "A", Title: "B"}})
	if err == nil {
		t.Fatal("expected context error")
	}
}
