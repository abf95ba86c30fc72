package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
)

func newTestEnricher(t *testing.T, handler http.HandlerFunc) *Enricher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(testClientConfig(server.URL), WithRetryMaxAttempts(1))
	return NewEnricher(client, logging.NewNop())
}

func assessmentResponse(summary string, score float64) string {
	verdict, _ := json.Marshal(Assessment{Summary: summary, Score: score, Reason: "fits"})
	return completionBody(string(verdict))
}

func TestReadyTracksCredential(t *testing.T) {
	withKey := NewEnricher(NewClient(config.Enrichment{APIKey: "sk-x"}), logging.NewNop())
	if !withKey.Ready() {
		t.Fatal("expected ready with a key")
	}
	withoutKey := NewEnricher(NewClient(config.Enrichment{}), logging.NewNop())
	if withoutKey.Ready() {
		t.Fatal("expected not ready without a key")
	}
}

func TestExecuteEnrichesEveryPosting(t *testing.T) {
	enricher := newTestEnricher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(assessmentResponse("Solid backend role.", 85)))
	})

	items := []pipeline.JobPosting{
		{Company: "Acme", Title: "Go Developer", Description: "Build services."},
		{Company: "Globex", Title: "Backend Engineer", Description: "Own the API."},
	}
	result, err := enricher.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success || result.ItemsProcessed != 2 {
		t.Fatalf("result = %+v, want 2 processed", result)
	}
	for _, item := range result.Items {
		if !item.Enriched {
			t.Fatalf("%s not enriched", item.Title)
		}
		if item.Summary != "Solid backend role." || item.Score != 85 {
			t.Fatalf("item = %+v", item)
		}
	}
	// Inputs are never mutated in place.
	if items[0].Enriched {
		t.Fatal("input slice mutated")
	}
}

func TestExecuteRecordsPartialFailures(t *testing.T) {
	var calls int
	enricher := newTestEnricher(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(assessmentResponse("Fine.", 40)))
	})

	items := []pipeline.JobPosting{
		{Company: "Acme", Title: "Go Developer"},
		{Company: "Globex", Title: "Backend Engineer"},
	}
	result, err := enricher.Execute(context.Background(), items)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.ItemsProcessed != 2 {
		t.Fatalf("processed = %d, want both items carried through", result.ItemsProcessed)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Go Developer") {
		t.Fatalf("errors = %v, want one naming the failed posting", result.Errors)
	}
	if result.Items[0].Enriched {
		t.Fatal("failed posting must stay unenriched")
	}
	if !result.Items[1].Enriched {
		t.Fatal("second posting must be enriched")
	}
}

func TestExecuteClampsScores(t *testing.T) {
	enricher := newTestEnricher(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody(`{"summary":"s","score":250,"reason":"r"}`)))
	})

	result, err := enricher.Execute(context.Background(), []pipeline.JobPosting{{Company: "A", Title: "B"}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Items[0].Score != 100 {
		t.Fatalf("score = %f, want clamped to 100", result.Items[0].Score)
	}
}

func TestExecuteReturnsPartialResultOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	enricher := newTestEnricher(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(assessmentResponse("First.", 50)))
			return
		}
		cancel()
		http.Error(w, "interrupted", http.StatusInternalServerError)
	})

	items := []pipeline.JobPosting{
		{Company: "Acme", Title: "One"},
		{Company: "Globex", Title: "Two"},
		{Company: "Initech", Title: "Three"},
	}
	result, err := enricher.Execute(ctx, items)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	if result == nil || result.ItemsProcessed != 1 {
		t.Fatalf("result = %+v, want one processed item before the cut", result)
	}
}

func TestDescribePostingTruncatesLongDescriptions(t *testing.T) {
	long := strings.Repeat("x", maxDescriptionChars+500)
	item := pipeline.JobPosting{Company: "Acme", Title: "Go Developer", Description: long}
	prompt := describePosting(item)
	if strings.Count(prompt, "x") != maxDescriptionChars {
		t.Fatalf("description not truncated to %d chars", maxDescriptionChars)
	}
	if !strings.Contains(prompt, "Title: Go Developer") {
		t.Fatalf("prompt missing title: %s", prompt)
	}
}

func TestDescribePostingIncludesOptionalFields(t *testing.T) {
	item := pipeline.JobPosting{
		Company:  "Acme",
		Title:    "Go Developer",
		Location: "Berlin, Germany",
		URL:      "https://example.com/1",
	}
	prompt := describePosting(item)
	for _, want := range []string{"Location: Berlin, Germany", "URL: https://example.com/1"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	bare := describePosting(pipeline.JobPosting{Company: "Acme", Title: "Go Developer"})
	if strings.Contains(bare, "Location:") || strings.Contains(bare, "URL:") {
		t.Fatalf("empty optional fields must be omitted:\n%s", bare)
	}
}
