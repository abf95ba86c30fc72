package postings

import (
	"context"
	"testing"

	"jobscout/internal/pipeline"
	"jobscout/internal/testsupport"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func samplePostings() []pipeline.JobPosting {
	return []pipeline.JobPosting{
		{Site: "board", Company: "Acme", Title: "Go Developer", URL: "https://example.com/1"},
		{Site: "board", Company: "Globex", Title: "Backend Engineer", URL: "https://example.com/2"},
	}
}

func TestReplacePhaseRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplacePhase(ctx, "s1", PhaseCollected, samplePostings()); err != nil {
		t.Fatalf("ReplacePhase: %v", err)
	}

	items, err := store.ItemsForPhase(ctx, "s1", PhaseCollected)
	if err != nil {
		t.Fatalf("ItemsForPhase: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].Company != "Acme" || items[1].Company != "Globex" {
		t.Fatalf("order not preserved: %s, %s", items[0].Company, items[1].Company)
	}
}

func TestReplacePhaseReplacesPriorRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplacePhase(ctx, "s1", PhaseFiltered, samplePostings()); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	replacement := []pipeline.JobPosting{{Site: "board", Company: "Initech", Title: "SRE"}}
	if err := store.ReplacePhase(ctx, "s1", PhaseFiltered, replacement); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	items, err := store.ItemsForPhase(ctx, "s1", PhaseFiltered)
	if err != nil {
		t.Fatalf("ItemsForPhase: %v", err)
	}
	if len(items) != 1 || items[0].Company != "Initech" {
		t.Fatalf("items = %v, want only the replacement", items)
	}
}

func TestPhasesAreIsolatedPerSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplacePhase(ctx, "s1", PhaseCollected, samplePostings()); err != nil {
		t.Fatalf("ReplacePhase s1: %v", err)
	}
	if err := store.ReplacePhase(ctx, "s2", PhaseCollected, samplePostings()[:1]); err != nil {
		t.Fatalf("ReplacePhase s2: %v", err)
	}

	counts, err := store.PhaseCounts(ctx, "s1")
	if err != nil {
		t.Fatalf("PhaseCounts: %v", err)
	}
	if counts[PhaseCollected] != 2 {
		t.Fatalf("s1 collected = %d, want 2", counts[PhaseCollected])
	}

	items, err := store.ItemsForPhase(ctx, "s2", PhaseCollected)
	if err != nil {
		t.Fatalf("ItemsForPhase s2: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("s2 items = %d, want 1", len(items))
	}
}

func TestDeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.ReplacePhase(ctx, "s1", PhaseCollected, samplePostings()); err != nil {
		t.Fatalf("ReplacePhase: %v", err)
	}
	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	items, err := store.ItemsForPhase(ctx, "s1", PhaseCollected)
	if err != nil {
		t.Fatalf("ItemsForPhase: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items = %d after delete, want 0", len(items))
	}
}
