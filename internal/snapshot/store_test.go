package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), logging.NewNop())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func testSnapshot(sessionID string) *Snapshot {
	return &Snapshot{
		SessionID: sessionID,
		Request:   pipeline.SearchRequest{Queries: []string{"go"}, Sites: []string{"board"}},
		Progress:  pipeline.NewMultiStageProgress(sessionID),
	}
}

func TestSaveBumpsVersion(t *testing.T) {
	store := newTestStore(t)

	_, v1, err := store.Save(testSnapshot("abc"))
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("first version = %d, want 1", v1)
	}

	_, v2, err := store.Save(testSnapshot("abc"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if v2 != 2 {
		t.Fatalf("second version = %d, want 2", v2)
	}

	loaded, err := store.Load("abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SnapshotVersion != 2 {
		t.Fatalf("loaded version = %d, want 2", loaded.SnapshotVersion)
	}
}

func TestSaveRedactsCredential(t *testing.T) {
	store := newTestStore(t)
	snap := testSnapshot("abc")
	snap.Settings.EnrichmentAPIKey = "sk-secret"

	if _, _, err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := store.Load("abc")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Settings.EnrichmentAPIKey != "" {
		t.Fatalf("credential persisted: %q", loaded.Settings.EnrichmentAPIKey)
	}
}

func TestCanResumeComputation(t *testing.T) {
	store := newTestStore(t)

	snap := testSnapshot("running")
	if _, _, err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, _ := store.Load("running")
	if !loaded.CanResume {
		t.Fatal("incomplete running session must be resumable")
	}

	snap = testSnapshot("failed")
	snap.Progress.Status = pipeline.StatusError
	if _, _, err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, _ = store.Load("failed")
	if loaded.CanResume {
		t.Fatal("errored session must not be resumable")
	}

	snap = testSnapshot("done")
	snap.Progress.Status = pipeline.StatusCompleted
	snap.Progress.IsComplete = true
	if _, _, err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, _ = store.Load("done")
	if loaded.CanResume {
		t.Fatal("completed session must not be resumable")
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Load("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadMalformed(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(store.Dir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := store.readFile(path); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestListSkipsCorruptFiles(t *testing.T) {
	store := newTestStore(t)
	if _, _, err := store.Save(testSnapshot("good")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	corrupt := filepath.Join(store.Dir(), "corrupt.json")
	if err := os.WriteFile(corrupt, []byte("{"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	snaps, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 1 || snaps[0].SessionID != "good" {
		t.Fatalf("List = %d entries, want only the good one", len(snaps))
	}
}

func TestDeleteMissingCountsAsDeleted(t *testing.T) {
	store := newTestStore(t)
	if !store.Delete("never-existed") {
		t.Fatal("deleting a missing snapshot should succeed")
	}
}

func TestSanitizeSessionID(t *testing.T) {
	cases := map[string]string{
		"abc-123":          "abc-123",
		"../../etc/passwd": ".._.._etc_passwd",
		"":                 "session",
		"a b/c":            "a_b_c",
	}
	for input, want := range cases {
		if got := SanitizeSessionID(input); got != want {
			t.Fatalf("SanitizeSessionID(%q) = %q, want %q", input, got, want)
		}
	}
}
