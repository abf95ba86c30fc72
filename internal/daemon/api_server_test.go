package daemon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobscout/internal/collect"
	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/internal/pipeline"
	"jobscout/internal/testsupport"
)

type fakeSource struct {
	name    string
	queries []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, query collect.Query) ([]pipeline.JobPosting, error) {
	f.queries = append(f.queries, query.Term)
	return []pipeline.JobPosting{
		{Site: f.name, Company: "Acme", Title: "Go Developer " + query.Term, Description: "Build services."},
	}, nil
}

const testToken = "secret-token"

// completionHandler answers any chat completion with a fixed assessment.
func completionHandler(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"summary\":\"Fine role.\",\"score\":70,\"reason\":\"fits\"}"}}]}`))
}

func newTestDaemon(t *testing.T, opts ...Option) (*Daemon, *config.Config) {
	t.Helper()

	llm := httptest.NewServer(http.HandlerFunc(completionHandler))
	t.Cleanup(llm.Close)

	cfg := testsupport.NewConfig(t,
		testsupport.WithEnrichmentKey("sk-test"),
		testsupport.WithEnrichmentURL(llm.URL),
	)
	cfg.Paths.APIToken = testToken
	cfg.Search.Sites = []string{"testboard"}

	d, err := New(cfg, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return d, cfg
}

func newTestClient(t *testing.T, d *Daemon) *Client {
	t.Helper()
	client, err := NewClient(d.api.addr(), testToken)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func waitForCompletion(t *testing.T, client *Client, sessionID string) *pipeline.MultiStageProgress {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		progress, err := client.Progress(context.Background(), sessionID)
		if err != nil {
			t.Fatalf("Progress: %v", err)
		}
		switch progress.Status {
		case pipeline.StatusCompleted:
			return progress
		case pipeline.StatusError:
			t.Fatalf("session failed: %v", progress.Errors)
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session never completed")
	return nil
}

func TestSearchLifecycleOverTheAPI(t *testing.T) {
	source := &fakeSource{name: "testboard"}
	d, _ := newTestDaemon(t, WithSources(source))
	client := newTestClient(t, d)
	ctx := context.Background()

	sessionID, err := client.StartSearch(ctx, pipeline.SearchRequest{
		Queries: []string{"golang"},
		Sites:   []string{"testboard"},
	})
	if err != nil {
		t.Fatalf("StartSearch: %v", err)
	}
	if sessionID == "" {
		t.Fatal("expected a session id")
	}

	progress := waitForCompletion(t, client, sessionID)
	if !progress.IsComplete || progress.OverallProgress != 100 {
		t.Fatalf("progress = %+v, want complete", progress)
	}

	sessions, err := client.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != sessionID {
		t.Fatalf("sessions = %+v, want the one session", sessions)
	}
	if sessions[0].CanResume {
		t.Fatal("completed session must not be resumable")
	}

	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running || status.Sessions != 1 {
		t.Fatalf("status = %+v", status)
	}

	if err := client.DeleteSession(ctx, sessionID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := client.Progress(ctx, sessionID); err == nil {
		t.Fatal("deleted session must not report progress")
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	d, _ := newTestDaemon(t, WithSources(&fakeSource{name: "testboard"}))
	base := "http://" + d.api.addr()

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"wrong token", "nope", http.StatusUnauthorized},
		{"valid token", testToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, base+"/api/status", nil)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestAPIErrorStatuses(t *testing.T) {
	source := &fakeSource{name: "testboard"}
	d, _ := newTestDaemon(t, WithSources(source))
	client := newTestClient(t, d)
	base := "http://" + d.api.addr()

	sessionID, err := client.StartSearch(context.Background(), pipeline.SearchRequest{
		Queries: []string{"golang"},
		Sites:   []string{"testboard"},
	})
	if err != nil {
		t.Fatalf("StartSearch: %v", err)
	}
	waitForCompletion(t, client, sessionID)

	doReq := func(method, path string) int {
		t.Helper()
		req, err := http.NewRequest(method, base+path, nil)
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+testToken)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := doReq(http.MethodGet, "/api/search/missing/progress"); got != http.StatusNotFound {
		t.Fatalf("unknown session progress = %d, want 404", got)
	}
	if got := doReq(http.MethodPost, "/api/search/missing/pause"); got != http.StatusNotFound {
		t.Fatalf("unknown session pause = %d, want 404", got)
	}
	if got := doReq(http.MethodPost, "/api/search/"+sessionID+"/pause"); got != http.StatusConflict {
		t.Fatalf("pause of completed session = %d, want 409", got)
	}
	if got := doReq(http.MethodPost, "/api/search/"+sessionID+"/bogus"); got != http.StatusNotFound {
		t.Fatalf("unknown action = %d, want 404", got)
	}
	if got := doReq(http.MethodPost, "/api/search/"+sessionID+"/progress"); got != http.StatusMethodNotAllowed {
		t.Fatalf("POST progress = %d, want 405", got)
	}
	if got := doReq(http.MethodGet, "/api/sessions/"+sessionID); got != http.StatusMethodNotAllowed {
		t.Fatalf("GET session item = %d, want 405", got)
	}
}

func TestStartSearchMergesConfiguredDefaults(t *testing.T) {
	source := &fakeSource{name: "testboard"}
	d, cfg := newTestDaemon(t, WithSources(source))
	client := newTestClient(t, d)

	sessionID, err := client.StartSearch(context.Background(), pipeline.SearchRequest{})
	if err != nil {
		t.Fatalf("StartSearch: %v", err)
	}
	waitForCompletion(t, client, sessionID)

	if len(source.queries) == 0 || source.queries[0] != cfg.Search.Queries[0] {
		t.Fatalf("queries = %v, want the configured default %q", source.queries, cfg.Search.Queries[0])
	}
}

func TestSecondDaemonInstanceIsRejected(t *testing.T) {
	_, cfg := newTestDaemon(t, WithSources(&fakeSource{name: "testboard"}))

	// A second daemon over the same directories must fail to acquire the lock.
	other := *cfg
	other.Paths.APIBind = "127.0.0.1:0"
	second, err := New(&other, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	err = second.Start(context.Background())
	if err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("err = %v, want a lock contention message", err)
	}
}

func TestStatusComponentsReflectWiring(t *testing.T) {
	// No sources and no enrichment credential.
	llm := httptest.NewServer(http.HandlerFunc(completionHandler))
	t.Cleanup(llm.Close)
	cfg := testsupport.NewConfig(t, testsupport.WithEnrichmentURL(llm.URL))
	cfg.Paths.APIBind = ""

	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	status := d.Status()
	byName := map[string]bool{}
	for _, component := range status.Components {
		byName[component.Name] = component.Ready
	}
	if byName["collection"] {
		t.Fatal("collection must be unhealthy without sources")
	}
	if !byName["filtering"] {
		t.Fatal("filtering must always be healthy")
	}
	if byName["enrichment"] {
		t.Fatal("enrichment must be unhealthy without a credential")
	}
}

func TestClientReportsDaemonUnavailable(t *testing.T) {
	client, err := NewClient("127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Status(ctx); !errors.Is(err, ErrDaemonUnavailable) {
		t.Fatalf("err = %v, want ErrDaemonUnavailable", err)
	}
}

func TestNewClientPromotesBareAddresses(t *testing.T) {
	client, err := NewClient("127.0.0.1:7519", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.base.Scheme != "http" || client.base.Host != "127.0.0.1:7519" {
		t.Fatalf("base = %s", client.base)
	}
	if _, err := NewClient("   ", ""); err == nil {
		t.Fatal("blank address must fail")
	}
}
