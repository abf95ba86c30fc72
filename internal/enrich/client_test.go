package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"jobscout/internal/config"
)

func testClientConfig(url string) config.Enrichment {
	return config.Enrichment{
		APIKey:  "test-key",
		Model:   "test/model",
		BaseURL: url,
	}
}

func completionBody(content string) string {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	encoded, _ := json.Marshal(payload)
	return string(encoded)
}

func TestConfiguredRequiresAPIKey(t *testing.T) {
	if NewClient(config.Enrichment{}).Configured() {
		t.Fatal("empty key must not be configured")
	}
	if NewClient(config.Enrichment{APIKey: "   "}).Configured() {
		t.Fatal("whitespace key must not be configured")
	}
	if !NewClient(config.Enrichment{APIKey: "sk-x"}).Configured() {
		t.Fatal("expected configured client")
	}
}

func TestCompleteJSONSendsBearerAndHeaders(t *testing.T) {
	var gotAuth, gotTitle string
	var gotBody chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTitle = r.Header.Get("X-Title")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody(`{"ok":true}`)))
	}))
	defer server.Close()

	cfg := testClientConfig(server.URL)
	cfg.Title = "jobscout"
	client := NewClient(cfg)

	content, err := client.CompleteJSON(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if content != `{"ok":true}` {
		t.Fatalf("content = %q", content)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotTitle != "jobscout" {
		t.Fatalf("title header = %q", gotTitle)
	}
	if gotBody.Model != "test/model" || len(gotBody.Messages) != 2 {
		t.Fatalf("request body = %+v", gotBody)
	}
	if gotBody.ResponseFormat["type"] != jsonResponseType {
		t.Fatalf("response format = %v", gotBody.ResponseFormat)
	}
}

func TestCompleteJSONRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(completionBody(`{"ok":true}`)))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(testClientConfig(server.URL),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
		WithRetryBackoff(time.Second, 4*time.Second),
	)

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("sleeps = %v, want doubling backoff", slept)
	}
}

func TestCompleteJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(testClientConfig(server.URL), WithSleeper(func(time.Duration) {}))
	_, err := client.CompleteJSON(context.Background(), "system", "user")
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *httpStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("err = %v, want http 400", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestCompleteJSONHonorsRetryAfter(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "3")
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(completionBody(`{"ok":true}`)))
	}))
	defer server.Close()

	var slept []time.Duration
	client := NewClient(testClientConfig(server.URL),
		WithSleeper(func(d time.Duration) { slept = append(slept, d) }),
	)

	if _, err := client.CompleteJSON(context.Background(), "system", "user"); err != nil {
		t.Fatalf("CompleteJSON: %v", err)
	}
	if len(slept) != 1 || slept[0] != 3*time.Second {
		t.Fatalf("sleeps = %v, want the Retry-After value", slept)
	}
}

func TestCompleteJSONStopsRetryingOnCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(testClientConfig(server.URL),
		WithSleeper(func(time.Duration) { cancel() }),
	)

	if _, err := client.CompleteJSON(ctx, "system", "user"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestCompleteJSONRejectsMissingInputs(t *testing.T) {
	client := NewClient(testClientConfig("http://127.0.0.1:0"))
	if _, err := client.CompleteJSON(context.Background(), "", "user"); err == nil {
		t.Fatal("empty system prompt must fail")
	}
	if _, err := client.CompleteJSON(context.Background(), "system", ""); err == nil {
		t.Fatal("empty user prompt must fail")
	}
	unconfigured := NewClient(config.Enrichment{BaseURL: "http://127.0.0.1:0"})
	if _, err := unconfigured.CompleteJSON(context.Background(), "system", "user"); err == nil {
		t.Fatal("missing key must fail before any request")
	}
}

func TestCompleteJSONFallsBackToDeltaAndText(t *testing.T) {
	cases := map[string]string{
		"delta": `{"choices":[{"delta":{"content":"{\"a\":1}"}}]}`,
		"text":  `{"choices":[{"text":"{\"a\":1}"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			client := NewClient(testClientConfig(server.URL))
			content, err := client.CompleteJSON(context.Background(), "system", "user")
			if err != nil {
				t.Fatalf("CompleteJSON: %v", err)
			}
			if content != `{"a":1}` {
				t.Fatalf("content = %q", content)
			}
		})
	}
}

func TestDecodeModelJSONToleratesCodeFences(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"plain", `{"summary":"s","score":50,"reason":"r"}`},
		{"fenced", "```json\n{\"summary\":\"s\",\"score\":50,\"reason\":\"r\"}\n```"},
		{"fenced no language", "```\n{\"summary\":\"s\",\"score\":50,\"reason\":\"r\"}\n```"},
		{"surrounding prose", "Here you go: {\"summary\":\"s\",\"score\":50,\"reason\":\"r\"} hope it helps"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var parsed Assessment
			if err := decodeModelJSON(tc.payload, &parsed); err != nil {
				t.Fatalf("decodeModelJSON: %v", err)
			}
			if parsed.Summary != "s" || parsed.Score != 50 {
				t.Fatalf("parsed = %+v", parsed)
			}
		})
	}
}

func TestDecodeModelJSONRejectsGarbage(t *testing.T) {
	var parsed Assessment
	if err := decodeModelJSON("", &parsed); err == nil {
		t.Fatal("empty payload must fail")
	}
	if err := decodeModelJSON("not json at all", &parsed); err == nil {
		t.Fatal("prose without JSON must fail")
	}
}

func TestParseRetryAfter(t *testing.T) {
	if d, ok := parseRetryAfter("5"); !ok || d != 5*time.Second {
		t.Fatalf("seconds form = %v/%v", d, ok)
	}
	if _, ok := parseRetryAfter(""); ok {
		t.Fatal("empty header must not parse")
	}
	if _, ok := parseRetryAfter("-1"); ok {
		t.Fatal("negative seconds must not parse")
	}
	future := time.Now().Add(10 * time.Second).UTC().Format(http.TimeFormat)
	if d, ok := parseRetryAfter(future); !ok || d <= 0 {
		t.Fatalf("http date form = %v/%v", d, ok)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	client := NewClient(testClientConfig("http://127.0.0.1:0"),
		WithRetryBackoff(time.Second, 4*time.Second),
	)
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	for i, expected := range want {
		if got := client.backoffDelay(i + 1); got != expected {
			t.Fatalf("attempt %d delay = %v, want %v", i+1, got, expected)
		}
	}
}

func TestSanitizeJSONPayloadKeepsObjects(t *testing.T) {
	in := "```json\n{\"a\": 1}\n```"
	if got := sanitizeJSONPayload(in); !strings.HasPrefix(got, "{") || !strings.HasSuffix(got, "}") {
		t.Fatalf("sanitized = %q", got)
	}
}
