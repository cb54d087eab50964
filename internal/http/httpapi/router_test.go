package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dreamstream/internal/generation"
	"dreamstream/internal/generation/generationtest"
	"dreamstream/internal/http/handlers"
	"dreamstream/internal/infra"
	"dreamstream/internal/infra/credentials"
	"dreamstream/internal/metrics"
	"dreamstream/internal/middleware"
	"dreamstream/internal/providers/video"
	"dreamstream/internal/storage"
	"dreamstream/internal/studio"
)

type stack struct {
	srv   *httptest.Server
	coord *studio.Coordinator
	media *storage.MediaStore
}

func newStack(t *testing.T, initialKey string) *stack {
	t.Helper()
	logger := infra.NopLogger()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	media := storage.NewMediaStore(files, "/v1/media/")
	collector := metrics.NewCollector("dreamstream")
	provider := video.NewSynthetic(2)
	host := credentials.NewHost(initialKey, nil, logger)

	engine := generation.NewEngine(provider, provider, media, generation.Options{
		Scheduler: &generationtest.InstantScheduler{},
		MaxPolls:  10,
		Recorder:  collector,
		Logger:    &logger,
	})
	coord := studio.NewCoordinator(studio.NewGate(host, &logger), engine, studio.Options{
		Logger:   &logger,
		Recorder: collector,
		Media:    media,
	})
	coord.Start(context.Background())

	app := handlers.NewApp(coord, host, media, logger)
	srv := httptest.NewServer(NewRouter(app, Options{
		Logger:         logger,
		Metrics:        collector,
		Limiter:        middleware.NewRateLimiter(100),
		AllowedOrigins: []string{"http://localhost:5173"},
		DefaultLocale:  "en",
	}))
	t.Cleanup(func() {
		srv.Close()
		_ = coord.Close()
	})
	return &stack{srv: srv, coord: coord, media: media}
}

func (s *stack) call(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

type snapshot struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	History []struct {
		ID             string `json:"id"`
		MediaReference string `json:"media_reference"`
		Prompt         string `json:"prompt"`
	} `json:"history"`
	Current *struct {
		ID string `json:"id"`
	} `json:"current"`
}

func (s *stack) state(t *testing.T) snapshot {
	t.Helper()
	resp, body := s.call(t, http.MethodGet, "/v1/studio", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /v1/studio = %d", resp.StatusCode)
	}
	var snap snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func TestStudioFlowEndToEnd(t *testing.T) {
	s := newStack(t, "")

	if got := s.state(t).Status; got != "need_credential" {
		t.Fatalf("initial status = %s", got)
	}
	resp, _ := s.call(t, http.MethodPost, "/v1/generations", `{"prompt":"a cat on a skateboard"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("submit without key = %d, want 409", resp.StatusCode)
	}

	resp, _ = s.call(t, http.MethodPost, "/v1/credential/select", `{"api_key":"AIza-test"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("credential select = %d", resp.StatusCode)
	}
	if got := s.state(t).Status; got != "idle" {
		t.Fatalf("status after selection = %s", got)
	}

	resp, _ = s.call(t, http.MethodPost, "/v1/generations", `{"prompt":"a cat on a skateboard","aspect_ratio":"16:9","resolution":"720p"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit = %d", resp.StatusCode)
	}
	s.coord.Wait()

	snap := s.state(t)
	if snap.Status != "idle" || len(snap.History) != 1 || snap.Current == nil {
		t.Fatalf("snapshot after run = %+v", snap)
	}
	entry := snap.History[0]
	if entry.Prompt != "a cat on a skateboard" || snap.Current.ID != entry.ID {
		t.Fatalf("entry = %+v current = %+v", entry, snap.Current)
	}

	resp, body := s.call(t, http.MethodGet, entry.MediaReference, "")
	if resp.StatusCode != http.StatusOK || len(body) == 0 {
		t.Fatalf("media = %d (%d bytes)", resp.StatusCode, len(body))
	}
	if got := resp.Header.Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("media Content-Type = %q", got)
	}

	resp, body = s.call(t, http.MethodGet, "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`dreamstream_generation_runs_total{outcome="success"} 1`,
		`dreamstream_history_entries 1`,
		`dreamstream_http_requests_total{method="POST",route="/v1/generations",status="202"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics missing %q", want)
		}
	}

	if err := s.coord.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if resp, _ := s.call(t, http.MethodGet, entry.MediaReference, ""); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("media after teardown = %d, want 404", resp.StatusCode)
	}
}

func TestRouterServesDocsAndHeaders(t *testing.T) {
	s := newStack(t, "AIza-test")

	resp, body := s.call(t, http.MethodGet, "/v1/docs", "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "/v1/openapi.json") {
		t.Fatalf("docs = %d", resp.StatusCode)
	}
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Fatal("missing request id header")
	}

	req, _ := http.NewRequest(http.MethodOptions, s.srv.URL+"/v1/generations", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre, err := s.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	pre.Body.Close()
	if pre.StatusCode != http.StatusNoContent || pre.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("preflight = %d %v", pre.StatusCode, pre.Header)
	}
}
