package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
	codes  []int
}

func (o *recordingObserver) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	o.mu.Lock()
	o.routes = append(o.routes, method+" "+route)
	o.codes = append(o.codes, status)
	o.mu.Unlock()
}

func TestLoggerRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	obs := &recordingObserver{}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(logger, obs))
	r.Get("/v1/media/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/media/abc-123", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if len(obs.routes) != 1 || obs.routes[0] != "GET /v1/media/{id}" || obs.codes[0] != http.StatusNotFound {
		t.Fatalf("observed %v %v", obs.routes, obs.codes)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["route"] != "/v1/media/{id}" || entry["request_id"] != "req-1" || entry["status"] != float64(404) {
		t.Fatalf("log entry = %v", entry)
	}
}

func TestRequestIDScopesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	h := hlog.NewHandler(logger)(RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	rid := rec.Header().Get(RequestIDHeader)
	if rid == "" {
		t.Fatal("missing response request id")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["request_id"] != rid {
		t.Fatalf("request_id = %v, want %s", entry["request_id"], rid)
	}
}

func TestRequestIDReplacesOversizedHeader(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, string(bytes.Repeat([]byte("x"), maxRequestIDLen+1)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); len(got) != 36 {
		t.Fatalf("request id = %q, want a fresh uuid", got)
	}
}
