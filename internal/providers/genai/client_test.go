package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dreamstream/internal/providers/video"
)

type staticKeys string

func (k staticKeys) APIKey(ctx context.Context) (string, error) {
	return string(k), nil
}

type failingKeys struct{}

func (failingKeys) APIKey(ctx context.Context) (string, error) {
	return "", errors.New("store unavailable")
}

func newTestClient(t *testing.T, srv *httptest.Server, keys KeySource) *Client {
	t.Helper()
	client, err := NewClient(Options{
		Keys:       keys,
		BaseURL:    srv.URL + "/v1beta",
		Model:      "veo-test",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSubmitJobPayload(t *testing.T) {
	var captured veoPredictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v1beta/models/veo-test:predictLongRunning" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("key"); got != "secret" {
			t.Errorf("key = %q, want secret", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "models/veo-test/operations/op-1"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, staticKeys("secret"))
	op, err := client.SubmitJob(context.Background(), video.SubmitRequest{
		Prompt:      "a cat on a skateboard",
		Count:       1,
		Resolution:  "720p",
		AspectRatio: "16:9",
	})
	if err != nil {
		t.Fatalf("SubmitJob error: %v", err)
	}
	if op.Name != "models/veo-test/operations/op-1" || op.Done {
		t.Fatalf("unexpected operation %+v", op)
	}
	if len(captured.Instances) != 1 || captured.Instances[0].Prompt != "a cat on a skateboard" {
		t.Fatalf("instances = %+v", captured.Instances)
	}
	if captured.Parameters.AspectRatio != "16:9" || captured.Parameters.Resolution != "720p" || captured.Parameters.SampleCount != 1 {
		t.Fatalf("parameters = %+v", captured.Parameters)
	}
}

func TestPollJobParsesVideoURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/veo-test/operations/op-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"name": "models/veo-test/operations/op-1",
			"done": true,
			"response": {"generateVideoResponse": {"generatedSamples": [
				{"video": {"uri": "https://files.example.com/v1beta/files/abc:download?alt=media"}}
			]}}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, staticKeys("secret"))
	op, err := client.PollJob(context.Background(), &video.Operation{Name: "models/veo-test/operations/op-1"})
	if err != nil {
		t.Fatalf("PollJob error: %v", err)
	}
	if !op.Done {
		t.Fatal("expected done operation")
	}
	if got := op.FirstVideoURI(); got != "https://files.example.com/v1beta/files/abc:download?alt=media" {
		t.Fatalf("FirstVideoURI = %q", got)
	}
}

func TestPollJobSurfacesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, staticKeys("expired"))
	_, err := client.PollJob(context.Background(), &video.Operation{Name: "models/veo-test/operations/op-1"})
	if err == nil || !strings.Contains(err.Error(), "Requested entity was not found") {
		t.Fatalf("PollJob error = %v, want not-found message", err)
	}
}

func TestPollJobOperationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"op","done":true,"error":{"code":3,"message":"prompt rejected"}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, staticKeys("secret"))
	op, err := client.PollJob(context.Background(), &video.Operation{Name: "op"})
	if err != nil {
		t.Fatalf("PollJob error: %v", err)
	}
	if op.Error == nil || op.Error.Message != "prompt rejected" {
		t.Fatalf("operation error = %+v", op.Error)
	}
}

func TestFetchAppendsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("alt"); got != "media" {
			t.Errorf("alt = %q, want media", got)
		}
		if got := r.URL.Query().Get("key"); got != "secret" {
			t.Errorf("key = %q, want secret", got)
		}
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p'})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, staticKeys("secret"))
	media, err := client.Fetch(context.Background(), srv.URL+"/files/abc:download?alt=media")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if media.MIMEType != "video/mp4" || len(media.Data) != 8 {
		t.Fatalf("unexpected media %+v", media)
	}
}

func TestFetchReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, staticKeys("secret"))
	_, err := client.Fetch(context.Background(), srv.URL+"/files/abc")
	var statusErr *video.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Fetch error = %v, want StatusError", err)
	}
	if statusErr.Status != "503 Service Unavailable" {
		t.Fatalf("status = %q", statusErr.Status)
	}
}

func TestKeyResolutionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent without a resolvable key")
	}))
	defer srv.Close()

	client := newTestClient(t, srv, failingKeys{})
	if _, err := client.SubmitJob(context.Background(), video.SubmitRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected key resolution error")
	}
}

func TestNewClientRequiresKeys(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatal("expected error without key source")
	}
}
