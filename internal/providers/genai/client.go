package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dreamstream/internal/infra"
	"dreamstream/internal/providers/video"
)

// KeySource yields the API key attached to every request. The key can change
// while the process runs, so it is resolved per call.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// Options controls how the Gemini client is configured.
type Options struct {
	Keys       KeySource
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to the Gemini long-running video endpoints: predictLongRunning
// to submit, the operations resource to poll and the files endpoint to
// download the generated clip.
type Client struct {
	keys       KeySource
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type veoInstance struct {
	Prompt string `json:"prompt"`
}

type veoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	SampleCount int    `json:"sampleCount,omitempty"`
}

type veoPredictRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoOperation struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		GenerateVideoResponse *struct {
			GeneratedSamples []struct {
				Video *struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	if opts.Keys == nil {
		return nil, fmt.Errorf("genai: key source is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "veo-3.1-fast-generate-preview"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	return &Client{
		keys:       opts.Keys,
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Veo model identifier.
func (c *Client) Model() string {
	return c.model
}

// SubmitJob starts a long-running generation. req.Model overrides the
// configured model when set.
func (c *Client) SubmitJob(ctx context.Context, req video.SubmitRequest) (*video.Operation, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	payload := veoPredictRequest{
		Instances: []veoInstance{{Prompt: strings.TrimSpace(req.Prompt)}},
		Parameters: veoParameters{
			AspectRatio: req.AspectRatio,
			Resolution:  req.Resolution,
			SampleCount: count,
		},
	}

	var op veoOperation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(model))
	if err := c.invokeGemini(ctx, http.MethodPost, path, payload, &op); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("model", model).
		Str("operation", op.Name).
		Msg("genai: video job submitted")

	return op.normalize(), nil
}

// PollJob re-reads the operation by name.
func (c *Client) PollJob(ctx context.Context, op *video.Operation) (*video.Operation, error) {
	if op == nil || strings.TrimSpace(op.Name) == "" {
		return nil, fmt.Errorf("genai: operation name is required")
	}
	var latest veoOperation
	if err := c.invokeGemini(ctx, http.MethodGet, "/"+strings.TrimLeft(op.Name, "/"), nil, &latest); err != nil {
		return nil, err
	}
	if latest.Name == "" {
		latest.Name = op.Name
	}
	return latest.normalize(), nil
}

// Fetch downloads the asset behind uri, appending the API key as the key
// query parameter. Non-success statuses are returned as *video.StatusError.
func (c *Client) Fetch(ctx context.Context, uri string) (*video.Media, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &video.StatusError{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "video/mp4"
	}
	c.logger.Debug().Int("bytes", len(blob)).Str("mime", mime).Msg("genai: video downloaded")
	return &video.Media{Data: blob, MIMEType: mime}, nil
}

func (c *Client) invokeGemini(ctx context.Context, method, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		if len(data) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return fmt.Errorf("resolve api key: %w", err)
	}
	if key == "" {
		return nil
	}
	q := req.URL.Query()
	q.Set("key", key)
	req.URL.RawQuery = q.Encode()
	return nil
}

func (o veoOperation) normalize() *video.Operation {
	op := &video.Operation{Name: o.Name, Done: o.Done}
	if o.Error != nil {
		op.Error = &video.OperationError{Code: o.Error.Code, Message: o.Error.Message}
	}
	if o.Response == nil || o.Response.GenerateVideoResponse == nil {
		return op
	}
	for _, sample := range o.Response.GenerateVideoResponse.GeneratedSamples {
		if sample.Video != nil && strings.TrimSpace(sample.Video.URI) != "" {
			op.VideoURIs = append(op.VideoURIs, sample.Video.URI)
		}
	}
	return op
}

func statusText(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

var (
	_ video.Provider = (*Client)(nil)
	_ video.Fetcher  = (*Client)(nil)
)
