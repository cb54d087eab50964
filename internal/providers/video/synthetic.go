package video

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const syntheticScheme = "synthetic://"

// Mirrors the message the Gemini API uses for unknown operations.
var errNotFound = errors.New("Requested entity was not found.")

// Synthetic is an offline provider that finishes every job after a fixed
// number of status checks. It keeps the studio usable without a Gemini key.
type Synthetic struct {
	polls int

	mu   sync.Mutex
	jobs map[string]*syntheticJob
}

type syntheticJob struct {
	prompt    string
	remaining int
}

// NewSynthetic returns a provider whose jobs report done after polls status
// checks.
func NewSynthetic(polls int) *Synthetic {
	if polls < 0 {
		polls = 0
	}
	return &Synthetic{polls: polls, jobs: make(map[string]*syntheticJob)}
}

func (s *Synthetic) SubmitJob(ctx context.Context, req SubmitRequest) (*Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := "operations/synthetic-" + uuid.NewString()
	s.mu.Lock()
	s.jobs[name] = &syntheticJob{prompt: req.Prompt, remaining: s.polls}
	s.mu.Unlock()
	return s.snapshot(name)
}

func (s *Synthetic) PollJob(ctx context.Context, op *Operation) (*Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if op == nil {
		return nil, fmt.Errorf("synthetic: operation is required")
	}
	s.mu.Lock()
	job, ok := s.jobs[op.Name]
	if ok && job.remaining > 0 {
		job.remaining--
	}
	s.mu.Unlock()
	if !ok {
		return nil, errNotFound
	}
	return s.snapshot(op.Name)
}

func (s *Synthetic) snapshot(name string) (*Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[name]
	op := &Operation{Name: name, Done: job.remaining == 0}
	if op.Done {
		op.VideoURIs = []string{syntheticScheme + name}
	}
	return op, nil
}

func (s *Synthetic) Fetch(ctx context.Context, uri string) (*Media, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(uri, syntheticScheme)
	s.mu.Lock()
	job, ok := s.jobs[name]
	if ok {
		delete(s.jobs, name)
	}
	s.mu.Unlock()
	if !strings.HasPrefix(uri, syntheticScheme) || !ok {
		return nil, &StatusError{StatusCode: 404, Status: "404 Not Found"}
	}
	return &Media{Data: renderPlaceholder(name, job.prompt), MIMEType: "video/mp4"}, nil
}

func renderPlaceholder(name, prompt string) []byte {
	sum := sha256.Sum256([]byte(name + "|" + prompt))
	lines := []string{
		"Synthetic video placeholder",
		fmt.Sprintf("Seed: %s", hex.EncodeToString(sum[:])[:16]),
		fmt.Sprintf("Prompt: %s", strings.TrimSpace(prompt)),
	}
	return []byte(strings.Join(lines, "\n"))
}

var (
	_ Provider = (*Synthetic)(nil)
	_ Fetcher  = (*Synthetic)(nil)
)
