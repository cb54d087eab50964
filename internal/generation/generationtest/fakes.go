// Package generationtest provides provider and scheduler doubles for
// workflow tests.
package generationtest

import (
	"context"
	"sync"
	"time"

	"dreamstream/internal/providers/video"
)

// Provider is a scripted video.Provider and video.Fetcher.
type Provider struct {
	mu sync.Mutex

	// SubmitErr fails the submission when set.
	SubmitErr error
	// Poll returns the operation for the n-th status check (1-based). When
	// nil every poll reports the job as done with VideoURI.
	Poll func(n int) (*video.Operation, error)
	// DoneOnSubmit completes the job in the submission response.
	DoneOnSubmit bool
	VideoURI     string

	// FetchErr fails the download when set; otherwise FetchData is returned.
	FetchErr  error
	FetchData []byte
	FetchMIME string

	submits []video.SubmitRequest
	polls   int
	fetches []string
}

// NewProvider returns a provider whose jobs complete on the first poll.
func NewProvider() *Provider {
	return &Provider{
		VideoURI:  "https://files.example.com/v1beta/files/clip:download?alt=media",
		FetchData: []byte("mp4-bytes"),
		FetchMIME: "video/mp4",
	}
}

func (p *Provider) SubmitJob(ctx context.Context, req video.SubmitRequest) (*video.Operation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submits = append(p.submits, req)
	if p.SubmitErr != nil {
		return nil, p.SubmitErr
	}
	op := &video.Operation{Name: "operations/test-op"}
	if p.DoneOnSubmit {
		op.Done = true
		op.VideoURIs = []string{p.VideoURI}
	}
	return op, nil
}

func (p *Provider) PollJob(ctx context.Context, op *video.Operation) (*video.Operation, error) {
	p.mu.Lock()
	p.polls++
	n := p.polls
	poll := p.Poll
	uri := p.VideoURI
	p.mu.Unlock()
	if poll != nil {
		return poll(n)
	}
	return &video.Operation{Name: op.Name, Done: true, VideoURIs: []string{uri}}, nil
}

func (p *Provider) Fetch(ctx context.Context, uri string) (*video.Media, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches = append(p.fetches, uri)
	if p.FetchErr != nil {
		return nil, p.FetchErr
	}
	return &video.Media{Data: append([]byte(nil), p.FetchData...), MIMEType: p.FetchMIME}, nil
}

// Submits returns every submission received so far.
func (p *Provider) Submits() []video.SubmitRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]video.SubmitRequest(nil), p.submits...)
}

// Polls returns the number of status checks received so far.
func (p *Provider) Polls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.polls
}

// Fetches returns every fetched uri.
func (p *Provider) Fetches() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.fetches...)
}

// NeverDone is a Poll script for a job that never completes.
func NeverDone(n int) (*video.Operation, error) {
	return &video.Operation{Name: "operations/test-op"}, nil
}

// InstantScheduler records requested sleeps and returns immediately.
type InstantScheduler struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *InstantScheduler) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return nil
}

// Sleeps returns the recorded sleep durations.
func (s *InstantScheduler) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

// ManualScheduler parks every Sleep until the test advances simulated time.
type ManualScheduler struct {
	asleep chan time.Duration
	wake   chan struct{}
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{asleep: make(chan time.Duration), wake: make(chan struct{})}
}

func (s *ManualScheduler) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case s.asleep <- d:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-s.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitAsleep blocks until the run is suspended and returns the requested
// interval. ok is false when nothing went to sleep within timeout.
func (s *ManualScheduler) WaitAsleep(timeout time.Duration) (d time.Duration, ok bool) {
	select {
	case d = <-s.asleep:
		return d, true
	case <-time.After(timeout):
		return 0, false
	}
}

// Advance releases the suspended run.
func (s *ManualScheduler) Advance() {
	s.wake <- struct{}{}
}
