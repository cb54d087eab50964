// Package studio owns the application state of the video studio: the
// credential gate, the status machine and the generation history.
package studio

import (
	"context"
	"errors"
	"sync"
	"time"

	"dreamstream/internal/domain"
	"dreamstream/internal/generation"
	"dreamstream/internal/infra"
)

// Generator runs one generation workflow. *generation.Engine satisfies it.
type Generator interface {
	Run(ctx context.Context, cfg domain.GenerationConfig, observe generation.Observer) (*domain.GeneratedVideo, error)
}

// MediaReleaser frees every media handle produced during the session.
type MediaReleaser interface {
	ReleaseAll() error
}

// Recorder receives state measurements.
type Recorder interface {
	Transition(from, to string)
	HistorySize(n int)
}

type Options struct {
	Logger   *infra.Logger
	Recorder Recorder
	Media    MediaReleaser
	Now      func() time.Time
}

// Snapshot is a read-only copy of the coordinator state.
type Snapshot struct {
	Status   domain.AppStatus        `json:"status"`
	Error    string                  `json:"error,omitempty"`
	History  []domain.GeneratedVideo `json:"history"`
	Current  *domain.GeneratedVideo  `json:"current,omitempty"`
	Progress *generation.Progress    `json:"progress,omitempty"`
}

// Coordinator serialises every state change through Reduce. At most one
// generation runs at a time.
type Coordinator struct {
	gate      *Gate
	generator Generator
	media     MediaReleaser
	recorder  Recorder
	logger    infra.Logger
	now       func() time.Time

	base context.Context
	stop context.CancelFunc

	mu        sync.Mutex
	state     State
	cancelRun context.CancelFunc
	runDone   chan struct{}
	// selecting is set while a credential selection interaction runs.
	selecting bool
}

func NewCoordinator(gate *Gate, generator Generator, opts Options) *Coordinator {
	base, stop := context.WithCancel(context.Background())
	c := &Coordinator{
		gate:      gate,
		generator: generator,
		media:     opts.Media,
		recorder:  opts.Recorder,
		logger:    infra.NopLogger(),
		now:       opts.Now,
		base:      base,
		stop:      stop,
		state:     InitialState(),
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Start runs the startup credential check and returns the resulting status.
func (c *Coordinator) Start(ctx context.Context) domain.AppStatus {
	present := c.gate.Check(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.applyLocked(CredentialChecked{Present: present}); err != nil {
		c.logger.Warn().Err(err).Msg("studio: start ignored")
	}
	return c.state.Status
}

// Submit validates cfg and starts a generation in the background. It
// returns domain.ErrBusy while another generation runs.
func (c *Coordinator) Submit(cfg domain.GenerationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selecting {
		return domain.ErrBusy
	}
	if err := c.applyLocked(GenerationStarted{Config: cfg, At: c.now()}); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	c.cancelRun = cancel
	c.runDone = done

	c.logger.Info().
		Str("aspect_ratio", string(cfg.AspectRatio)).
		Str("resolution", string(cfg.Resolution)).
		Msg("studio: generation submitted")

	go c.execute(ctx, cancel, cfg, done)
	return nil
}

func (c *Coordinator) execute(ctx context.Context, cancel context.CancelFunc, cfg domain.GenerationConfig, done chan struct{}) {
	defer close(done)
	defer cancel()

	video, err := c.generator.Run(ctx, cfg, c.observe)
	if errors.Is(err, domain.ErrAuthRequired) {
		c.gate.Invalidate(c.base)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelRun = nil

	var ev Event
	switch {
	case err == nil:
		ev = GenerationSucceeded{Video: *video}
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		ev = GenerationCancelled{}
	default:
		ev = GenerationFailed{Err: err}
	}
	if applyErr := c.applyLocked(ev); applyErr != nil {
		c.logger.Error().Err(applyErr).Msg("studio: dropped generation result")
	}
}

func (c *Coordinator) observe(p generation.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status != domain.StatusGenerating {
		return
	}
	_ = c.applyLocked(GenerationProgressed{Progress: p})
}

// Wait blocks until the current generation, if any, has settled.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	done := c.runDone
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Cancel aborts the in-flight generation. The state returns to idle once
// the run has unwound.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	cancel := c.cancelRun
	status := c.state.Status
	c.mu.Unlock()
	if status != domain.StatusGenerating || cancel == nil {
		return domain.ErrInvalidTransition
	}
	cancel()
	c.logger.Info().Msg("studio: generation cancel requested")
	return nil
}

// SelectHistoryEntry shows an earlier video in the preview pane.
func (c *Coordinator) SelectHistoryEntry(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(HistorySelected{ID: id})
}

// RequestCredentialSelection runs the host selection interaction and then
// re-checks whether a credential is present. Submissions are refused with
// domain.ErrBusy until it returns.
func (c *Coordinator) RequestCredentialSelection(ctx context.Context) error {
	c.mu.Lock()
	if c.selecting {
		c.mu.Unlock()
		return domain.ErrBusy
	}
	switch c.state.Status {
	case domain.StatusNeedCredential, domain.StatusIdle, domain.StatusError:
	case domain.StatusGenerating:
		c.mu.Unlock()
		return domain.ErrBusy
	default:
		c.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	c.selecting = true
	c.mu.Unlock()

	err := c.gate.RequestSelection(ctx)
	present := err == nil && c.gate.Check(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.selecting = false
	if err != nil {
		c.logger.Warn().Err(err).Msg("studio: credential selection failed")
		return err
	}
	return c.applyLocked(SelectionCompleted{Present: present})
}

// DismissError leaves the error state.
func (c *Coordinator) DismissError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applyLocked(ErrorDismissed{})
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()

	snap := Snapshot{
		Status:  s.Status,
		Error:   s.ErrorMessage,
		History: append([]domain.GeneratedVideo{}, s.History...),
	}
	if v, ok := s.Current(); ok {
		snap.Current = &v
	}
	if s.Progress != nil {
		p := *s.Progress
		snap.Progress = &p
	}
	return snap
}

// Close cancels any running generation, waits for it and releases every
// media handle.
func (c *Coordinator) Close() error {
	c.stop()
	c.Wait()
	if c.media == nil {
		return nil
	}
	return c.media.ReleaseAll()
}

func (c *Coordinator) applyLocked(ev Event) error {
	next, err := Reduce(c.state, ev)
	if err != nil {
		return err
	}
	prev := c.state
	c.state = next

	if prev.Status != next.Status {
		c.logger.Debug().
			Str("from", string(prev.Status)).
			Str("to", string(next.Status)).
			Msg("studio: status changed")
		if c.recorder != nil {
			c.recorder.Transition(string(prev.Status), string(next.Status))
		}
	}
	if len(prev.History) != len(next.History) && c.recorder != nil {
		c.recorder.HistorySize(len(next.History))
	}
	return nil
}
