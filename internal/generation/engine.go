// Package generation drives a single video-generation request from job
// submission to a locally playable media handle.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dreamstream/internal/domain"
	"dreamstream/internal/infra"
	"dreamstream/internal/providers/video"
	"dreamstream/internal/storage"
)

const (
	DefaultPollInterval = 8 * time.Second

	// notFoundMarker is how the provider reports an invalid or expired key.
	notFoundMarker = "Requested entity was not found"

	missingAssetMessage = "Video generation failed: No URI returned."
)

// MediaSink turns fetched bytes into a local handle.
type MediaSink interface {
	Put(ctx context.Context, id string, data []byte, mimeType string) (storage.Handle, error)
}

// Recorder receives workflow measurements.
type Recorder interface {
	PollCompleted()
	RunFinished(outcome string, elapsed time.Duration)
}

// Progress describes the in-flight run after each step.
type Progress struct {
	Phase     domain.Phase `json:"phase"`
	Operation string       `json:"operation,omitempty"`
	Polls     int          `json:"polls"`
	StartedAt time.Time    `json:"started_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Observer is notified after every phase change and status check.
type Observer func(Progress)

// Options tunes an Engine. Zero values fall back to production defaults.
type Options struct {
	Model        string
	PollInterval time.Duration
	// MaxPolls bounds the number of status checks; zero polls forever.
	MaxPolls  int
	Scheduler Scheduler
	Now       func() time.Time
	NewID     func() string
	Logger    *infra.Logger
	Recorder  Recorder
}

// Engine runs the submit -> poll -> resolve -> fetch workflow.
type Engine struct {
	provider  video.Provider
	fetcher   video.Fetcher
	media     MediaSink
	model     string
	interval  time.Duration
	maxPolls  int
	scheduler Scheduler
	now       func() time.Time
	newID     func() string
	logger    infra.Logger
	recorder  Recorder
}

func NewEngine(provider video.Provider, fetcher video.Fetcher, media MediaSink, opts Options) *Engine {
	e := &Engine{
		provider:  provider,
		fetcher:   fetcher,
		media:     media,
		model:     opts.Model,
		interval:  opts.PollInterval,
		maxPolls:  opts.MaxPolls,
		scheduler: opts.Scheduler,
		now:       opts.Now,
		newID:     opts.NewID,
		logger:    infra.NopLogger(),
		recorder:  opts.Recorder,
	}
	if opts.Logger != nil {
		e.logger = *opts.Logger
	}
	if e.interval <= 0 {
		e.interval = DefaultPollInterval
	}
	if e.maxPolls < 0 {
		e.maxPolls = 0
	}
	if e.scheduler == nil {
		e.scheduler = TimerScheduler{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Run executes one workflow run for cfg. observe may be nil.
//
// Submission and polling failures that carry the provider's not-found marker
// are returned as domain.ErrAuthRequired. Other failures are returned either
// as *domain.GenerationError or with their original message.
func (e *Engine) Run(ctx context.Context, cfg domain.GenerationConfig, observe Observer) (*domain.GeneratedVideo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &run{engine: e, observe: observe, progress: Progress{StartedAt: e.now()}}

	result, err := r.execute(ctx, cfg)
	elapsed := e.now().Sub(r.progress.StartedAt)
	if err != nil {
		r.report(domain.PhaseFailed)
		e.logger.Warn().
			Err(err).
			Str("operation", r.progress.Operation).
			Int("polls", r.progress.Polls).
			Str("kind", string(domain.KindOf(err))).
			Msg("generation: run failed")
		e.record(outcomeOf(err), elapsed)
		return nil, err
	}
	r.report(domain.PhaseResolved)
	e.logger.Info().
		Str("video_id", result.ID).
		Str("operation", r.progress.Operation).
		Int("polls", r.progress.Polls).
		Dur("elapsed", elapsed).
		Msg("generation: run resolved")
	e.record("success", elapsed)
	return result, nil
}

type run struct {
	engine   *Engine
	observe  Observer
	progress Progress
}

func (r *run) execute(ctx context.Context, cfg domain.GenerationConfig) (*domain.GeneratedVideo, error) {
	e := r.engine
	op, err := e.provider.SubmitJob(ctx, video.SubmitRequest{
		Model:       e.model,
		Prompt:      cfg.Prompt,
		Count:       1,
		Resolution:  string(cfg.Resolution),
		AspectRatio: string(cfg.AspectRatio),
	})
	if err != nil {
		return nil, classify(ctx, err)
	}
	if op == nil {
		return nil, errors.New("provider returned no operation")
	}
	r.progress.Operation = op.Name
	r.report(domain.PhaseSubmitted)

	for !op.Done {
		if e.maxPolls > 0 && r.progress.Polls >= e.maxPolls {
			return nil, domain.NewGenerationError(domain.KindTimeout, nil,
				"video generation timed out after %d status checks", r.progress.Polls)
		}
		if err := e.scheduler.Sleep(ctx, e.interval); err != nil {
			return nil, err
		}
		next, err := e.provider.PollJob(ctx, op)
		r.progress.Polls++
		if e.recorder != nil {
			e.recorder.PollCompleted()
		}
		if err != nil {
			return nil, classify(ctx, err)
		}
		if next == nil {
			return nil, errors.New("provider returned no operation")
		}
		op = next
		r.report(domain.PhasePolling)
	}

	if op.Error != nil {
		return nil, classify(ctx, domain.NewGenerationError(domain.KindUnclassified, op.Error,
			"Video generation failed: %s", op.Error.Message))
	}

	uri := op.FirstVideoURI()
	if uri == "" {
		return nil, domain.NewGenerationError(domain.KindMissingAsset, nil, missingAssetMessage)
	}

	media, err := e.fetcher.Fetch(ctx, uri)
	if err != nil {
		var statusErr *video.StatusError
		if errors.As(err, &statusErr) {
			return nil, domain.NewGenerationError(domain.KindDownloadFailed, err,
				"Failed to download video: %s", statusErr.Status)
		}
		return nil, err
	}

	id := e.newID()
	handle, err := e.media.Put(ctx, id, media.Data, media.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}

	return &domain.GeneratedVideo{
		ID:             id,
		MediaReference: handle.URL,
		Prompt:         cfg.Prompt,
		CreatedAt:      e.now(),
		Config:         cfg,
		MIMEType:       handle.MIMEType,
		Size:           handle.Size,
	}, nil
}

func (r *run) report(phase domain.Phase) {
	r.progress.Phase = phase
	r.progress.UpdatedAt = r.engine.now()
	if r.observe != nil {
		r.observe(r.progress)
	}
}

func (e *Engine) record(outcome string, elapsed time.Duration) {
	if e.recorder != nil {
		e.recorder.RunFinished(outcome, elapsed)
	}
}

// classify maps provider failures during submission or polling onto the
// workflow's error taxonomy.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	if strings.Contains(err.Error(), notFoundMarker) {
		return fmt.Errorf("%w: %v", domain.ErrAuthRequired, err)
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return string(domain.KindOf(err))
	}
}
