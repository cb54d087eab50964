package studio

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dreamstream/internal/domain"
	"dreamstream/internal/generation"
)

// FallbackErrorMessage is surfaced when a failure carries no message.
const FallbackErrorMessage = "An unexpected error occurred during generation."

// State is the single application state container. Values are treated as
// immutable: Reduce always returns a fresh History slice when it changes.
type State struct {
	Status       domain.AppStatus
	ErrorMessage string
	// History is ordered newest first.
	History   []domain.GeneratedVideo
	CurrentID string
	Progress  *generation.Progress
}

// InitialState is the state before the credential check completes.
func InitialState() State {
	return State{Status: domain.StatusCheckingCredential}
}

// Current returns the selected history entry.
func (s State) Current() (domain.GeneratedVideo, bool) {
	return s.find(s.CurrentID)
}

func (s State) find(id string) (domain.GeneratedVideo, bool) {
	if id == "" {
		return domain.GeneratedVideo{}, false
	}
	for _, v := range s.History {
		if v.ID == id {
			return v, true
		}
	}
	return domain.GeneratedVideo{}, false
}

// Event is an input to Reduce.
type Event interface {
	event()
}

type (
	// CredentialChecked reports the startup credential check.
	CredentialChecked struct{ Present bool }
	// SelectionCompleted reports a finished selection interaction and the
	// re-verified credential presence.
	SelectionCompleted struct{ Present bool }
	// GenerationStarted marks the submission of cfg.
	GenerationStarted struct {
		Config domain.GenerationConfig
		At     time.Time
	}
	// GenerationProgressed carries workflow progress of the in-flight run.
	GenerationProgressed struct{ Progress generation.Progress }
	// GenerationSucceeded carries the produced video.
	GenerationSucceeded struct{ Video domain.GeneratedVideo }
	// GenerationFailed carries the workflow failure.
	GenerationFailed struct{ Err error }
	// GenerationCancelled reports an aborted run.
	GenerationCancelled struct{}
	// HistorySelected selects a history entry for the preview pane.
	HistorySelected struct{ ID string }
	// ErrorDismissed clears the error state.
	ErrorDismissed struct{}
)

func (CredentialChecked) event()    {}
func (SelectionCompleted) event()   {}
func (GenerationStarted) event()    {}
func (GenerationProgressed) event() {}
func (GenerationSucceeded) event()  {}
func (GenerationFailed) event()     {}
func (GenerationCancelled) event()  {}
func (HistorySelected) event()      {}
func (ErrorDismissed) event()       {}

// Reduce applies ev to s. It never mutates s; on error the returned state is
// s unchanged.
func Reduce(s State, ev Event) (State, error) {
	next := s
	switch e := ev.(type) {
	case CredentialChecked:
		if s.Status != domain.StatusCheckingCredential {
			return s, invalid(s, ev)
		}
		next.Status = credentialStatus(e.Present)

	case SelectionCompleted:
		switch s.Status {
		case domain.StatusNeedCredential, domain.StatusIdle, domain.StatusError:
		case domain.StatusGenerating:
			return s, domain.ErrBusy
		default:
			return s, invalid(s, ev)
		}
		next.Status = credentialStatus(e.Present)
		next.ErrorMessage = ""

	case GenerationStarted:
		switch s.Status {
		case domain.StatusIdle, domain.StatusError:
		case domain.StatusGenerating:
			return s, domain.ErrBusy
		case domain.StatusNeedCredential:
			return s, domain.ErrAuthRequired
		default:
			return s, invalid(s, ev)
		}
		next.Status = domain.StatusGenerating
		next.ErrorMessage = ""
		next.Progress = &generation.Progress{StartedAt: e.At, UpdatedAt: e.At}

	case GenerationProgressed:
		if s.Status != domain.StatusGenerating {
			return s, invalid(s, ev)
		}
		p := e.Progress
		next.Progress = &p

	case GenerationSucceeded:
		if s.Status != domain.StatusGenerating {
			return s, invalid(s, ev)
		}
		history := make([]domain.GeneratedVideo, 0, len(s.History)+1)
		history = append(history, e.Video)
		history = append(history, s.History...)
		next.History = history
		next.CurrentID = e.Video.ID
		next.Status = domain.StatusIdle
		next.Progress = nil

	case GenerationFailed:
		if s.Status != domain.StatusGenerating {
			return s, invalid(s, ev)
		}
		next.Progress = nil
		if errors.Is(e.Err, domain.ErrAuthRequired) {
			next.Status = domain.StatusNeedCredential
			break
		}
		next.Status = domain.StatusError
		next.ErrorMessage = FallbackErrorMessage
		if e.Err != nil && strings.TrimSpace(e.Err.Error()) != "" {
			next.ErrorMessage = e.Err.Error()
		}

	case GenerationCancelled:
		if s.Status != domain.StatusGenerating {
			return s, invalid(s, ev)
		}
		next.Status = domain.StatusIdle
		next.Progress = nil

	case HistorySelected:
		if s.Status == domain.StatusGenerating {
			return s, domain.ErrBusy
		}
		if _, ok := s.find(e.ID); !ok {
			return s, fmt.Errorf("%w: %s", domain.ErrVideoNotFound, e.ID)
		}
		next.CurrentID = e.ID

	case ErrorDismissed:
		if s.Status != domain.StatusError {
			return s, invalid(s, ev)
		}
		next.Status = domain.StatusIdle
		next.ErrorMessage = ""

	default:
		return s, fmt.Errorf("%w: unknown event %T", domain.ErrInvalidTransition, ev)
	}
	return next, nil
}

func credentialStatus(present bool) domain.AppStatus {
	if present {
		return domain.StatusIdle
	}
	return domain.StatusNeedCredential
}

func invalid(s State, ev Event) error {
	return fmt.Errorf("%w: %T in %s", domain.ErrInvalidTransition, ev, s.Status)
}
