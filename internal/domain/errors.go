package domain

import (
	"errors"
	"fmt"
)

// AuthRequiredMessage is the message carried by ErrAuthRequired.
const AuthRequiredMessage = "AUTH_REQUIRED"

var (
	ErrAuthRequired      = errors.New(AuthRequiredMessage)
	ErrInvalidConfig     = errors.New("invalid generation config")
	ErrBusy              = errors.New("a generation is already in progress")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrVideoNotFound     = errors.New("video not found")
)

// ErrorKind classifies workflow failures that are surfaced to the user.
type ErrorKind string

const (
	KindMissingAsset   ErrorKind = "missing_asset"
	KindDownloadFailed ErrorKind = "download_failed"
	KindTimeout        ErrorKind = "timeout"
	KindUnclassified   ErrorKind = "unclassified"
)

// GenerationError is a classified workflow failure.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// NewGenerationError builds a GenerationError with a formatted message.
func NewGenerationError(kind ErrorKind, err error, format string, args ...any) *GenerationError {
	return &GenerationError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the classification of err, KindUnclassified when err is not
// a GenerationError.
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return KindUnclassified
}
