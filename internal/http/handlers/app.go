package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"dreamstream/internal/domain"
	"dreamstream/internal/infra"
	"dreamstream/internal/middleware"
	"dreamstream/internal/storage"
	"dreamstream/internal/studio"
)

// Studio is the coordinator surface driven by the HTTP API.
type Studio interface {
	Snapshot() studio.Snapshot
	Submit(cfg domain.GenerationConfig) error
	Cancel() error
	SelectHistoryEntry(id string) error
	RequestCredentialSelection(ctx context.Context) error
	DismissError() error
}

// CredentialStager receives the key typed into the selection form.
type CredentialStager interface {
	Stage(key string)
	Unstage()
}

// MediaSource opens fetched media by handle id.
type MediaSource interface {
	Open(id string) (storage.Handle, *os.File, error)
}

type App struct {
	Studio      Studio
	Credentials CredentialStager
	Media       MediaSource
	Logger      infra.Logger
}

func NewApp(s Studio, creds CredentialStager, media MediaSource, logger infra.Logger) *App {
	return &App{Studio: s, Credentials: creds, Media: media, Logger: logger}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes the error envelope with a message in the request locale.
func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, status, map[string]errorBody{
		"error": {Code: code, Message: localize(locale, code), Detail: detail},
	})
}

// fail maps coordinator and storage errors onto HTTP statuses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig):
		a.error(w, r, http.StatusBadRequest, codeInvalidConfig, err.Error())
	case errors.Is(err, domain.ErrBusy):
		a.error(w, r, http.StatusConflict, codeBusy, "")
	case errors.Is(err, domain.ErrAuthRequired):
		a.error(w, r, http.StatusConflict, codeCredentialRequired, "")
	case errors.Is(err, domain.ErrInvalidTransition):
		a.error(w, r, http.StatusConflict, codeInvalidState, "")
	case errors.Is(err, domain.ErrVideoNotFound), errors.Is(err, storage.ErrHandleNotFound):
		a.error(w, r, http.StatusNotFound, codeNotFound, "")
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Msg("handlers: request failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal, "")
	}
}

func isStateError(err error) bool {
	return errors.Is(err, domain.ErrBusy) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrAuthRequired)
}
