package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"dreamstream/internal/domain"
	"dreamstream/internal/studio"
)

// DefaultRecentLimit is the size of the recent list when no limit is given.
const DefaultRecentLimit = 5

const maxBodyBytes = 64 << 10

type studioResponse struct {
	studio.Snapshot
	HistoryTotal int `json:"history_total"`
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

// StudioState returns the coordinator snapshot. limit caps the history list;
// limit=0 returns every entry.
func (a *App) StudioState(w http.ResponseWriter, r *http.Request) {
	limit := DefaultRecentLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, r, http.StatusBadRequest, codeBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	a.writeStudio(w, http.StatusOK, limit)
}

// writeStudio writes the current snapshot with at most limit history entries.
func (a *App) writeStudio(w http.ResponseWriter, code, limit int) {
	snap := a.Studio.Snapshot()
	resp := studioResponse{Snapshot: snap, HistoryTotal: len(snap.History)}
	if limit > 0 && len(resp.History) > limit {
		resp.History = resp.History[:limit]
	}
	a.json(w, code, resp)
}

func (a *App) GenerationsCreate(w http.ResponseWriter, r *http.Request) {
	var cfg domain.GenerationConfig
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cfg); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, "")
		return
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = domain.AspectLandscape
	}
	if cfg.Resolution == "" {
		cfg.Resolution = domain.Resolution720p
	}
	if err := a.Studio.Submit(cfg); err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeStudio(w, http.StatusAccepted, DefaultRecentLimit)
}

func (a *App) GenerationsCancel(w http.ResponseWriter, r *http.Request) {
	if err := a.Studio.Cancel(); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *App) HistorySelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, r, http.StatusBadRequest, codeBadRequest, "id required")
		return
	}
	if err := a.Studio.SelectHistoryEntry(id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeStudio(w, http.StatusOK, DefaultRecentLimit)
}

// CredentialSelect stages the submitted key, if any, and runs the selection
// interaction. An empty body reloads the persisted key.
func (a *App) CredentialSelect(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			a.error(w, r, http.StatusBadRequest, codeBadRequest, "")
			return
		}
	}
	if a.Studio.Snapshot().Status == domain.StatusGenerating {
		a.fail(w, r, domain.ErrBusy)
		return
	}
	staged := false
	if key := strings.TrimSpace(req.APIKey); key != "" && a.Credentials != nil {
		a.Credentials.Stage(key)
		staged = true
	}
	if err := a.Studio.RequestCredentialSelection(r.Context()); err != nil {
		// A refused key must not be committed by a later empty selection.
		if staged {
			a.Credentials.Unstage()
		}
		switch {
		case isStateError(err):
			a.fail(w, r, err)
		default:
			a.Logger.Warn().Err(err).Msg("handlers: credential selection failed")
			a.error(w, r, http.StatusBadGateway, codeCredentialFailed, "")
		}
		return
	}
	a.writeStudio(w, http.StatusOK, DefaultRecentLimit)
}

func (a *App) ErrorDismiss(w http.ResponseWriter, r *http.Request) {
	if err := a.Studio.DismissError(); err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeStudio(w, http.StatusOK, DefaultRecentLimit)
}
