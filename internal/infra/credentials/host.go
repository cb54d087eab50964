package credentials

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"dreamstream/internal/infra"
)

// KeyStore is the persistent backend consulted by Host. *Store satisfies it.
type KeyStore interface {
	GeminiAPIKey(ctx context.Context) (string, error)
	SetGeminiAPIKey(ctx context.Context, key string) error
}

// Host is the credential-selection bridge of the studio. The browser stages
// a key through the selection form; OpenSelectCredential completes the
// interaction by committing it. Without a staged key the interaction reloads
// whatever the backing store holds, which covers keys provisioned out of
// band.
type Host struct {
	mu       sync.RWMutex
	selected string
	staged   string
	// rejected is the last key the provider refused. Store reloads that
	// return it do not count as a selection.
	rejected string
	store    KeyStore
	logger   infra.Logger
}

// NewHost builds a Host seeded with an initial key (usually GEMINI_API_KEY).
// store may be nil.
func NewHost(initialKey string, store KeyStore, logger infra.Logger) *Host {
	return &Host{
		selected: strings.TrimSpace(initialKey),
		store:    store,
		logger:   logger,
	}
}

// Stage records the key entered by the user for the next selection.
func (h *Host) Stage(key string) {
	h.mu.Lock()
	h.staged = strings.TrimSpace(key)
	h.mu.Unlock()
}

// Unstage discards a staged key that was never committed.
func (h *Host) Unstage() {
	h.mu.Lock()
	h.staged = ""
	h.mu.Unlock()
}

// HasSelectedCredential reports whether a non-empty key is selected.
func (h *Host) HasSelectedCredential(ctx context.Context) (bool, error) {
	key, err := h.APIKey(ctx)
	if err != nil {
		return false, err
	}
	return key != "", nil
}

// OpenSelectCredential completes the selection interaction. It does not
// report whether a usable key resulted; callers re-check presence.
func (h *Host) OpenSelectCredential(ctx context.Context) error {
	h.mu.Lock()
	staged := h.staged
	h.staged = ""
	h.mu.Unlock()

	if staged == "" {
		if h.store == nil {
			return nil
		}
		key, err := h.store.GeminiAPIKey(ctx)
		if err != nil {
			return fmt.Errorf("credentials: reload key: %w", err)
		}
		if key != "" && !h.isRejected(key) {
			h.setSelected(key)
		}
		return nil
	}

	if h.store != nil {
		if err := h.store.SetGeminiAPIKey(ctx, staged); err != nil {
			// The key is still usable for this session.
			h.logger.Warn().Err(err).Msg("credentials: failed to persist selected key")
		}
	}
	h.mu.Lock()
	h.selected = staged
	h.rejected = ""
	h.mu.Unlock()
	h.logger.Info().Msg("credentials: api key selected")
	return nil
}

// ForgetSelectedCredential drops the selected key after the provider refused
// it. Presence stays false until a new key is staged or the store yields a
// different one.
func (h *Host) ForgetSelectedCredential(ctx context.Context) error {
	h.mu.Lock()
	if h.selected != "" {
		h.rejected = h.selected
	}
	h.selected = ""
	h.mu.Unlock()
	h.logger.Info().Msg("credentials: rejected api key forgotten")
	return nil
}

// APIKey returns the selected key, consulting the store when none is cached.
func (h *Host) APIKey(ctx context.Context) (string, error) {
	h.mu.RLock()
	key := h.selected
	h.mu.RUnlock()
	if key != "" || h.store == nil {
		return key, nil
	}

	stored, err := h.store.GeminiAPIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("credentials: load key: %w", err)
	}
	if stored == "" || h.isRejected(stored) {
		return "", nil
	}
	h.setSelected(stored)
	return stored, nil
}

func (h *Host) isRejected(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rejected != "" && h.rejected == strings.TrimSpace(key)
}

func (h *Host) setSelected(key string) {
	h.mu.Lock()
	h.selected = strings.TrimSpace(key)
	h.mu.Unlock()
}
