package studio

import (
	"context"

	"dreamstream/internal/infra"
)

// CredentialHost is the host environment's credential-selection bridge.
type CredentialHost interface {
	HasSelectedCredential(ctx context.Context) (bool, error)
	OpenSelectCredential(ctx context.Context) error
	// ForgetSelectedCredential drops a key the provider refused.
	ForgetSelectedCredential(ctx context.Context) error
}

// Gate answers whether a usable credential is selected.
type Gate struct {
	host   CredentialHost
	logger infra.Logger
}

func NewGate(host CredentialHost, logger *infra.Logger) *Gate {
	g := &Gate{host: host, logger: infra.NopLogger()}
	if logger != nil {
		g.logger = *logger
	}
	return g
}

// Check never fails: host errors are logged and reported as absent.
func (g *Gate) Check(ctx context.Context) bool {
	present, err := g.host.HasSelectedCredential(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Msg("studio: credential check failed")
		return false
	}
	return present
}

// RequestSelection runs the host selection interaction. Completion says
// nothing about whether a credential was chosen.
func (g *Gate) RequestSelection(ctx context.Context) error {
	return g.host.OpenSelectCredential(ctx)
}

// Invalidate forgets the selected credential so later checks report it
// absent. Failures are logged.
func (g *Gate) Invalidate(ctx context.Context) {
	if err := g.host.ForgetSelectedCredential(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("studio: credential invalidation failed")
	}
}
