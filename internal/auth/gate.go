// README: Identity gate; resolves credentials and enforces session-epoch and tenant-freeze rules.
package auth

import (
	"context"
	"errors"

	"github.com/zeeshanakhtar012/food-delivery-app-sub000/internal/types"
)

var (
	ErrSessionSuperseded = errors.New("session superseded")
	ErrFrozenTenant      = errors.New("tenant is frozen")
)

// Epochs is the session-epoch lookup the gate compares against.
type Epochs interface {
	Current(ctx context.Context, id types.ID) (int64, error)
}

// Tenants exposes tenant suspension state.
type Tenants interface {
	Frozen(ctx context.Context, id types.ID) (bool, error)
}

// Gate resolves an inbound credential into a Principal and rejects stale
// sessions and frozen tenants. Used by both the request path and the
// live-connection path so a freeze cannot be bypassed over either.
type Gate struct {
	verifier TokenVerifier
	epochs   Epochs
	tenants  Tenants
}

func NewGate(verifier TokenVerifier, epochs Epochs, tenants Tenants) *Gate {
	return &Gate{verifier: verifier, epochs: epochs, tenants: tenants}
}

func (g *Gate) Resolve(ctx context.Context, raw string) (*Principal, error) {
	p, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := g.Check(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Check re-validates an already-resolved principal. Mutating operations call
// this before touching storage so a freeze or login elsewhere takes effect
// mid-connection, not just at the next handshake.
func (g *Gate) Check(ctx context.Context, p *Principal) error {
	if p.Role.SingleSession() {
		current, err := g.epochs.Current(ctx, p.ID)
		if err != nil {
			return err
		}
		if current != p.SessionEpoch {
			return ErrSessionSuperseded
		}
	}
	if p.TenantID != "" && !p.Role.PlatformWide() {
		frozen, err := g.tenants.Frozen(ctx, p.TenantID)
		if err != nil {
			return err
		}
		if frozen {
			return ErrFrozenTenant
		}
	}
	return nil
}
