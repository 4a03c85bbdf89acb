package keeper

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/scjalliance/credkeeper/credential"
	"github.com/scjalliance/credkeeper/keeper/transport"
)

// staticHandle marks claims issued by a Static source. They are never sent
// over a wire.
const staticHandle = credential.Handle("static")

// Static is an offline credential source that issues the same credential to
// every claim. It performs no network calls and registers no signal
// handling, which makes it a drop-in stand-in for a Client in development
// and tests.
type Static struct {
	// Credential is issued to every claim.
	Credential credential.Credential

	// Clock stamps claim expiry. Defaults to the wall clock.
	Clock clock.Clock
}

// NewStatic creates a static source that issues claims on the given user
// and password.
func NewStatic(user, password string) *Static {
	return &Static{
		Credential: credential.Credential{User: user, Password: password},
	}
}

// Overview returns an inventory with no services.
func (s *Static) Overview(ctx context.Context) (transport.Overview, error) {
	return transport.Overview{Services: map[string]transport.ServiceStatus{}}, nil
}

// Acquire immediately claims the static credential. The claim reports no
// wait and expires ten minutes out, though nothing enforces the expiry.
func (s *Static) Acquire(ctx context.Context, service string, wait time.Duration) (*Claim, error) {
	clk := s.Clock
	if clk == nil {
		clk = clock.WallClock
	}
	return &Claim{
		Credential: s.Credential,
		ExpiresOn:  clk.Now().Add(StaticExpiry),
		handle:     staticHandle,
	}, nil
}
