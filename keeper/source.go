package keeper

import (
	"context"
	"time"

	"github.com/scjalliance/credkeeper/keeper/transport"
)

// A Source issues exclusive credential claims. Client is the networked
// implementation; Static is an offline stand-in for development and tests.
type Source interface {
	// Overview returns the source's services inventory.
	Overview(ctx context.Context) (transport.Overview, error)

	// Acquire claims a credential for the named service, waiting up to wait
	// for one to become free.
	Acquire(ctx context.Context, service string, wait time.Duration) (*Claim, error)
}
