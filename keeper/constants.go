package keeper

import "time"

const (
	// DefaultListenSpec is the address a keeper server listens on when its
	// configuration does not say otherwise.
	DefaultListenSpec = "127.0.0.1:9992"

	// DefaultPollInterval is how often a blocked acquire re-checks the pool
	// for a freed credential.
	DefaultPollInterval = 300 * time.Millisecond

	// DefaultShutdownTimeout is the time allowed for a graceful HTTP
	// shutdown.
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultTimeout bounds non-blocking keeper calls such as Overview and
	// Release.
	DefaultTimeout = 30 * time.Second

	// DefaultWait is how long an acquire waits for a credential to become
	// free when the caller does not say otherwise.
	DefaultWait = 10 * time.Hour

	// DefaultReleaseAttempts is the number of times a release is tried
	// before its error is surfaced.
	DefaultReleaseAttempts = 3

	// StaticExpiry is the nominal lifetime of claims issued by a Static
	// source.
	StaticExpiry = 10 * time.Minute

	// acquireGrace is headroom added to the acquire deadline beyond the
	// requested wait, so a grant issued at the boundary still reaches the
	// client.
	acquireGrace = 10 * time.Second

	// releaseRetryDelay is the pause between release attempts.
	releaseRetryDelay = 500 * time.Millisecond
)
