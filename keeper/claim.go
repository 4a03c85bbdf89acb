package keeper

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/scjalliance/credkeeper/credential"
)

// Claim is an exclusive, time-boxed hold on a shared service credential.
//
// A claim is released exactly once. Whichever of normal release, scope
// teardown or the signal guard clears the handle first performs the wire
// call; later attempts find the handle empty and do nothing.
type Claim struct {
	Credential credential.Credential
	ExpiresOn  time.Time
	Wait       time.Duration // how long the keeper held the request before granting

	mutex  sync.Mutex
	handle credential.Handle
	owner  *Client
	guard  *guard
}

// Handle returns the wire handle of the claim, or an empty handle once the
// claim has been released.
func (cl *Claim) Handle() credential.Handle {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	return cl.handle
}

// Released returns true once the claim has been released.
func (cl *Claim) Released() bool {
	return cl.Handle().Empty()
}

// Release returns the credential to the keeper's pool. The handle is
// cleared before the wire call is made, so a failed release surfaces its
// error but is never retried by a later automatic cleanup with a stale
// handle. Releasing an already released claim is a no-op.
func (cl *Claim) Release(ctx context.Context) error {
	handle, ok := cl.clear()
	if !ok {
		return nil
	}
	if cl.guard != nil {
		cl.guard.stop()
	}
	if cl.owner == nil {
		return nil
	}
	return cl.owner.release(ctx, handle, cl.owner.attempts)
}

// clear removes and returns the claim's handle. It reports false if the
// handle was already cleared. Exactly one caller ever observes true.
func (cl *Claim) clear() (credential.Handle, bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	if cl.handle.Empty() {
		return "", false
	}
	handle := cl.handle
	cl.handle = ""
	if cl.owner != nil {
		cl.owner.forget(cl)
	}
	return handle, true
}

// WithCredential acquires a claim on the named service, passes its
// credential to fn, and releases the claim exactly once when fn returns or
// panics. An error from fn takes precedence; a release failure after a
// successful fn propagates to the caller.
func WithCredential(ctx context.Context, src Source, service string, wait time.Duration, fn func(credential.Credential) error) (err error) {
	claim, err := src.Acquire(ctx, service, wait)
	if err != nil {
		return err
	}
	defer func() {
		relErr := claim.Release(context.Background())
		switch {
		case relErr == nil:
		case err == nil:
			err = relErr
		default:
			err = errors.Wrapf(err, "lease release also failed: %v", relErr)
		}
	}()
	return fn(claim.Credential)
}
