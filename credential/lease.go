package credential

import (
	"fmt"
	"time"
)

// Lease records the assignment of a credential to a client for a bounded
// period of time.
type Lease struct {
	Handle     Handle     `json:"lease"`
	Credential Credential `json:"credential"`
	Client     string     `json:"client,omitempty"` // Label of the entity that holds the lease
	Created    time.Time  `json:"created"`
	ExpiresOn  time.Time  `json:"expires_on"`
}

// Expired returns true if the lease has expired as of the given time.
func (l *Lease) Expired(at time.Time) bool {
	return at.After(l.ExpiresOn)
}

// Remaining returns the time left on the lease as of the given time.
func (l *Lease) Remaining(at time.Time) time.Duration {
	return l.ExpiresOn.Sub(at)
}

// Age returns how long the lease has been held as of the given time.
func (l *Lease) Age(at time.Time) time.Duration {
	return at.Sub(l.Created)
}

// Subject returns a human-readable description of the lease.
func (l *Lease) Subject() string {
	if l.Client == "" {
		return fmt.Sprintf("cred %s lease %s", l.Credential.Fingerprint(), l.Handle)
	}
	return fmt.Sprintf("cred %s lease %s held by %q", l.Credential.Fingerprint(), l.Handle, l.Client)
}
