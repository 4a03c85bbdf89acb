// Package transport defines the JSON message types exchanged between keeper
// clients and servers.
package transport

import (
	"time"

	"github.com/pkg/errors"
	"github.com/scjalliance/credkeeper/credential"
)

// ServiceStatus summarizes the lease activity of a single service.
type ServiceStatus struct {
	CredentialsInUse     int `json:"credentials_in_use"`
	CredentialsAvailable int `json:"credentials_available"`
}

// Overview reports the lease activity of every service offered by a keeper.
type Overview struct {
	Services map[string]ServiceStatus `json:"services"`
}

// AcquireRequest asks a keeper for a credential lease on a service.
type AcquireRequest struct {
	Service string `json:"service"`
}

// AcquireResponse carries a granted credential lease. ExpiresOn is encoded
// as an RFC 3339 timestamp on the wire.
type AcquireResponse struct {
	User      string            `json:"user"`
	Password  string            `json:"password"`
	ExpiresOn time.Time         `json:"expires_on"`
	Lease     credential.Handle `json:"lease"`
	WaitSecs  float64           `json:"wait_secs,omitempty"`
}

// Validate returns an error if the response is missing a required field.
// Passwords may be legitimately empty and are not checked.
func (r *AcquireResponse) Validate() error {
	switch {
	case r.Lease.Empty():
		return errors.New("missing lease handle")
	case r.User == "":
		return errors.New("missing user")
	case r.ExpiresOn.IsZero():
		return errors.New("missing expiry")
	}
	return nil
}

// ReleaseRequest ends the lease with the given handle.
type ReleaseRequest struct {
	Lease credential.Handle `json:"lease"`
}

// ReleaseResponse acknowledges a release. It is intentionally empty; a
// release succeeds at the wire level even when the handle is unknown, so
// that cleanup paths never fail their callers.
type ReleaseResponse struct{}

// Failure carries a keeper's explanation of a failed request.
type Failure struct {
	Message string `json:"message"`
}

// HealthResponse reports whether a keeper is able to serve.
type HealthResponse struct {
	OK bool `json:"ok"`
}
