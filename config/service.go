package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/scjalliance/credkeeper/credential"
)

// Service describes the credential pool of one service.
type Service struct {
	// LeaseTimeoutSecs is how long a lease lives without being released.
	LeaseTimeoutSecs int `yaml:"lease_timeout_secs"`

	// MaxWaitSecs bounds how long an acquire may block waiting for a free
	// credential. Zero waits forever.
	MaxWaitSecs int `yaml:"max_wait_secs"`

	// Credentials is the set of accounts the service leases out.
	Credentials []Credential `yaml:"credentials"`
}

// Credential is one leasable account of a service.
type Credential struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// NumConcurrent is how many holders may lease this account at once.
	NumConcurrent int `yaml:"num_concurrent"`
}

// Validate reports the first problem with the service definition.
func (s Service) Validate() error {
	if s.LeaseTimeoutSecs < 0 {
		return errors.New("negative lease_timeout_secs")
	}
	if s.MaxWaitSecs < 0 {
		return errors.New("negative max_wait_secs")
	}
	if len(s.Credentials) == 0 {
		return errors.New("no credentials")
	}
	for _, c := range s.Credentials {
		if c.User == "" {
			return errors.New("credential with an empty user")
		}
		if c.NumConcurrent < 0 {
			return errors.Errorf("credential %q has a negative num_concurrent", c.User)
		}
	}
	return nil
}

// Queue expands the service's credentials into the pool queue a keeper
// leases from, with one entry per permitted concurrent hold.
func (s Service) Queue() []credential.Credential {
	var queue []credential.Credential
	for _, c := range s.Credentials {
		n := c.NumConcurrent
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			queue = append(queue, credential.Credential{User: c.User, Password: c.Password})
		}
	}
	return queue
}

// Expiry returns the lease lifetime of the service.
func (s Service) Expiry() time.Duration {
	secs := s.LeaseTimeoutSecs
	if secs == 0 {
		secs = DefaultLeaseTimeoutSecs
	}
	return time.Duration(secs) * time.Second
}

// MaxWait returns the service's acquire wait bound. Zero waits forever.
func (s Service) MaxWait() time.Duration {
	return time.Duration(s.MaxWaitSecs) * time.Second
}
