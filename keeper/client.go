package keeper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/pkg/errors"
	"github.com/scjalliance/credkeeper/credential"
	"github.com/scjalliance/credkeeper/keeper/transport"
)

// ClientConfig is the configuration for a keeper client.
type ClientConfig struct {
	// Endpoint is the base URL of the keeper server. Required.
	Endpoint Endpoint

	// Token authenticates the client with the keeper. Required.
	Token string

	// Label identifies the client to the keeper. It is sent as the
	// User-Agent header of every request and shows up in the keeper's logs
	// and stats. When empty it is derived from the running executable.
	Label string

	// TLS controls how https endpoints are verified.
	TLS TLSConfig

	// Timeout bounds non-blocking calls such as Overview and each release
	// attempt. Defaults to DefaultTimeout.
	Timeout time.Duration

	// ReleaseAttempts is the number of times a release is tried before its
	// error is surfaced. Defaults to DefaultReleaseAttempts.
	ReleaseAttempts int

	// DisableSignalGuard turns off signal registration for claims issued by
	// this client. Callers that own process lifecycle themselves, such as
	// the credkeeper run command, set this and release explicitly.
	DisableSignalGuard bool

	// Logger receives diagnostic output. It may be nil.
	Logger *log.Logger

	// Clock is the time source used for retry pacing. Defaults to the wall
	// clock.
	Clock clock.Clock
}

// Client acquires credential claims from a credkeeper server.
type Client struct {
	endpoint Endpoint
	token    string
	label    string
	http     *http.Client
	timeout  time.Duration
	attempts int
	guarded  bool
	logger   *log.Logger
	clock    clock.Clock

	mutex     sync.Mutex
	claim     *Claim // outstanding claim, nil when there is none
	acquiring bool
}

// NewClient creates a keeper client for the given configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrEmptyEndpoint
	}
	if cfg.Token == "" {
		return nil, ErrNoToken
	}

	rt, err := cfg.TLS.roundTripper()
	if err != nil {
		return nil, err
	}

	label := cfg.Label
	if label == "" {
		label = DefaultLabel()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	attempts := cfg.ReleaseAttempts
	if attempts <= 0 {
		attempts = DefaultReleaseAttempts
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	return &Client{
		endpoint: cfg.Endpoint,
		token:    cfg.Token,
		label:    label,
		http:     &http.Client{Transport: rt},
		timeout:  timeout,
		attempts: attempts,
		guarded:  !cfg.DisableSignalGuard,
		logger:   cfg.Logger,
		clock:    clk,
	}, nil
}

// Label returns the label the client identifies itself with.
func (c *Client) Label() string {
	return c.label
}

// Overview retrieves the keeper's services inventory: every service name
// with its in-use and available credential counts. Transport and server
// failures map to ErrUnavailable.
func (c *Client) Overview(ctx context.Context) (overview transport.Overview, err error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r, err := c.do(ctx, "GET", "", nil)
	if err != nil {
		return overview, errors.Wrap(ErrUnavailable, err.Error())
	}
	defer r.Body.Close()

	if r.StatusCode != http.StatusOK {
		return overview, errors.Wrapf(ErrUnavailable, "http status %v", r.Status)
	}
	if err := json.NewDecoder(r.Body).Decode(&overview); err != nil {
		return overview, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	return overview, nil
}

// Acquire requests an exclusive credential claim on the named service,
// waiting up to wait for a credential to become free. The keeper holds the
// request until it can grant one; the client never polls. A wait of zero
// applies DefaultWait. The HTTP deadline always exceeds wait so a grant
// issued at the boundary is not lost to a local timeout.
//
// The returned claim must be released exactly once. Unless the signal guard
// is disabled, a termination signal arriving while the claim is outstanding
// releases it before the process dies.
func (c *Client) Acquire(ctx context.Context, service string, wait time.Duration) (*Claim, error) {
	if service == "" {
		return nil, errors.New("empty service name")
	}
	if wait <= 0 {
		wait = DefaultWait
	}

	c.mutex.Lock()
	if c.claim != nil || c.acquiring {
		c.mutex.Unlock()
		return nil, ErrClaimOutstanding
	}
	c.acquiring = true
	c.mutex.Unlock()
	defer func() {
		c.mutex.Lock()
		c.acquiring = false
		c.mutex.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, wait+acquireGrace)
	defer cancel()

	r, err := c.do(ctx, "POST", "get", transport.AcquireRequest{Service: service})
	if err != nil {
		switch ctx.Err() {
		case context.DeadlineExceeded:
			return nil, errors.Wrapf(ErrLeaseTimeout, "no credential for %q within %v", service, wait)
		case context.Canceled:
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	defer r.Body.Close()

	switch r.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errors.Wrapf(ErrUnauthorized, "http status %v", r.Status)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return nil, errors.Wrap(ErrLeaseTimeout, failureMessage(r.Body, r.Status))
	default:
		return nil, errors.Wrap(ErrUnavailable, failureMessage(r.Body, r.Status))
	}

	var grant transport.AcquireResponse
	if err := json.NewDecoder(r.Body).Decode(&grant); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}
	if err := grant.Validate(); err != nil {
		return nil, errors.Wrap(ErrMalformedResponse, err.Error())
	}

	claim := &Claim{
		Credential: credential.Credential{User: grant.User, Password: grant.Password},
		ExpiresOn:  grant.ExpiresOn,
		Wait:       time.Duration(grant.WaitSecs * float64(time.Second)),
		handle:     grant.Lease,
		owner:      c,
	}

	c.mutex.Lock()
	c.claim = claim
	c.mutex.Unlock()

	// The guard is armed only once the claim's handle is in place, so a
	// signal arriving mid-acquire cannot observe a half-built claim.
	if c.guarded {
		claim.guard = armGuard(claim, c.logger)
	}

	printf(c.logger, "acquired lease %s on %q (waited %s, expires %s)", claim.Handle(), service, claim.Wait.Round(time.Millisecond), claim.ExpiresOn.Format(time.RFC3339))

	return claim, nil
}

// release performs the wire-level release of a lease handle with a bounded
// timeout per attempt. Transport failures are retried up to attempts times;
// authorization failures are not, because they will not improve.
func (c *Client) release(ctx context.Context, handle credential.Handle, attempts int) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return c.releaseOnce(ctx, handle)
		},
		IsFatalError: func(err error) bool {
			return !errors.Is(err, ErrUnavailable)
		},
		NotifyFunc: func(err error, attempt int) {
			printf(c.logger, "release of lease %s failed (attempt %d): %v", handle, attempt, err)
		},
		Attempts: attempts,
		Delay:    releaseRetryDelay,
		Clock:    c.clock,
		Stop:     ctx.Done(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		err = retry.LastError(err)
	}
	return err
}

func (c *Client) releaseOnce(ctx context.Context, handle credential.Handle) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r, err := c.do(ctx, "POST", "release", transport.ReleaseRequest{Lease: handle})
	if err != nil {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	defer r.Body.Close()

	switch r.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Wrapf(ErrUnauthorized, "http status %v", r.Status)
	default:
		return errors.Wrap(ErrUnavailable, failureMessage(r.Body, r.Status))
	}
}

// forget releases the client's outstanding-claim slot.
func (c *Client) forget(cl *Claim) {
	c.mutex.Lock()
	if c.claim == cl {
		c.claim = nil
	}
	c.mutex.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint.prefix()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.label)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

// failureMessage extracts the keeper's explanation from a failed response
// body, falling back to the http status line.
func failureMessage(body io.Reader, status string) string {
	var f transport.Failure
	if err := json.NewDecoder(body).Decode(&f); err == nil && f.Message != "" {
		return f.Message
	}
	return fmt.Sprintf("http status %v", status)
}
