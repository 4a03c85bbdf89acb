package keeper

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"path"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang/gddo/httputil"
	"github.com/juju/clock"
	"github.com/pkg/errors"
	"github.com/scjalliance/credkeeper/credential"
	"github.com/scjalliance/credkeeper/keeper/transport"
)

const (
	// janitorInterval is how often the expiry sweep runs.
	janitorInterval = 3 * time.Second

	// longWaitThreshold marks waits worth calling out in the log.
	longWaitThreshold = 10 * time.Second
)

// ServicePool describes the lease behavior of one service offered by a
// keeper server.
type ServicePool struct {
	// Queue is the full set of credentials the service leases out, with one
	// entry per concurrent hold.
	Queue []credential.Credential

	// Expiry is how long a lease lives without being released.
	Expiry time.Duration

	// MaxWait bounds how long an acquire may block waiting for a free
	// credential. Zero waits forever.
	MaxWait time.Duration
}

// ServerConfig is the configuration for a credkeeper server.
type ServerConfig struct {
	ListenSpec      string
	WebPath         string // URL prefix the routes mount under
	AccessTokens    []string
	Services        map[string]ServicePool
	Provider        credential.Provider
	PollInterval    time.Duration // pool re-check interval for blocked acquires
	ShutdownTimeout time.Duration // time allowed to the HTTP server to perform a graceful shutdown
	CertFile        string        // PEM certificate chain; enables TLS together with KeyFile
	KeyFile         string        // PEM private key
	Logger          *log.Logger
	Clock           clock.Clock
}

// Server is a credkeeper HTTP server that leases pooled service credentials
// to clients, one holder at a time.
type Server struct {
	ServerConfig
	metrics Metrics
}

// NewServer creates a new credkeeper server that will handle HTTP requests.
func NewServer(cfg ServerConfig) *Server {
	if cfg.ListenSpec == "" {
		cfg.ListenSpec = DefaultListenSpec
	}
	if !strings.HasPrefix(cfg.WebPath, "/") {
		cfg.WebPath = "/" + cfg.WebPath
	}
	if !strings.HasSuffix(cfg.WebPath, "/") {
		// The overview route is a subtree pattern, so the prefix must end
		// in a slash regardless of how it was configured.
		cfg.WebPath += "/"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Server{
		ServerConfig: cfg,
	}
}

// Run will create and run a credkeeper server until the provided context is
// canceled.
func Run(ctx context.Context, cfg ServerConfig) error {
	return NewServer(cfg).Run(ctx)
}

// Run will start the server and let it run until the context is cancelled.
//
// If the server cannot be started it will return an error immediately.
func (s *Server) Run(ctx context.Context) (err error) {
	if len(s.AccessTokens) == 0 {
		return ErrNoToken
	}
	if s.Provider == nil {
		return errors.New("no pool provider")
	}
	if err := s.Seed(); err != nil {
		return err
	}

	printf(s.Logger, "Starting HTTP listener on %s", s.ListenSpec)

	listener, err := net.Listen("tcp", s.ListenSpec)
	if err != nil {
		printf(s.Logger, "Error creating HTTP listener on %s: %v", s.ListenSpec, err)
		return err
	}

	srv := &http.Server{
		// Acquires block until a credential frees, so responses cannot
		// carry a fixed write deadline.
		ReadTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
		Handler:        s.Handler(),
		BaseContext: func(net.Listener) context.Context {
			// Waiting acquires watch their request context, which must end
			// when the server shuts down.
			return ctx
		},
	}

	go s.janitor(ctx)

	result := make(chan error)

	go func() {
		if s.CertFile != "" && s.KeyFile != "" {
			result <- srv.ServeTLS(listener, s.CertFile, s.KeyFile)
		} else {
			result <- srv.Serve(listener)
		}
		close(result)
	}()

	select {
	case err = <-result:
		printf(s.Logger, "Stopped HTTP listener on %s due to error: %v", s.ListenSpec, err)
		return err
	case <-ctx.Done():
	}

	printf(s.Logger, "Stopping HTTP listener on %s due to shutdown signal", s.ListenSpec)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	srv.Shutdown(shutdownCtx)

	err = <-result
	if err == http.ErrServerClosed {
		err = nil
	}

	m := s.metrics.Snapshot()
	printf(s.Logger, "Stopped HTTP listener on %s (grants: %d, releases: %d, expiries: %d, timeouts: %d)", s.ListenSpec, m.Grants, m.Releases, m.Expiries, m.Timeouts)
	return err
}

// Seed reconciles the provider's pool state with the configured services.
// Leases persisted by a previous run survive when their credential is still
// configured; everything else is rebuilt from configuration.
func (s *Server) Seed() error {
	for name, svc := range s.Services {
		err := s.commit(name, func(tx *credential.Tx) {
			tx.Reset(credential.Reconcile(tx.State(), svc.Queue))
		})
		if err != nil {
			return errors.Wrapf(err, "unable to seed pool for %q", name)
		}
	}
	return nil
}

// Handler returns the HTTP handler tree for the server: the overview at the
// web path root with get, release and health beneath it.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.route(""), http.HandlerFunc(s.overviewHandler))
	mux.Handle(s.route("health"), http.HandlerFunc(s.healthHandler))
	mux.Handle(s.route("get"), s.requireToken(http.HandlerFunc(s.acquireHandler)))
	mux.Handle(s.route("release"), s.requireToken(http.HandlerFunc(s.releaseHandler)))
	return mux
}

// Metrics returns a snapshot of the server's event counters.
func (s *Server) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// healthHandler will return the condition of the server.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.respond(w, transport.HealthResponse{OK: true})
}

// overviewHandler reports every service with its in-use and available
// credential counts, as JSON or a text table depending on the Accept
// header.
func (s *Server) overviewHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.route("") {
		http.NotFound(w, r)
		return
	}

	overview := transport.Overview{
		Services: make(map[string]transport.ServiceStatus, len(s.Services)),
	}
	for name := range s.Services {
		_, state, err := s.Provider.View(name)
		if err != nil {
			printf(s.Logger, "%s: Overview failed: %v", name, err)
			s.fail(w, http.StatusInternalServerError, "unable to inspect pools")
			return
		}
		inUse, available := state.Counts()
		overview.Services[name] = transport.ServiceStatus{
			CredentialsInUse:     inUse,
			CredentialsAvailable: available,
		}
	}

	offer := httputil.NegotiateContentType(r, []string{"application/json", "text/plain"}, "application/json")
	if offer == "text/plain" {
		s.overviewText(w, overview)
		return
	}
	s.respond(w, overview)
}

// overviewText renders the overview as an aligned text table.
func (s *Server) overviewText(w http.ResponseWriter, overview transport.Overview) {
	names := make([]string, 0, len(overview.Services))
	for name := range overview.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tIN USE\tAVAILABLE")
	for _, name := range names {
		status := overview.Services[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", name, status.CredentialsInUse, status.CredentialsAvailable)
	}
	tw.Flush()
}

// acquireHandler leases a credential on the requested service. It blocks
// until a credential frees, the service's wait bound lapses, the requester
// goes away, or the server shuts down.
func (s *Server) acquireHandler(w http.ResponseWriter, r *http.Request) {
	var req transport.AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, "unable to parse request")
		return
	}

	svc, ok := s.Services[req.Service]
	if !ok {
		printf(s.Logger, "%s: Lease requested for unknown service by %q", req.Service, r.UserAgent())
		s.fail(w, http.StatusNotFound, fmt.Sprintf("unknown service %q", req.Service))
		return
	}

	client := r.UserAgent()
	prefix := fmt.Sprintf("%s %s", req.Service, client)
	printf(s.Logger, "%s: Lease requested", prefix)

	started := s.Clock.Now()
	var deadline time.Time
	if svc.MaxWait > 0 {
		deadline = started.Add(svc.MaxWait)
	}

	waiting := false
	for {
		var granted credential.Lease
		var leased bool
		now := s.Clock.Now()
		err := s.commit(req.Service, func(tx *credential.Tx) {
			granted, leased = tx.Acquire(client, credential.NewHandle(), svc.Expiry, now)
		})
		if err != nil {
			printf(s.Logger, "%s: Lease acquisition failed: %v", prefix, err)
			s.fail(w, http.StatusInternalServerError, "unable to lease credential")
			return
		}

		if leased {
			wait := s.Clock.Now().Sub(started)
			if wait > longWaitThreshold {
				printf(s.Logger, "%s: Lease %s granted after long wait of %s", prefix, granted.Handle, wait.Round(time.Millisecond))
			} else {
				printf(s.Logger, "%s: Lease %s granted (waited %s)", prefix, granted.Handle, wait.Round(time.Millisecond))
			}
			s.metrics.grants.Add(1)
			s.respond(w, transport.AcquireResponse{
				User:      granted.Credential.User,
				Password:  granted.Credential.Password,
				ExpiresOn: granted.ExpiresOn,
				Lease:     granted.Handle,
				WaitSecs:  wait.Seconds(),
			})
			return
		}

		if !waiting {
			printf(s.Logger, "%s: All credentials in use, waiting", prefix)
			waiting = true
		}

		select {
		case <-r.Context().Done():
			printf(s.Logger, "%s: Requester went away while waiting", prefix)
			s.fail(w, http.StatusServiceUnavailable, "canceled while waiting")
			return
		case <-s.Clock.After(s.PollInterval):
		}

		if !deadline.IsZero() && s.Clock.Now().After(deadline) {
			printf(s.Logger, "%s: No credential freed within %s", prefix, svc.MaxWait)
			s.metrics.timeouts.Add(1)
			s.fail(w, http.StatusGatewayTimeout, fmt.Sprintf("no credential for %q freed within %s", req.Service, svc.MaxWait))
			return
		}
	}
}

// releaseHandler ends a lease and returns its credential to the pool. The
// response is always 200; unknown or stale handles are logged and ignored
// so that cleanup paths never fail their callers.
func (s *Server) releaseHandler(w http.ResponseWriter, r *http.Request) {
	var req transport.ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, "unable to parse request")
		return
	}

	client := r.UserAgent()

	if req.Lease.Empty() {
		printf(s.Logger, "Release ignored: empty lease handle (client %q)", client)
		s.respond(w, transport.ReleaseResponse{})
		return
	}

	released := false
	for name := range s.Services {
		var ls credential.Lease
		var found bool
		now := s.Clock.Now()
		err := s.commit(name, func(tx *credential.Tx) {
			ls, found = tx.Release(req.Lease, now)
		})
		if err != nil {
			printf(s.Logger, "%s: Release of lease %s failed: %v", name, req.Lease, err)
			s.fail(w, http.StatusInternalServerError, "unable to release lease")
			return
		}
		if found {
			printf(s.Logger, "%s: Lease %s released after %s (held by %q)", name, ls.Handle, ls.Age(now).Round(time.Second), ls.Client)
			s.metrics.releases.Add(1)
			released = true
			break
		}
	}
	if !released {
		printf(s.Logger, "Release of unknown lease %s ignored (client %q)", req.Lease, client)
	}

	s.respond(w, transport.ReleaseResponse{})
}

// janitor periodically expires stale leases until ctx is canceled.
func (s *Server) janitor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Clock.After(janitorInterval):
		}
		s.ExpireStale()
	}
}

// ExpireStale scans every service for expired leases and returns their
// credentials to the pool.
func (s *Server) ExpireStale() {
	for name := range s.Services {
		var expired credential.Set
		now := s.Clock.Now()
		err := s.commit(name, func(tx *credential.Tx) {
			expired = tx.ExpireStale(now)
		})
		if err != nil {
			printf(s.Logger, "%s: Expiry sweep failed: %v", name, err)
			continue
		}
		if n := len(expired); n > 0 {
			s.metrics.expiries.Add(uint64(n))
			printf(s.Logger, "%s: Cleared %d expired lease(s)", name, n)
			for i := range expired {
				printf(s.Logger, "%s: Expired %s", name, expired[i].Subject())
			}
		}
	}
}

// commit runs fn against the service's current pool state and commits the
// result, taking a fresh view and trying again when the revision has moved
// underneath it.
func (s *Server) commit(service string, fn func(tx *credential.Tx)) (err error) {
	for attempt := 0; attempt < 5; attempt++ {
		var revision uint64
		var state credential.State
		revision, state, err = s.Provider.View(service)
		if err != nil {
			return err
		}

		tx := credential.NewTx(service, revision, state)
		fn(tx)

		// Don't bother committing empty transactions
		if tx.Empty() {
			return nil
		}

		err = s.Provider.Commit(tx)
		if err == nil {
			return nil
		}
	}
	return err
}

// route joins the configured web path with a relative route name.
func (s *Server) route(name string) string {
	if name == "" {
		return s.WebPath
	}
	return path.Join(s.WebPath, name)
}

// requireToken wraps a handler with bearer token authentication against the
// configured token set.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.tokenValid(bearerToken(r)) {
			printf(s.Logger, "%s: Rejected token from %q", r.URL.Path, r.UserAgent())
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.fail(w, http.StatusUnauthorized, "invalid access token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) tokenValid(token string) bool {
	if token == "" {
		return false
	}
	for _, want := range s.AccessTokens {
		if subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1 {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return auth[len(prefix):]
}

// respond writes a JSON response body.
func (s *Server) respond(w http.ResponseWriter, response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		printf(s.Logger, "Failed to marshal response: %v", err)
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// fail writes a JSON failure with the given status code.
func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	data, err := json.Marshal(transport.Failure{Message: message})
	if err != nil {
		http.Error(w, message, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func printf(logger *log.Logger, format string, v ...interface{}) {
	if logger != nil {
		logger.Printf(format, v...)
	}
}
