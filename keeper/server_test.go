package keeper

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scjalliance/credkeeper/credential"
	"github.com/scjalliance/credkeeper/keeper/transport"
	"github.com/scjalliance/credkeeper/provider/memprov"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = credential.Credential{User: "alice", Password: "one"}
	bob   = credential.Credential{User: "bob", Password: "two"}
)

// testServer seeds a keeper over an in-memory provider and serves its
// handler tree from an httptest listener.
func testServer(t *testing.T, cfg ServerConfig) (*Server, *httptest.Server) {
	t.Helper()
	if cfg.AccessTokens == nil {
		cfg.AccessTokens = []string{testToken}
	}
	if cfg.Provider == nil {
		cfg.Provider = memprov.New()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Millisecond
	}
	s := NewServer(cfg)
	require.NoError(t, s.Seed())
	h := httptest.NewServer(s.Handler())
	t.Cleanup(h.Close)
	return s, h
}

func oneService(queue ...credential.Credential) map[string]ServicePool {
	return map[string]ServicePool{
		"db": {Queue: queue, Expiry: time.Minute},
	}
}

func TestServerGrantAndRelease(t *testing.T) {
	s, h := testServer(t, ServerConfig{Services: oneService(alice, bob)})
	c := newTestClient(t, h.URL)

	claim, err := c.Acquire(context.Background(), "db", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, alice, claim.Credential, "credentials are granted in queue order")
	assert.False(t, claim.ExpiresOn.IsZero())

	overview, err := c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, overview.Services["db"].CredentialsInUse)
	assert.Equal(t, 1, overview.Services["db"].CredentialsAvailable)

	require.NoError(t, claim.Release(context.Background()))

	overview, err = c.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, overview.Services["db"].CredentialsInUse)
	assert.Equal(t, 2, overview.Services["db"].CredentialsAvailable)

	m := s.Metrics()
	assert.Equal(t, uint64(1), m.Grants)
	assert.Equal(t, uint64(1), m.Releases)
}

func TestServerBlocksUntilReleased(t *testing.T) {
	_, h := testServer(t, ServerConfig{Services: oneService(alice)})

	holder := newTestClient(t, h.URL)
	first, err := holder.Acquire(context.Background(), "db", time.Minute)
	require.NoError(t, err)

	type result struct {
		claim *Claim
		err   error
	}
	done := make(chan result, 1)
	waiter := newTestClient(t, h.URL)
	go func() {
		claim, err := waiter.Acquire(context.Background(), "db", 10*time.Second)
		done <- result{claim, err}
	}()

	// Give the waiter time to reach the keeper and start polling.
	time.Sleep(50 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("acquire returned while the only credential was held")
	default:
	}

	require.NoError(t, first.Release(context.Background()))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, alice, res.claim.Credential)
		assert.NotEqual(t, first.Handle(), res.claim.Handle())
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never received the freed credential")
	}
}

func TestServerMaxWait(t *testing.T) {
	s, h := testServer(t, ServerConfig{
		Services: map[string]ServicePool{
			"db": {Queue: []credential.Credential{alice}, Expiry: time.Minute, MaxWait: 30 * time.Millisecond},
		},
	})

	holder := newTestClient(t, h.URL)
	_, err := holder.Acquire(context.Background(), "db", time.Minute)
	require.NoError(t, err)

	waiter := newTestClient(t, h.URL)
	_, err = waiter.Acquire(context.Background(), "db", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLeaseTimeout)
	assert.Contains(t, err.Error(), "freed within")

	assert.Equal(t, uint64(1), s.Metrics().Timeouts)
}

func TestServerAuth(t *testing.T) {
	_, h := testServer(t, ServerConfig{Services: oneService(alice)})

	intruder, err := NewClient(ClientConfig{
		Endpoint:           Endpoint(h.URL),
		Token:              "wrong",
		DisableSignalGuard: true,
	})
	require.NoError(t, err)

	_, err = intruder.Acquire(context.Background(), "db", time.Minute)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Releases are guarded by the same token check.
	r, err := http.Post(h.URL+"/release", "application/json", strings.NewReader(`{"lease":"h1"}`))
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, r.StatusCode)

	// The overview and health check are public.
	r, err = http.Get(h.URL + "/")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)

	r, err = http.Get(h.URL + "/health")
	require.NoError(t, err)
	var health transport.HealthResponse
	require.NoError(t, json.NewDecoder(r.Body).Decode(&health))
	r.Body.Close()
	assert.True(t, health.OK)
}

func TestServerUnknownService(t *testing.T) {
	_, h := testServer(t, ServerConfig{Services: oneService(alice)})
	c := newTestClient(t, h.URL)

	_, err := c.Acquire(context.Background(), "ghost", time.Minute)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "unknown service")
}

func TestServerReleaseAlwaysSucceeds(t *testing.T) {
	s, h := testServer(t, ServerConfig{Services: oneService(alice)})
	c := newTestClient(t, h.URL)

	// Unknown and empty handles are ignored rather than failed, so cleanup
	// paths cannot break their callers.
	assert.NoError(t, c.release(context.Background(), "no-such-handle", 1))
	assert.NoError(t, c.release(context.Background(), "", 1))
	assert.Equal(t, uint64(0), s.Metrics().Releases)
}

func TestServerExpiry(t *testing.T) {
	s, h := testServer(t, ServerConfig{
		Services: map[string]ServicePool{
			"db": {Queue: []credential.Credential{alice}, Expiry: 10 * time.Millisecond},
		},
	})

	holder := newTestClient(t, h.URL)
	claim, err := holder.Acquire(context.Background(), "db", time.Minute)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	s.ExpireStale()
	assert.Equal(t, uint64(1), s.Metrics().Expiries)

	// The credential is leasable again.
	next := newTestClient(t, h.URL)
	reclaimed, err := next.Acquire(context.Background(), "db", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, alice, reclaimed.Credential)

	// Releasing the expired claim is a harmless no-op on the keeper.
	require.NoError(t, claim.Release(context.Background()))
	assert.Equal(t, uint64(0), s.Metrics().Releases)
}

func TestServerOverviewText(t *testing.T) {
	_, h := testServer(t, ServerConfig{Services: oneService(alice, bob)})

	req, err := http.NewRequest("GET", h.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/plain")

	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	assert.Contains(t, r.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, string(body), "SERVICE")
	assert.Contains(t, string(body), "db")
}

func TestServerWebPath(t *testing.T) {
	_, h := testServer(t, ServerConfig{
		WebPath:  "/creds",
		Services: oneService(alice),
	})

	c := newTestClient(t, h.URL+"/creds")
	claim, err := c.Acquire(context.Background(), "db", time.Minute)
	require.NoError(t, err)
	require.NoError(t, claim.Release(context.Background()))

	// Nothing is mounted outside the web path.
	r, err := http.Get(h.URL + "/health")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)

	r, err = http.Get(h.URL + "/creds/health")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusOK, r.StatusCode)
}

func TestServerSeedReconcilesConfiguredCredentials(t *testing.T) {
	provider := memprov.New()
	_, h := testServer(t, ServerConfig{Services: oneService(alice, bob), Provider: provider})

	c := newTestClient(t, h.URL)
	_, err := c.Acquire(context.Background(), "db", time.Minute)
	require.NoError(t, err)

	// A restart with the same configuration keeps the outstanding lease.
	again := NewServer(ServerConfig{
		AccessTokens: []string{testToken},
		Services:     oneService(alice, bob),
		Provider:     provider,
	})
	require.NoError(t, again.Seed())

	_, state, err := provider.View("db")
	require.NoError(t, err)
	require.Len(t, state.Leases, 1)
	assert.Equal(t, alice, state.Leases[0].Credential)
	assert.Equal(t, []credential.Credential{bob}, state.Queue)

	// Dropping the leased credential from configuration drops its lease.
	rotated := NewServer(ServerConfig{
		AccessTokens: []string{testToken},
		Services:     oneService(bob),
		Provider:     provider,
	})
	require.NoError(t, rotated.Seed())

	_, state, err = provider.View("db")
	require.NoError(t, err)
	assert.Empty(t, state.Leases)
	assert.Equal(t, []credential.Credential{bob}, state.Queue)
}

func TestServerRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- Run(ctx, ServerConfig{
			ListenSpec:   "127.0.0.1:0",
			AccessTokens: []string{testToken},
			Services:     oneService(alice),
			Provider:     memprov.New(),
		})
	}()

	// Let the listener come up before asking it to stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop on context cancellation")
	}
}

func TestServerRunValidation(t *testing.T) {
	err := Run(context.Background(), ServerConfig{
		Provider: memprov.New(),
	})
	assert.ErrorIs(t, err, ErrNoToken)

	err = Run(context.Background(), ServerConfig{
		AccessTokens: []string{testToken},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}
