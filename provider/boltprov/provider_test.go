package boltprov

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/scjalliance/credkeeper/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	alice = credential.Credential{User: "alice", Password: "one"}
	bob   = credential.Credential{User: "bob", Password: "two"}
)

func open(t *testing.T, path string) *Provider {
	t.Helper()
	p, err := Open(path)
	require.NoError(t, err)
	return p
}

func seed(t *testing.T, p *Provider, service string, queue ...credential.Credential) {
	t.Helper()
	revision, state, err := p.View(service)
	require.NoError(t, err)
	tx := credential.NewTx(service, revision, state)
	tx.Reset(credential.Reconcile(tx.State(), queue))
	require.NoError(t, p.Commit(tx))
}

func TestProviderPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.db")

	p := open(t, path)
	assert.Equal(t, "bolt db", p.ProviderName())
	seed(t, p, "db", alice, bob)

	revision, state, err := p.View("db")
	require.NoError(t, err)
	tx := credential.NewTx("db", revision, state)
	if _, ok := tx.Acquire("worker-1", "h1", time.Minute, t0); !ok {
		t.Fatal("acquire failed")
	}
	require.NoError(t, p.Commit(tx))
	require.NoError(t, p.Close())

	p = open(t, path)
	defer p.Close()

	revision, state, err = p.View("db")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), revision)
	assert.Equal(t, []credential.Credential{bob}, state.Queue)
	require.Len(t, state.Leases, 1)
	assert.Equal(t, alice, state.Leases[0].Credential)
	assert.Equal(t, credential.Handle("h1"), state.Leases[0].Handle)

	services, err := p.Services()
	require.NoError(t, err)
	assert.Equal(t, []string{"db"}, services)
}

func TestProviderRevisionConflict(t *testing.T) {
	p := open(t, filepath.Join(t.TempDir(), "pools.db"))
	defer p.Close()
	seed(t, p, "db", alice, bob)

	revision, state, err := p.View("db")
	require.NoError(t, err)

	first := credential.NewTx("db", revision, state.Clone())
	second := credential.NewTx("db", revision, state.Clone())
	if _, ok := first.Acquire("worker-1", "h1", time.Minute, t0); !ok {
		t.Fatal("first acquire failed")
	}
	if _, ok := second.Acquire("worker-2", "h2", time.Minute, t0); !ok {
		t.Fatal("second acquire failed")
	}

	assert.NoError(t, p.Commit(first))
	assert.Error(t, p.Commit(second))
}

func TestProviderViewOfMissingService(t *testing.T) {
	p := open(t, filepath.Join(t.TempDir(), "pools.db"))
	defer p.Close()

	revision, state, err := p.View("ghost")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), revision)
	assert.Equal(t, 0, state.Total())

	services, err := p.Services()
	require.NoError(t, err)
	assert.Empty(t, services)
}
