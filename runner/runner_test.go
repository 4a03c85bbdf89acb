package runner

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/scjalliance/credkeeper/credential"
	"github.com/scjalliance/credkeeper/keeper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// failingSource refuses every acquisition.
type failingSource struct{ keeper.Static }

func (failingSource) Acquire(context.Context, string, time.Duration) (*keeper.Claim, error) {
	return nil, keeper.ErrUnavailable
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test shells out to sh")
	}
}

func TestNewValidation(t *testing.T) {
	src := keeper.NewStatic("alice", "one")

	_, err := New(src, Config{Program: "sh"})
	assert.Error(t, err, "a service is required")

	_, err = New(src, Config{Service: "db"})
	assert.Error(t, err, "a program is required")
}

func TestRunnerInjectsCredentialEnvironment(t *testing.T) {
	requireShell(t)

	src := keeper.NewStatic("alice", "one")

	var out bytes.Buffer
	r, err := New(src, Config{
		Service: "db",
		Program: "sh",
		Args:    []string{"-c", `echo "$CREDKEEPER_USER|$CREDKEEPER_PASSWORD|$CREDKEEPER_EXPIRES_ON"`},
		Stdout:  &out,
	})
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	fields := strings.Split(strings.TrimSpace(out.String()), "|")
	require.Len(t, fields, 3)
	assert.Equal(t, "alice", fields[0])
	assert.Equal(t, "one", fields[1])
	_, err = time.Parse(time.RFC3339, fields[2])
	assert.NoError(t, err, "the expiry variable carries an RFC 3339 timestamp")
}

func TestRunnerPreservesExitError(t *testing.T) {
	requireShell(t)

	r, err := New(keeper.NewStatic("alice", "one"), Config{
		Service: "db",
		Program: "sh",
		Args:    []string{"-c", "exit 3"},
	})
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.Error(t, err)

	var exit *exec.ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 3, exit.ExitCode())
}

func TestRunnerDoesNotRunWithoutCredential(t *testing.T) {
	requireShell(t)

	marker := filepath.Join(t.TempDir(), "ran")
	r, err := New(failingSource{}, Config{
		Service: "db",
		Program: "sh",
		Args:    []string{"-c", "touch " + marker},
	})
	require.NoError(t, err)

	err = r.Run(context.Background())
	assert.ErrorIs(t, err, keeper.ErrUnavailable)

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "the program must not run without a credential")
}

func TestEnviron(t *testing.T) {
	claim := &keeper.Claim{
		Credential: credential.Credential{User: "alice", Password: "one"},
		ExpiresOn:  t0,
	}

	env := Environ([]string{"PATH=/bin", "CREDKEEPER_USER=stale", "CREDKEEPER_PASSWORD=stale"}, claim)
	assert.Equal(t, []string{
		"PATH=/bin",
		"CREDKEEPER_USER=alice",
		"CREDKEEPER_PASSWORD=one",
		"CREDKEEPER_EXPIRES_ON=" + t0.Format(time.RFC3339),
	}, env)
}
