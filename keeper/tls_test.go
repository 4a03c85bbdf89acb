package keeper

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/scjalliance/credkeeper/keeper/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transport.Overview{Services: map[string]transport.ServiceStatus{}})
	}))
	defer srv.Close()

	// Default verification refuses the test server's self-signed
	// certificate.
	c, err := NewClient(ClientConfig{
		Endpoint:           Endpoint(srv.URL),
		Token:              testToken,
		DisableSignalGuard: true,
	})
	require.NoError(t, err)
	_, err = c.Overview(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)

	// Opting out of verification connects.
	c, err = NewClient(ClientConfig{
		Endpoint:           Endpoint(srv.URL),
		Token:              testToken,
		TLS:                TLSConfig{InsecureSkipVerify: true},
		DisableSignalGuard: true,
	})
	require.NoError(t, err)
	_, err = c.Overview(context.Background())
	assert.NoError(t, err)

	// Trusting the server's certificate explicitly connects too.
	caFile := filepath.Join(t.TempDir(), "ca.pem")
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caFile, caPEM, 0600))

	c, err = NewClient(ClientConfig{
		Endpoint:           Endpoint(srv.URL),
		Token:              testToken,
		TLS:                TLSConfig{CAFile: caFile},
		DisableSignalGuard: true,
	})
	require.NoError(t, err)
	_, err = c.Overview(context.Background())
	assert.NoError(t, err)
}

func TestClientTLSConfigErrors(t *testing.T) {
	_, err := NewClient(ClientConfig{
		Endpoint: "localhost:9992",
		Token:    testToken,
		TLS:      TLSConfig{CAFile: filepath.Join(t.TempDir(), "missing.pem")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ca bundle")

	junk := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(junk, []byte("not a certificate"), 0600))
	_, err = NewClient(ClientConfig{
		Endpoint: "localhost:9992",
		Token:    testToken,
		TLS:      TLSConfig{CAFile: junk},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no certificates found")
}
