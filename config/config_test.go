package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scjalliance/credkeeper/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
listen_on: "0.0.0.0:9992"
web_path: /
access_tokens:
  - sesame
  - second-token
persistent_leases_filename: /var/lib/credkeeper/leases.db
ssl:
  private_key_pem_file: key.pem
  certificate_chain_file: chain.pem
services:
  db:
    lease_timeout_secs: 120
    max_wait_secs: 30
    credentials:
      - user: alice
        password: one
      - user: bob
        password: two
        num_concurrent: 2
  queue:
    credentials:
      - user: carol
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9992", cfg.ListenOn)
	assert.Equal(t, "/", cfg.WebPath)
	assert.Equal(t, []string{"sesame", "second-token"}, cfg.AccessTokens)
	assert.Equal(t, "/var/lib/credkeeper/leases.db", cfg.LeaseStore)
	assert.Equal(t, "key.pem", cfg.SSL.PrivateKeyFile)
	assert.Equal(t, "chain.pem", cfg.SSL.CertificateChainFile)

	db := cfg.Services["db"]
	assert.Equal(t, 120, db.LeaseTimeoutSecs)
	assert.Equal(t, 2*time.Minute, db.Expiry())
	assert.Equal(t, 30*time.Second, db.MaxWait())
	assert.Equal(t, []credential.Credential{
		{User: "alice", Password: "one"},
		{User: "bob", Password: "two"},
		{User: "bob", Password: "two"},
	}, db.Queue(), "num_concurrent expands into one queue entry per hold")

	queue := cfg.Services["queue"]
	assert.Equal(t, DefaultLeaseTimeoutSecs, queue.LeaseTimeoutSecs)
	assert.Equal(t, 300*time.Second, queue.Expiry())
	assert.Equal(t, time.Duration(0), queue.MaxWait(), "zero max wait waits forever")
	assert.Equal(t, 1, queue.Credentials[0].NumConcurrent)
	assert.Empty(t, queue.Credentials[0].Password, "passwordless accounts are allowed")
}

func TestParseRejections(t *testing.T) {
	testData := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown key",
			yaml: "listen_onn: x\naccess_tokens: [a]\nservices: {db: {credentials: [{user: u}]}}",
			want: "unable to parse",
		},
		{
			name: "no tokens",
			yaml: "services: {db: {credentials: [{user: u}]}}",
			want: "no access_tokens",
		},
		{
			name: "empty token",
			yaml: "access_tokens: [\"\"]\nservices: {db: {credentials: [{user: u}]}}",
			want: "empty access token",
		},
		{
			name: "half an ssl config",
			yaml: "access_tokens: [a]\nssl: {private_key_pem_file: key.pem}\nservices: {db: {credentials: [{user: u}]}}",
			want: "ssl requires both",
		},
		{
			name: "no services",
			yaml: "access_tokens: [a]",
			want: "no services",
		},
		{
			name: "service without credentials",
			yaml: "access_tokens: [a]\nservices: {db: {lease_timeout_secs: 60}}",
			want: "no credentials",
		},
		{
			name: "credential without user",
			yaml: "access_tokens: [a]\nservices: {db: {credentials: [{password: p}]}}",
			want: "empty user",
		},
		{
			name: "negative lease timeout",
			yaml: "access_tokens: [a]\nservices: {db: {lease_timeout_secs: -1, credentials: [{user: u}]}}",
			want: "negative lease_timeout_secs",
		},
		{
			name: "negative concurrency",
			yaml: "access_tokens: [a]\nservices: {db: {credentials: [{user: u, num_concurrent: -2}]}}",
			want: "negative num_concurrent",
		},
	}

	for _, td := range testData {
		t.Run(td.name, func(t *testing.T) {
			_, err := Parse([]byte(td.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), td.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credkeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Services, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to read config")
}
