package runner

import (
	"strings"
	"time"

	"github.com/scjalliance/credkeeper/keeper"
)

// Environment variables the runner injects into the child process.
const (
	EnvUser     = "CREDKEEPER_USER"
	EnvPassword = "CREDKEEPER_PASSWORD"
	EnvExpires  = "CREDKEEPER_EXPIRES_ON"
)

// Environ returns base with the claim's credential appended as environment
// variables. Credential variables already present in base are dropped so
// the child never sees stale values from an outer runner.
func Environ(base []string, claim *keeper.Claim) []string {
	env := make([]string, 0, len(base)+3)
	for _, kv := range base {
		switch {
		case strings.HasPrefix(kv, EnvUser+"="),
			strings.HasPrefix(kv, EnvPassword+"="),
			strings.HasPrefix(kv, EnvExpires+"="):
		default:
			env = append(env, kv)
		}
	}
	return append(env,
		EnvUser+"="+claim.Credential.User,
		EnvPassword+"="+claim.Credential.Password,
		EnvExpires+"="+claim.ExpiresOn.Format(time.RFC3339),
	)
}
