// Package credential defines the domain model for credkeeper credential
// pools: credentials, leases, pool state and the transactions that mutate
// them.
package credential

import (
	"crypto/sha1"
	"encoding/hex"
)

// Credential is a user and password pair granting access to a shared
// service.
type Credential struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

// Zero returns true if the credential is empty.
func (c Credential) Zero() bool {
	return c.User == "" && c.Password == ""
}

// Fingerprint returns a short hex digest that identifies the credential in
// logs and stats without revealing its password.
func (c Credential) Fingerprint() string {
	sum := sha1.Sum([]byte(c.User + "\x00" + c.Password))
	return hex.EncodeToString(sum[:6])
}
