package credential

import (
	"fmt"
	"sort"
	"time"
)

// Tx is a pool transaction that describes a series of operations to be
// atomically applied to a service's pool state.
type Tx struct {
	service  string
	revision uint64
	state    State
	effects  []Effect
}

// NewTx creates a new transaction for the given service, revision and pool
// state. The transaction takes ownership of the state.
func NewTx(service string, revision uint64, state State) *Tx {
	return &Tx{
		service:  service,
		revision: revision,
		state:    state,
	}
}

// Service returns the service the transaction will operate on.
func (tx *Tx) Service() string {
	return tx.service
}

// Revision returns the revision of the pool state that the transaction is
// based on.
func (tx *Tx) Revision() uint64 {
	return tx.revision
}

// State returns the pool state that the transaction will produce.
func (tx *Tx) State() State {
	return tx.state
}

// Empty returns true if the transaction carries no changes.
func (tx *Tx) Empty() bool {
	return len(tx.effects) == 0
}

// Effects returns a set of strings describing the effects of the
// transaction.
func (tx *Tx) Effects() []Effect {
	return tx.effects
}

// Acquire takes the next free credential from the queue and leases it to the
// given client until expiry has elapsed. It returns false if the queue is
// empty.
func (tx *Tx) Acquire(client string, handle Handle, expiry time.Duration, at time.Time) (Lease, bool) {
	if len(tx.state.Queue) == 0 {
		return Lease{}, false
	}
	cred := tx.state.Queue[0]
	tx.state.Queue = tx.state.Queue[1:]
	ls := Lease{
		Handle:     handle,
		Credential: cred,
		Client:     client,
		Created:    at,
		ExpiresOn:  at.Add(expiry),
	}
	tx.state.Leases = append(tx.state.Leases, ls)
	sort.Sort(tx.state.Leases)
	tx.record("GRANT %s %s until %s", tx.service, ls.Subject(), ls.ExpiresOn.Format(time.RFC3339))
	return ls, true
}

// Release ends the lease with the given handle and returns its credential to
// the back of the queue. It returns false if no such lease exists.
func (tx *Tx) Release(handle Handle, at time.Time) (Lease, bool) {
	i := tx.state.Leases.Index(handle)
	if i < 0 {
		return Lease{}, false
	}
	ls := tx.state.Leases[i]
	tx.state.Leases = append(tx.state.Leases[:i], tx.state.Leases[i+1:]...)
	tx.state.Queue = append(tx.state.Queue, ls.Credential)
	tx.record("RELEASE %s %s after %s", tx.service, ls.Subject(), ls.Age(at).Round(time.Second))
	return ls, true
}

// ExpireStale ends every lease that has expired as of the given time and
// returns their credentials to the queue.
func (tx *Tx) ExpireStale(at time.Time) (expired Set) {
	var kept Set
	for _, ls := range tx.state.Leases {
		if ls.Expired(at) {
			tx.state.Queue = append(tx.state.Queue, ls.Credential)
			tx.record("EXPIRE %s %s overdue by %s", tx.service, ls.Subject(), at.Sub(ls.ExpiresOn).Round(time.Second))
			expired = append(expired, ls)
		} else {
			kept = append(kept, ls)
		}
	}
	tx.state.Leases = kept
	return
}

// Reset replaces the transaction's pool state entirely. It is used when
// seeding or reconciling a pool against configuration.
func (tx *Tx) Reset(next State) {
	tx.state = next
	tx.record("RESET %s queue %d leases %d", tx.service, len(next.Queue), len(next.Leases))
}

func (tx *Tx) record(format string, v ...interface{}) {
	tx.effects = append(tx.effects, Effect(fmt.Sprintf(format, v...)))
}
