package logprov

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scjalliance/credkeeper/credential"
)

// Provider writes committed credential transactions to a transaction log.
type Provider struct {
	source   credential.Provider
	log      *log.Logger
	schedule []Schedule
	ops      atomic.Uint64 // Effects written since the last checkpoint
	lastCP   atomic.Int64  // Time of the last checkpoint in unix nanoseconds
	mutex    sync.RWMutex  // Only locked for checkpointing
}

// New returns a new transaction logging provider that wraps source.
//
// A checkpoint block is written immediately, and again whenever any of the
// given schedules comes due.
func New(source credential.Provider, logger *log.Logger, schedule ...Schedule) *Provider {
	p := &Provider{
		source:   source,
		log:      logger,
		schedule: schedule,
	}
	p.Checkpoint()
	return p
}

// Close releases any resources consumed by the provider and its source.
func (p *Provider) Close() error {
	return p.source.Close()
}

// ProviderName returns the name of the provider.
func (p *Provider) ProviderName() string {
	return fmt.Sprintf("%s (with logged transactions)", p.source.ProviderName())
}

// Services returns all of the services with pool data.
func (p *Provider) Services() (services []string, err error) {
	return p.source.Services()
}

// View returns the current revision and pool state for the service.
func (p *Provider) View(service string) (revision uint64, state credential.State, err error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.source.View(service)
}

// Commit will attempt to apply the changes described in the credential
// transaction.
func (p *Provider) Commit(tx *credential.Tx) error {
	p.mutex.RLock()
	err := p.source.Commit(tx)
	if err == nil {
		p.record(tx)
	}
	p.mutex.RUnlock()

	if err == nil && p.due(time.Now()) {
		p.Checkpoint()
	}
	return err
}

// Checkpoint will write all of the pool state to the transaction log in a
// checkpoint block.
//
// In order for the checkpoint to obtain a consistent view of the pool state
// it must hold an exclusive lock while the checkpoint is being performed. All
// other operations on the provider will block until the checkpoint has
// finished.
func (p *Provider) Checkpoint() (err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	at := time.Now().UnixNano()

	services, err := p.source.Services()
	if err != nil {
		return
	}

	p.log.Printf("CP %v START", at)

	for _, service := range services {
		revision, state, viewErr := p.source.View(service)
		if viewErr != nil {
			p.log.Printf("CP %v SERVICE %s ERR %v", at, service, viewErr)
			continue
		}
		p.log.Printf("CP %v SERVICE %s REV %d QUEUE %d", at, service, revision, len(state.Queue))
		for i := range state.Leases {
			p.log.Printf("CP %v LEASE %s", at, state.Leases[i].Subject())
		}
	}

	p.log.Printf("CP %v END", at)

	p.ops.Store(0)
	p.lastCP.Store(at)

	return
}

func (p *Provider) record(tx *credential.Tx) {
	effects := tx.Effects()
	for _, effect := range effects {
		p.log.Printf("TX %s", effect)
	}
	p.ops.Add(uint64(len(effects)))
}

func (p *Provider) due(now time.Time) bool {
	ops := p.ops.Load()
	elapsed := now.Sub(time.Unix(0, p.lastCP.Load()))
	for _, s := range p.schedule {
		if s.ops > 0 && ops >= s.ops {
			return true
		}
		if s.every > 0 && elapsed >= s.every {
			return true
		}
	}
	return false
}
