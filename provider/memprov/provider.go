package memprov

import (
	"errors"
	"sync"

	"github.com/scjalliance/credkeeper/credential"
)

// pool is an in-memory page of credential pool state for a single service.
type pool struct {
	mutex    sync.RWMutex
	revision uint64
	state    credential.State
}

// Provider provides memory-based credential pool management.
type Provider struct {
	mutex sync.RWMutex
	pools map[string]*pool // The pool state for each service
}

// New returns a new memory provider.
func New() *Provider {
	return &Provider{
		pools: make(map[string]*pool),
	}
}

// Close releases any resources consumed by the provider.
func (p *Provider) Close() error {
	return nil
}

// ProviderName returns the name of the provider.
func (p *Provider) ProviderName() string {
	return "In-Memory"
}

// Services returns all of the services with pool data.
func (p *Provider) Services() (services []string, err error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	for service := range p.pools {
		services = append(services, service)
	}
	return
}

// View returns the current revision and pool state for the service.
func (p *Provider) View(service string) (revision uint64, state credential.State, err error) {
	pl := p.pool(service)
	pl.mutex.RLock()
	defer pl.mutex.RUnlock()

	revision = pl.revision
	state = pl.state.Clone()
	return
}

// Commit will attempt to apply the changes described in the credential
// transaction.
func (p *Provider) Commit(tx *credential.Tx) error {
	if tx.Empty() {
		// Nothing to commit
		return nil
	}

	pl := p.pool(tx.Service())
	pl.mutex.Lock()
	defer pl.mutex.Unlock()
	if pl.revision != tx.Revision() {
		return errors.New("unable to commit credential transaction due to optimistic lock conflict")
	}
	pl.revision++
	pl.state = tx.State().Clone()
	return nil
}

func (p *Provider) pool(service string) *pool {
	p.mutex.RLock()
	pl, ok := p.pools[service]
	p.mutex.RUnlock()
	if ok {
		return pl
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	pl, ok = p.pools[service]
	if ok {
		return pl
	}
	pl = new(pool)
	p.pools[service] = pl
	return pl
}
