package boltprov

import (
	"encoding/json"
	"errors"

	"github.com/boltdb/bolt"
	"github.com/scjalliance/credkeeper/credential"
)

const (
	// CredkeeperBucket is the default name of the credkeeper boltdb bucket in
	// which the provider stores data.
	CredkeeperBucket = "credkeeper"
	// PoolBucket is the name of the credkeeper pool bucket.
	PoolBucket = "pool"
)

// Provider provides boltdb-backed credential pool management.
type Provider struct {
	db   *bolt.DB
	root []byte
}

// New returns a new bolt provider that stores pool state in db.
func New(db *bolt.DB) *Provider {
	return &Provider{
		db:   db,
		root: []byte(CredkeeperBucket),
	}
}

// Open opens the bolt database file at path and returns a provider backed
// by it.
func Open(path string) (*Provider, error) {
	db, err := bolt.Open(path, 0666, nil)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Close releases any resources consumed by the provider.
func (p *Provider) Close() error {
	return p.db.Close()
}

// ProviderName returns the name of the provider.
func (p *Provider) ProviderName() string {
	return "bolt db"
}

// Services returns all of the services with pool data.
func (p *Provider) Services() (services []string, err error) {
	err = p.db.View(func(btx *bolt.Tx) error {
		container := p.container(btx)
		if container == nil {
			return nil
		}

		c := container.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if v == nil {
				// Sub-buckets hold per-service state
				services = append(services, string(k))
			}
		}

		return nil
	})
	return
}

// View returns the current revision and pool state for the service.
func (p *Provider) View(service string) (revision uint64, state credential.State, err error) {
	err = p.db.View(func(btx *bolt.Tx) error {
		container := p.container(btx)
		if container == nil {
			return nil
		}

		b := container.Bucket([]byte(service))
		if b == nil {
			return nil
		}

		revision = b.Sequence()

		data := b.Get([]byte("state"))
		if data == nil {
			return nil
		}

		return json.Unmarshal(data, &state)
	})
	return
}

// Commit will attempt to apply the changes described in the credential
// transaction.
func (p *Provider) Commit(tx *credential.Tx) error {
	if tx.Empty() {
		// Nothing to commit
		return nil
	}

	return p.db.Update(func(btx *bolt.Tx) error {
		root, err := btx.CreateBucketIfNotExists(p.root)
		if err != nil {
			return err
		}

		container, err := root.CreateBucketIfNotExists([]byte(PoolBucket))
		if err != nil {
			return err
		}

		b, err := container.CreateBucketIfNotExists([]byte(tx.Service()))
		if err != nil {
			return err
		}

		if b.Sequence() != tx.Revision() {
			return errors.New("unable to commit credential transaction due to optimistic lock conflict")
		}

		_, err = b.NextSequence()
		if err != nil {
			return err
		}

		value, err := json.Marshal(tx.State())
		if err != nil {
			return err
		}
		return b.Put([]byte("state"), value)
	})
}

func (p *Provider) container(btx *bolt.Tx) *bolt.Bucket {
	root := btx.Bucket(p.root)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(PoolBucket))
}
