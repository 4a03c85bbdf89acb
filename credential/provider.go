package credential

// Provider is a credential pool management interface. It provides access to
// transactions for specific services.
type Provider interface {
	// ProviderName returns the name of the provider.
	ProviderName() string

	// Services returns the names of the services with pool state.
	Services() (services []string, err error)

	// View returns the current revision and pool state for the service. The
	// returned state is a copy that the caller may freely modify.
	View(service string) (revision uint64, state State, err error)

	// Commit attempts to apply the changes described in the pool
	// transaction. It fails if the transaction was built against a revision
	// that is no longer current.
	Commit(tx *Tx) (err error)

	// Close releases any resources consumed by the provider.
	Close() error
}
