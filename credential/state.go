package credential

// State is a snapshot of a single service's credential pool: the queue of
// free credentials and the set of outstanding leases.
type State struct {
	Queue  []Credential `json:"queue"`
	Leases Set          `json:"leases"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	var dup State
	if len(s.Queue) > 0 {
		dup.Queue = make([]Credential, len(s.Queue))
		copy(dup.Queue, s.Queue)
	}
	if len(s.Leases) > 0 {
		dup.Leases = make(Set, len(s.Leases))
		copy(dup.Leases, s.Leases)
	}
	return dup
}

// Counts returns the number of leased and free credentials in the pool.
func (s State) Counts() (inUse, available int) {
	return len(s.Leases), len(s.Queue)
}

// Total returns the total number of credentials tracked by the pool.
func (s State) Total() int {
	return len(s.Queue) + len(s.Leases)
}

// Reconcile rebuilds a pool state around a desired credential queue,
// typically after a configuration change or a server restart. Outstanding
// leases whose credential still appears in the desired queue are preserved
// and their credential withheld from the free queue. Leases on credentials
// that are no longer configured are dropped.
func Reconcile(prior State, queue []Credential) State {
	remaining := make([]Credential, len(queue))
	copy(remaining, queue)

	var next State
	for _, ls := range prior.Leases {
		if i := indexCredential(remaining, ls.Credential); i >= 0 {
			remaining = append(remaining[:i], remaining[i+1:]...)
			next.Leases = append(next.Leases, ls)
		}
	}
	next.Queue = remaining
	return next
}

func indexCredential(queue []Credential, c Credential) int {
	for i := range queue {
		if queue[i] == c {
			return i
		}
	}
	return -1
}
