package credential

import "time"

// Set is a set of leases.
type Set []Lease

// Len returns the number of leases in the set.
func (s Set) Len() int { return len(s) }

// Swap exchanges the leases at the given indices.
func (s Set) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// Less reports whether the lease at index i was created before the lease at
// index j. Handles break ties so that sorting is stable across revisions.
func (s Set) Less(i, j int) bool {
	if s[i].Created.Equal(s[j].Created) {
		return s[i].Handle < s[j].Handle
	}
	return s[i].Created.Before(s[j].Created)
}

// Index returns the index of the lease with the given handle, or -1 if no
// such lease is present in s.
func (s Set) Index(handle Handle) int {
	for i := range s {
		if s[i].Handle == handle {
			return i
		}
	}
	return -1
}

// Find returns the lease with the given handle.
func (s Set) Find(handle Handle) (ls Lease, found bool) {
	if i := s.Index(handle); i >= 0 {
		return s[i], true
	}
	return
}

// Client returns the set of leases held by the given client label.
func (s Set) Client(client string) (matched Set) {
	for i := range s {
		if s[i].Client == client {
			matched = append(matched, s[i])
		}
	}
	return
}

// Expired returns the set of leases that have expired as of the given time.
func (s Set) Expired(at time.Time) (matched Set) {
	for i := range s {
		if s[i].Expired(at) {
			matched = append(matched, s[i])
		}
	}
	return
}

// Clients returns the number of leases held by each client label.
func (s Set) Clients() map[string]int {
	counts := make(map[string]int, len(s))
	for i := range s {
		counts[s[i].Client]++
	}
	return counts
}
