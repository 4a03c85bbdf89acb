package keeper

import "sync/atomic"

// Metrics counts notable keeper server events over the life of the process.
type Metrics struct {
	grants   atomic.Uint64
	releases atomic.Uint64
	expiries atomic.Uint64
	timeouts atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of a server's counters.
type MetricsSnapshot struct {
	Grants   uint64
	Releases uint64
	Expiries uint64
	Timeouts uint64
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Grants:   m.grants.Load(),
		Releases: m.releases.Load(),
		Expiries: m.expiries.Load(),
		Timeouts: m.timeouts.Load(),
	}
}
