package main

import (
	"fmt"
	"time"

	"github.com/scjalliance/credkeeper/credential"
)

// A StatRecipient is capable of receiving service pool statistics.
type StatRecipient interface {
	SendService(service string, stats ServiceStats) error
	SendClient(service, client string, count uint, t time.Time) error
}

// ServiceStatsMap holds pool statistics for a set of services.
type ServiceStatsMap map[string]ServiceStats

// ServiceStats holds statistics for a particular service pool.
type ServiceStats struct {
	Time      time.Time
	InUse     uint
	Available uint
	Total     uint
	Clients   ClientStatsMap
}

// ClientStatsMap holds lease counts for a client.
type ClientStatsMap map[string]uint

// Contains returns true if m contains client.
func (m ClientStatsMap) Contains(client string) bool {
	if m == nil {
		return false
	}
	_, found := m[client]
	return found
}

// StatManager manages service pool statistics.
type StatManager struct {
	recipient StatRecipient
	last      ServiceStatsMap // The last set of statistics that were collected
}

// NewStatManager returns a new statistics manager.
func NewStatManager(r StatRecipient) *StatManager {
	return &StatManager{recipient: r}
}

// Init initializes the stat manager.
func (m *StatManager) Init(prov credential.Provider) error {
	stats, err := m.collect(prov)
	if err != nil {
		return err
	}
	m.last = stats
	return nil
}

// CollectAndSend collects statistics from the given provider and sends them
// to the manager's stat recipient.
func (m *StatManager) CollectAndSend(prov credential.Provider) error {
	// Collect the current values
	current, err := m.collect(prov)
	if err != nil {
		return err
	}

	// Any services or clients that are no longer present need to have a
	// final set of zeroed values sent
	for service, last := range m.last {
		if current, exists := current[service]; !exists {
			removal := ServiceStats{
				Time:    time.Now(),
				Total:   last.Total,
				Clients: make(ClientStatsMap, len(last.Clients)),
			}
			for client := range last.Clients {
				removal.Clients[client] = 0
			}
			if err := m.recipient.SendService(service, removal); err != nil {
				return fmt.Errorf("failed to remove expired stats for %s: %v", service, err)
			}
		} else {
			for client, count := range last.Clients {
				if count == 0 {
					// Already zeroed in the last submission
					continue
				}
				if _, found := current.Clients[client]; found {
					// Client still holds a lease
					continue
				}
				current.Clients[client] = 0
			}
		}
	}

	// Any clients that were previously absent need to have a zero value sent
	// prior to the current value
	for service, current := range current {
		last, exists := m.last[service]
		for client := range current.Clients {
			if exists && last.Clients.Contains(client) {
				continue // Not previously absent
			}
			m.recipient.SendClient(service, client, 0, current.Time.Add(-time.Minute))
		}
	}

	// Send the current values
	for service, stats := range current {
		if err := m.recipient.SendService(service, stats); err != nil {
			return fmt.Errorf("failed to send stats for %s: %v", service, err)
		}
	}

	m.last = current

	return nil
}

func (m *StatManager) collect(prov credential.Provider) (stats ServiceStatsMap, err error) {
	services, err := prov.Services()
	if err != nil {
		return nil, err
	}

	stats = make(ServiceStatsMap, len(services))

	for _, service := range services {
		now := time.Now()
		_, state, err := prov.View(service)
		if err != nil {
			return nil, err
		}

		inUse, available := state.Counts()

		clients := make(ClientStatsMap)
		for client, count := range state.Leases.Clients() {
			clients[client] = uint(count)
		}

		stats[service] = ServiceStats{
			Time:      now,
			InUse:     uint(inUse),
			Available: uint(available),
			Total:     uint(state.Total()),
			Clients:   clients,
		}
	}

	return stats, nil
}
