package main

import (
	"time"

	"github.com/gentlemanautomaton/stathat"
)

// StatHatRecipient is a stat recipient that sends statistics to StatHat.
type StatHatRecipient struct {
	reporter stathat.StatHat
	prefix   string
}

// NewStatHatRecipient creates a new StatHat stat recipient with the given
// key.
func NewStatHatRecipient(statNamePrefix string, ezkey string) StatHatRecipient {
	return StatHatRecipient{
		reporter: stathat.New().EZKey(ezkey),
		prefix:   statNamePrefix,
	}
}

// SendService sends the given service pool statistics to StatHat.
func (r StatHatRecipient) SendService(service string, stats ServiceStats) error {
	if err := r.send(service, "in use", stats.InUse, stats.Time); err != nil {
		return err
	}
	if err := r.send(service, "available", stats.Available, stats.Time); err != nil {
		return err
	}
	if err := r.send(service, "total", stats.Total, stats.Time); err != nil {
		return err
	}

	for client, count := range stats.Clients {
		if client != "" {
			r.SendClient(service, client, count, stats.Time)
		}
	}
	return nil
}

// SendClient sends individual client statistics to StatHat.
func (r StatHatRecipient) SendClient(service, client string, count uint, t time.Time) error {
	return r.send(service, "client "+client, count, t)
}

func (r StatHatRecipient) send(service, name string, value uint, t time.Time) error {
	name = r.prefix + " " + service + " " + name
	var err error
	for i := 0; i < 3; i++ {
		if i > 0 {
			time.Sleep(200 * time.Millisecond * time.Duration(i))
		}
		err = r.reporter.PostEZ(name, stathat.KindValue, float64(value), &t)
		if err == nil {
			return nil
		}
	}
	return err
}
