package logprov

import "time"

// Schedule is a transaction log checkpointing schedule.
type Schedule struct {
	ops   uint64        // The number of effects between each checkpoint.
	every time.Duration // The amount of time between each checkpoint.
}

// OpsSchedule creates a checkpointing schedule that will cause a checkpoint to
// occur after the specified number of effects have been written since the last
// checkpoint.
func OpsSchedule(ops uint64) Schedule {
	return Schedule{
		ops: ops,
	}
}

// IntervalSchedule creates a checkpointing schedule that will cause a
// checkpoint to occur once the specified duration has passed since the last
// checkpoint.
func IntervalSchedule(interval time.Duration) Schedule {
	return Schedule{
		every: interval,
	}
}
