package logprov

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OpsSuffix is the suffix used to identify effect counts in a schedule.
const OpsSuffix = "ops"

// ParseSchedule will parse the schedule in the provided string.
//
// Schedule items are separated by spaces. Each item is either an effect
// count such as "1000ops" or a duration such as "4h".
func ParseSchedule(s string) (schedule []Schedule, err error) {
	if s == "" {
		return
	}

	items := strings.Split(s, " ")

	for _, item := range items {
		switch {
		case strings.HasSuffix(item, OpsSuffix):
			item = strings.TrimSuffix(item, OpsSuffix)
			count, err := strconv.ParseUint(item, 10, 64)
			if err != nil {
				return nil, err
			}
			schedule = append(schedule, OpsSchedule(count))
		default:
			interval, err := time.ParseDuration(item)
			if err != nil {
				return nil, fmt.Errorf("invalid checkpoint interval \"%s\": value must be an effect count like 1000ops or a duration like 4h", item)
			}
			schedule = append(schedule, IntervalSchedule(interval))
		}
	}

	return
}
