package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

// FireTime is a daily trigger in UTC.
type FireTime struct {
	Local  string // as configured, HH:MM
	Hour   int    // UTC
	Minute int
}

// CronSpec renders the trigger for a seconds-enabled cron parser.
func (f FireTime) CronSpec() string {
	return fmt.Sprintf("0 %d %d * * *", f.Minute, f.Hour)
}

func (f FireTime) String() string {
	return fmt.Sprintf("%s local (%02d:%02d UTC)", f.Local, f.Hour, f.Minute)
}

// ParseFireTimes converts local HH:MM times to UTC using a fixed hour offset east of UTC.
// The offset is applied once; daylight saving changes are not followed.
func ParseFireTimes(times []string, offsetHours int) ([]FireTime, error) {
	if len(times) == 0 {
		return nil, fmt.Errorf("no post times configured")
	}
	result := make([]FireTime, 0, len(times))
	for _, raw := range times {
		hour, minute, err := parseClock(raw)
		if err != nil {
			return nil, err
		}
		utcHour := ((hour-offsetHours)%24 + 24) % 24
		result = append(result, FireTime{Local: strings.TrimSpace(raw), Hour: utcHour, Minute: minute})
	}
	return result, nil
}

func parseClock(raw string) (int, int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid post time %q: want HH:MM", raw)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in post time %q", raw)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in post time %q", raw)
	}
	return hour, minute, nil
}
