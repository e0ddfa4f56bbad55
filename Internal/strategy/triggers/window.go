package triggers

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Window is a daily time-of-day range [Start, End) in Location. The zero
// value never matches.
type Window struct {
	Start    time.Duration
	End      time.Duration
	Location *time.Location
}

// ParseWindow builds a window from "HH:MM" clock strings and an IANA zone
// name. An empty zone means UTC.
func ParseWindow(start, end, zone string) (Window, error) {
	loc := time.UTC
	if zone != "" {
		l, err := time.LoadLocation(zone)
		if err != nil {
			return Window{}, fmt.Errorf("load location %q: %w", zone, err)
		}
		loc = l
	}

	s, err := clockOffset(start)
	if err != nil {
		return Window{}, fmt.Errorf("window start: %w", err)
	}
	e, err := clockOffset(end)
	if err != nil {
		return Window{}, fmt.Errorf("window end: %w", err)
	}
	if e < s {
		return Window{}, fmt.Errorf("window end %s is before start %s", end, start)
	}

	return Window{Start: s, End: e, Location: loc}, nil
}

func clockOffset(clock string) (time.Duration, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", clock, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (w Window) Contains(t time.Time) bool {
	if w.End <= w.Start {
		return false
	}
	loc := w.Location
	if loc == nil {
		loc = t.Location()
	}
	local := t.In(loc)
	offset := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	return offset >= w.Start && offset < w.End
}

func (w Window) String() string {
	name := "local"
	if w.Location != nil {
		name = w.Location.String()
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d %s",
		int(w.Start.Hours()), int(w.Start.Minutes())%60,
		int(w.End.Hours()), int(w.End.Minutes())%60, name)
}
