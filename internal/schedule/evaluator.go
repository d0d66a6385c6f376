package schedule

import (
	"time"

	"vidforge/internal/tzclock"
	logx "vidforge/pkg/logx"
)

// Spec is the per-channel schedule state the evaluator needs. Times are
// "HH:MM" wall-clock strings in the channel's zone; DaysOfWeek accepts both
// abbreviation and 1-7 ordinal tokens (see ParseDayToken).
type Spec struct {
	Enabled    bool
	IsRunning  bool
	Times      []string
	DaysOfWeek []string
	Timezone   string

	// LastRunAt is the start instant of the last successful run;
	// zero means the channel never ran.
	LastRunAt time.Time
}

// Evaluator decides due-ness and computes next-run instants. The zero value
// is usable; DefaultTimezone falls back to tzclock.DefaultZone.
type Evaluator struct {
	DefaultTimezone string
	Log             logx.Logger
}

// location resolves the spec's zone, falling back to the configured default
// (and from there to the built-in default) on unknown identifiers.
func (e Evaluator) location(name string) *time.Location {
	loc, err := tzclock.Load(name)
	if err == nil {
		return loc
	}
	if !e.Log.IsZero() {
		e.Log.Warn("unknown timezone; using default", logx.String("tz", name), logx.Err(err))
	}
	loc, err = tzclock.Load(e.DefaultTimezone)
	if err != nil {
		return tzclock.MustDefault()
	}
	return loc
}

// IsDue reports whether the schedule has a pending slot at now.
//
// A slot "HH:MM" is a candidate when it already passed within the due window:
// 0 <= now - slot <= window, both measured in minutes of the channel-zone
// wall clock. A candidate is suppressed when LastRunAt falls on the same
// zone-local calendar date with exactly the same HH:MM, so a slot fires at
// most once per day. Unparseable times and day tokens are dropped silently.
//
// The window must be configured strictly greater than the polling period or
// slots can fall between ticks; see config.AutomationConfig.
func (e Evaluator) IsDue(sp Spec, now time.Time, window time.Duration) bool {
	if !sp.Enabled || sp.IsRunning {
		return false
	}

	loc := e.location(sp.Timezone)
	lt := now.In(loc)

	days := ParseDays(sp.DaysOfWeek)
	if !days[lt.Weekday()] {
		return false
	}

	windowMin := int(window / time.Minute)
	nowMin := lt.Hour()*60 + lt.Minute()

	for _, raw := range sp.Times {
		h, m, err := parseHHMM(raw)
		if err != nil {
			continue
		}
		diff := nowMin - (h*60 + m)
		if diff < 0 || diff > windowMin {
			continue
		}
		if suppressedBy(sp.LastRunAt, lt, h, m, loc) {
			continue
		}
		return true
	}
	return false
}

// suppressedBy reports whether lastRun already covered the slot (h, m) on the
// calendar date of lt, all observed in loc.
func suppressedBy(lastRun time.Time, lt time.Time, h, m int, loc *time.Location) bool {
	if lastRun.IsZero() {
		return false
	}
	lr := lastRun.In(loc)
	return lr.Year() == lt.Year() && lr.YearDay() == lt.YearDay() &&
		lr.Hour() == h && lr.Minute() == m
}

// NextRun computes the earliest upcoming slot within the next 7 calendar days
// (today inclusive) in the spec's zone, skipping today's already-passed slots
// and the slot LastRunAt just covered. The chosen wall-clock instant is
// converted to an absolute instant using the zone's offset at that moment,
// not at now, which keeps results correct across DST transitions.
//
// ok is false when times or days are empty, or when nothing parseable
// survives filtering.
func (e Evaluator) NextRun(sp Spec, now time.Time) (next time.Time, ok bool) {
	if len(sp.Times) == 0 || len(sp.DaysOfWeek) == 0 {
		return time.Time{}, false
	}

	loc := e.location(sp.Timezone)
	days := ParseDays(sp.DaysOfWeek)
	if len(days) == 0 {
		return time.Time{}, false
	}

	base := now.In(loc)
	var best time.Time
	for off := 0; off < 7; off++ {
		day := base.AddDate(0, 0, off)
		if !days[day.Weekday()] {
			continue
		}
		for _, raw := range sp.Times {
			h, m, err := parseHHMM(raw)
			if err != nil {
				continue
			}
			cand := time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
			if off == 0 && !cand.After(now) {
				continue
			}
			if suppressedBy(sp.LastRunAt, cand, h, m, loc) {
				continue
			}
			if best.IsZero() || cand.Before(best) {
				best = cand
			}
		}
	}
	if best.IsZero() {
		return time.Time{}, false
	}
	return best.UTC(), true
}
