package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Day tokens arrive in two spellings that mean the same thing: a three-letter
// weekday abbreviation ("Mon") or a 1-7 ordinal with 1 = Sunday ("2").
// Both are accepted at this boundary and normalized to time.Weekday
// immediately; nothing downstream sees the raw tokens.

var abbrevToWeekday = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// ParseDayToken normalizes a single day token. Unparseable tokens report
// ok=false and are silently dropped by callers.
func ParseDayToken(tok string) (time.Weekday, bool) {
	s := strings.ToLower(strings.TrimSpace(tok))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 7 {
			return 0, false
		}
		return time.Weekday(n - 1), true
	}
	if len(s) > 3 {
		s = s[:3]
	}
	wd, ok := abbrevToWeekday[s]
	return wd, ok
}

// ParseDays normalizes a token list into a weekday set. Duplicates collapse;
// invalid tokens are dropped. An empty result means "never".
func ParseDays(tokens []string) map[time.Weekday]bool {
	out := make(map[time.Weekday]bool, len(tokens))
	for _, tok := range tokens {
		if wd, ok := ParseDayToken(tok); ok {
			out[wd] = true
		}
	}
	return out
}

// parseHHMM parses a wall-clock "HH:MM" time-of-day.
func parseHHMM(s string) (hour int, minute int, err error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, errInvalidTime(s)
	}
	h, aerr := strconv.Atoi(parts[0])
	if aerr != nil || h < 0 || h > 23 {
		return 0, 0, errInvalidTime(s)
	}
	m, aerr := strconv.Atoi(parts[1])
	if aerr != nil || m < 0 || m > 59 {
		return 0, 0, errInvalidTime(s)
	}
	return h, m, nil
}

type errInvalidTime string

func (e errInvalidTime) Error() string { return "invalid time " + strconv.Quote(string(e)) + ", expected HH:MM" }
