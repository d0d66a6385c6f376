package tzclock

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultZone is used whenever a channel carries no timezone of its own.
const DefaultZone = "Asia/Jakarta"

// ErrInvalidTimezone marks an unrecognized IANA zone identifier.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Load resolves an IANA zone name against the timezone database.
// An empty name resolves to DefaultZone. Fixed-offset shortcuts are not
// accepted: zones may observe DST, so only tzdata-backed locations are valid.
func Load(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultZone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// MustDefault returns the default location. The default zone name is a
// compile-time constant known to exist in tzdata.
func MustDefault() *time.Location {
	loc, err := time.LoadLocation(DefaultZone)
	if err != nil {
		// Unreachable with an intact tzdata; keep UTC as the hard floor.
		return time.UTC
	}
	return loc
}

// WallClock is the set of calendar components an observer in some zone sees.
type WallClock struct {
	Year   int
	Month  time.Month
	Day    int
	Hour   int
	Minute int
	Second int
}

// At returns the wall-clock components of instant as observed in loc.
func At(instant time.Time, loc *time.Location) WallClock {
	lt := instant.In(loc)
	return WallClock{
		Year:   lt.Year(),
		Month:  lt.Month(),
		Day:    lt.Day(),
		Hour:   lt.Hour(),
		Minute: lt.Minute(),
		Second: lt.Second(),
	}
}

// Weekday returns both spellings of the weekday of instant as observed in loc:
// the three-letter abbreviation ("Sun".."Sat") and the 1-7 ordinal with
// 1 = Sunday.
func Weekday(instant time.Time, loc *time.Location) (abbrev string, ordinal int) {
	wd := instant.In(loc).Weekday()
	return wd.String()[:3], int(wd) + 1
}

// Format renders instant in loc for logs and notifications. Never use the
// result in comparisons; it is display-only.
func Format(instant time.Time, loc *time.Location) string {
	return instant.In(loc).Format("Mon, 02 Jan 2006 15:04 MST")
}
