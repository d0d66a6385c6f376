package tzclock

import (
	"errors"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("empty name resolves to default", func(t *testing.T) {
		t.Parallel()
		loc, err := Load("")
		if err != nil {
			t.Fatalf("Load(\"\") error: %v", err)
		}
		if loc.String() != DefaultZone {
			t.Errorf("Load(\"\") = %s, want %s", loc, DefaultZone)
		}
	})

	t.Run("known zone", func(t *testing.T) {
		t.Parallel()
		loc, err := Load("America/New_York")
		if err != nil {
			t.Fatalf("Load error: %v", err)
		}
		if loc.String() != "America/New_York" {
			t.Errorf("Load = %s", loc)
		}
	})

	t.Run("unknown zone", func(t *testing.T) {
		t.Parallel()
		_, err := Load("Not/AZone")
		if !errors.Is(err, ErrInvalidTimezone) {
			t.Errorf("Load error = %v, want ErrInvalidTimezone", err)
		}
	})
}

func TestWeekday(t *testing.T) {
	t.Parallel()
	jakarta, err := Load(DefaultZone)
	if err != nil {
		t.Fatal(err)
	}

	// 2026-08-24 02:00 UTC is still Monday in UTC and Monday 09:00 in Jakarta.
	mondayUTC := time.Date(2026, 8, 24, 2, 0, 0, 0, time.UTC)
	abbrev, ordinal := Weekday(mondayUTC, jakarta)
	if abbrev != "Mon" || ordinal != 2 {
		t.Errorf("Weekday = %q/%d, want Mon/2", abbrev, ordinal)
	}

	// 2026-08-23 18:00 UTC is Sunday in UTC but already Monday 01:00 in Jakarta.
	sundayUTC := time.Date(2026, 8, 23, 18, 0, 0, 0, time.UTC)
	abbrev, ordinal = Weekday(sundayUTC, jakarta)
	if abbrev != "Mon" || ordinal != 2 {
		t.Errorf("Weekday across midnight = %q/%d, want Mon/2", abbrev, ordinal)
	}
	abbrev, ordinal = Weekday(sundayUTC, time.UTC)
	if abbrev != "Sun" || ordinal != 1 {
		t.Errorf("Weekday in UTC = %q/%d, want Sun/1", abbrev, ordinal)
	}
}

func TestAt(t *testing.T) {
	t.Parallel()
	jakarta, err := Load(DefaultZone)
	if err != nil {
		t.Fatal(err)
	}

	wc := At(time.Date(2026, 8, 24, 2, 30, 15, 0, time.UTC), jakarta)
	want := WallClock{Year: 2026, Month: time.August, Day: 24, Hour: 9, Minute: 30, Second: 15}
	if wc != want {
		t.Errorf("At = %+v, want %+v", wc, want)
	}
}
