package schedule

import (
	"testing"
	"time"
)

func TestParseDayToken(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want time.Weekday
		ok   bool
	}{
		{"Mon", time.Monday, true},
		{"mon", time.Monday, true},
		{"MONDAY", time.Monday, true},
		{"  Tue ", time.Tuesday, true},
		{"Sun", time.Sunday, true},
		{"1", time.Sunday, true},
		{"2", time.Monday, true},
		{"7", time.Saturday, true},
		{"0", 0, false},
		{"8", 0, false},
		{"-1", 0, false},
		{"", 0, false},
		{"xyz", 0, false},
		{"Mo", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDayToken(tc.in)
		if ok != tc.ok {
			t.Errorf("ParseDayToken(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ParseDayToken(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDaysEquivalentSpellings(t *testing.T) {
	t.Parallel()

	// "3" is the 1=Sunday ordinal for Tuesday; both spellings must land on
	// the same weekday set.
	byName := ParseDays([]string{"Tue"})
	byOrdinal := ParseDays([]string{"3"})
	if !byName[time.Tuesday] || !byOrdinal[time.Tuesday] {
		t.Fatalf("expected Tuesday from both spellings: name=%v ordinal=%v", byName, byOrdinal)
	}
	if len(byName) != 1 || len(byOrdinal) != 1 {
		t.Fatalf("expected singleton sets, got %v and %v", byName, byOrdinal)
	}
}

func TestParseDaysDropsInvalidAndDedupes(t *testing.T) {
	t.Parallel()

	got := ParseDays([]string{"Mon", "mon", "2", "bogus", "9", ""})
	if len(got) != 1 || !got[time.Monday] {
		t.Fatalf("ParseDays = %v, want {Monday}", got)
	}
}

func TestParseHHMM(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"10:00", 10, 0, false},
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{" 09:30 ", 9, 30, false},
		{"24:00", 0, 0, true},
		{"10:60", 0, 0, true},
		{"10", 0, 0, true},
		{"10:00:00", 0, 0, true},
		{"aa:bb", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tc := range cases {
		h, m, err := parseHHMM(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("parseHHMM(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err == nil && (h != tc.h || m != tc.m) {
			t.Errorf("parseHHMM(%q) = %d:%d, want %d:%d", tc.in, h, m, tc.h, tc.m)
		}
	}
}
