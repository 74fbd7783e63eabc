package core_test

import (
	"testing"
	"time"

	"github.com/warp/shift-engine/core"
)

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

func TestDate_ISOWeekday(t *testing.T) {
	// 2025-11-17 is a Monday; the week runs Monday=1 through Sunday=7.
	monday := core.NewDate(2025, time.November, 17)
	for offset := 0; offset < 7; offset++ {
		got := monday.AddDays(offset).ISOWeekday()
		if got != offset+1 {
			t.Errorf("day %d of the week: weekday = %d, want %d", offset, got, offset+1)
		}
	}
}

func TestDate_AddMonthsClamped(t *testing.T) {
	cases := []struct {
		name string
		from core.Date
		n    int
		want core.Date
	}{
		{"plain month", core.NewDate(2025, time.January, 15), 1, core.NewDate(2025, time.February, 15)},
		{"clamps to short month", core.NewDate(2025, time.January, 31), 1, core.NewDate(2025, time.February, 28)},
		{"clamps to 30-day month", core.NewDate(2025, time.October, 31), 1, core.NewDate(2025, time.November, 30)},
		{"leap February", core.NewDate(2024, time.January, 31), 1, core.NewDate(2024, time.February, 29)},
		{"year rollover", core.NewDate(2025, time.December, 15), 1, core.NewDate(2026, time.January, 15)},
		{"backwards across year", core.NewDate(2025, time.January, 15), -2, core.NewDate(2024, time.November, 15)},
	}
	for _, tc := range cases {
		if got := tc.from.AddMonthsClamped(tc.n); !got.Equal(tc.want) {
			t.Errorf("%s: %s + %d months = %s, want %s", tc.name, tc.from, tc.n, got, tc.want)
		}
	}
}

func TestDate_IsLastDayOfMonth(t *testing.T) {
	if !core.NewDate(2025, time.February, 28).IsLastDayOfMonth() {
		t.Error("2025-02-28 is the last day of a non-leap February")
	}
	if core.NewDate(2024, time.February, 28).IsLastDayOfMonth() {
		t.Error("2024-02-28 is not last; 2024 is a leap year")
	}
	if !core.NewDate(2024, time.February, 29).IsLastDayOfMonth() {
		t.Error("2024-02-29 is the last day of a leap February")
	}
}

func TestDaysBetween_Signed(t *testing.T) {
	a := core.NewDate(2025, time.November, 1)
	b := core.NewDate(2025, time.November, 10)
	if got := core.DaysBetween(a, b); got != 9 {
		t.Errorf("forward = %d, want 9", got)
	}
	if got := core.DaysBetween(b, a); got != -9 {
		t.Errorf("backward = %d, want -9", got)
	}
	if got := core.DaysBetween(a, a); got != 0 {
		t.Errorf("same day = %d, want 0", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := core.ParseDate("2025-11-10")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Year() != 2025 || d.Month() != time.November || d.Day() != 10 {
		t.Errorf("parsed %s", d)
	}
	if _, err := core.ParseDate("10.11.2025"); err == nil {
		t.Error("non-ISO input must fail")
	}
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := core.NewDate(2025, time.November, 10)
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-11-10"` {
		t.Errorf("marshal = %s", b)
	}
	var back core.Date
	if err := back.UnmarshalJSON(b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip = %s, want %s", back, d)
	}
}

// =============================================================================
// WALL-CLOCK TIMES AND ZONES
// =============================================================================

func TestParseDayTime(t *testing.T) {
	dt, err := core.ParseDayTime("22:30")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if dt.Hour != 22 || dt.Minute != 30 {
		t.Errorf("parsed %+v", dt)
	}
	if _, err := core.ParseDayTime("25:00"); err == nil {
		t.Error("hour 25 must fail")
	}
}

func TestDayTime_On_UsesTheGivenZone(t *testing.T) {
	// 22:00 in Berlin on a November date is 21:00 UTC (CET, +01:00).
	berlin, err := core.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	closing := core.DayTime{Hour: 22, Minute: 0}
	got := closing.On(core.NewDate(2025, time.November, 15), berlin).UTC()
	want := time.Date(2025, time.November, 15, 21, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("closing instant = %s, want %s", got, want)
	}
}

func TestNextMidnightIn(t *testing.T) {
	berlin, err := core.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	d := core.NewDate(2025, time.November, 15)

	gotUTC := d.NextMidnightIn(time.UTC)
	if !gotUTC.Equal(time.Date(2025, time.November, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("UTC midnight = %s", gotUTC)
	}
	gotBerlin := d.NextMidnightIn(berlin).UTC()
	if !gotBerlin.Equal(time.Date(2025, time.November, 15, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("Berlin midnight = %s, want 23:00 UTC", gotBerlin)
	}
}

func TestWorkDate_AttributesByLocalCalendar(t *testing.T) {
	// GIVEN: An instant late in the UTC evening
	// THEN: Berlin (+1) already counts it as the next day; New York (-5)
	//       still counts it as the previous one

	berlin, _ := core.LoadLocation("Europe/Berlin")
	newYork, _ := core.LoadLocation("America/New_York")

	at := time.Date(2025, time.November, 15, 23, 30, 0, 0, time.UTC)
	if got := core.WorkDate(at, berlin); !got.Equal(core.NewDate(2025, time.November, 16)) {
		t.Errorf("Berlin work date = %s, want 2025-11-16", got)
	}
	if got := core.WorkDate(at, newYork); !got.Equal(core.NewDate(2025, time.November, 15)) {
		t.Errorf("New York work date = %s, want 2025-11-15", got)
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := core.LoadLocation("")
	if err != nil || loc != time.UTC {
		t.Errorf("empty name: loc=%v err=%v, want UTC", loc, err)
	}
	if _, err := core.LoadLocation("Not/AZone"); err == nil {
		t.Error("unknown zone must fail")
	}
}

func TestToday_NotZero(t *testing.T) {
	if core.Today(nil).IsZero() {
		t.Error("today must never be the zero date")
	}
}
