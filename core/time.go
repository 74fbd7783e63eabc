package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Instant is a point in time. All instants are stored and compared in UTC;
// conversion into an object's local zone happens only at the edges
// (cutoff computation, work-day attribution).
type Instant = time.Time

// =============================================================================
// DATE - Calendar day without a clock
// =============================================================================

// Date is a day-granularity calendar date. Payment periods, paydays, and
// payroll entries are keyed by Date; shifts carry Instants.
type Date struct {
	t time.Time
}

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of an instant in the instant's location.
func DateOf(at time.Time) Date {
	return NewDate(at.Year(), at.Month(), at.Day())
}

// Today returns the current date in the given location (nil = UTC).
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(time.Now().In(loc))
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.After(o) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.Before(o) }
func (d Date) IsZero() bool              { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// AddMonthsClamped advances by whole months, clamping the day to the target
// month's length (Jan 31 + 1 month = Feb 28/29). Plain AddDate would
// normalize Jan 31 to Mar 2/3 and drift monthly paydays.
func (d Date) AddMonthsClamped(n int) Date {
	year, month, day := d.t.Year(), d.t.Month(), d.t.Day()
	month += time.Month(n)
	for month > time.December {
		month -= 12
		year++
	}
	for month < time.January {
		month += 12
		year--
	}
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func (d Date) ISOWeekday() int {
	wd := int(d.t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// IsLastDayOfMonth reports whether the date is its month's final day.
func (d Date) IsLastDayOfMonth() bool {
	return d.Day() == daysInMonth(d.Year(), d.Month())
}

// StartOfDayIn returns midnight starting this date in the given location.
func (d Date) StartOfDayIn(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// NextMidnightIn returns midnight ending this date in the given location.
// DST transitions are handled by the location, not by adding 24h.
func (d Date) NextMidnightIn(loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
}

func (d Date) String() string { return d.t.Format("2006-01-02") }

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the signed day count from one date to another.
func DaysBetween(from, to Date) int { return int(to.t.Sub(from.t).Hours() / 24) }

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// =============================================================================
// DAY TIME - Wall-clock time of day ("HH:MM")
// =============================================================================

// DayTime is a wall-clock time without a date, used for object closing
// times. Interpretation always goes through the object's time zone.
type DayTime struct {
	Hour   int
	Minute int
}

// ParseDayTime parses "15:04".
func ParseDayTime(s string) (DayTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return DayTime{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	return DayTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// On anchors the wall-clock time onto a date in a location.
func (dt DayTime) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), dt.Hour, dt.Minute, 0, 0, loc)
}

func (dt DayTime) String() string { return fmt.Sprintf("%02d:%02d", dt.Hour, dt.Minute) }

func (dt DayTime) MarshalJSON() ([]byte, error) { return json.Marshal(dt.String()) }

func (dt *DayTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDayTime(s)
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// =============================================================================
// TIME ZONE HELPERS
// =============================================================================

// LoadLocation resolves an object's IANA zone name, falling back to UTC for
// an empty name. An unknown name is a configuration error.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// WorkDate attributes an instant to a calendar work day in a location.
// A shift belongs to the period containing its start's local date.
func WorkDate(at time.Time, loc *time.Location) Date {
	return DateOf(at.In(loc))
}
