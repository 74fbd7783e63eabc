package core

// =============================================================================
// PERIOD - Inclusive calendar-day range covered by one payday
// =============================================================================

// Period is the date range a payday pays for. Both endpoints are inclusive:
// a shift belongs to the period when its work date falls on Start, End, or
// any day between.
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PAYMENT SCHEDULE - Which dates are payday, and what range they cover
// =============================================================================

type ScheduleFrequency string

const (
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
)

// PaymentInstance is one entry of the monthly new-format list. Each carries
// its own next payday and offsets; after a payroll run consumes it, the
// date advances one month so the instance matches exactly once per cycle.
//
// AnchorDay preserves the configured day-of-month across short months:
// a day-31 instance pays Feb 28 but returns to the 31st in March.
type PaymentInstance struct {
	ID              string
	NextPaymentDate Date
	AnchorDay       int // 0 = derive from NextPaymentDate
	StartOffset     int // signed days relative to payday, <= 0
	EndOffset       int
}

// PaymentSchedule determines paydays and the period each payday covers.
//
// Weekly: payday is every PaymentWeekday (ISO 1-7); the period is
// [payday+StartOffset, payday+EndOffset].
//
// Monthly, new format: Instances lists explicit upcoming paydays with
// per-instance offsets.
//
// Monthly, legacy format: used only when Instances is empty; payday is
// every month on PaymentDay with the schedule-level offsets. Payment days
// 29-31 also match the last day of shorter months.
type PaymentSchedule struct {
	ID      ScheduleID
	OwnerID OwnerID
	Name    string
	Active  bool

	Frequency ScheduleFrequency

	// Weekly fields
	PaymentWeekday int // ISO: 1 = Monday ... 7 = Sunday

	// Weekly and monthly-legacy offsets
	StartOffset int
	EndOffset   int

	// Monthly fields
	PaymentDay int // legacy anchor, 1-31
	Instances  []PaymentInstance
}

// Validate checks structural soundness. The factory calls this after
// parsing; stores may call it again before writes.
func (s PaymentSchedule) Validate() error {
	switch s.Frequency {
	case FrequencyWeekly:
		if s.PaymentWeekday < 1 || s.PaymentWeekday > 7 {
			return &ValidationError{Field: "payment_weekday", Reason: "must be 1-7 (ISO)"}
		}
		if err := validateOffsets(s.StartOffset, s.EndOffset); err != nil {
			return err
		}
	case FrequencyMonthly:
		if len(s.Instances) == 0 {
			if s.PaymentDay < 1 || s.PaymentDay > 31 {
				return &ValidationError{Field: "payment_day", Reason: "must be 1-31"}
			}
			if err := validateOffsets(s.StartOffset, s.EndOffset); err != nil {
				return err
			}
			return nil
		}
		for _, inst := range s.Instances {
			if inst.NextPaymentDate.IsZero() {
				return &ValidationError{Field: "next_payment_date", Reason: "required"}
			}
			if err := validateOffsets(inst.StartOffset, inst.EndOffset); err != nil {
				return err
			}
		}
	default:
		return &ValidationError{Field: "frequency", Reason: "must be weekly or monthly"}
	}
	return nil
}

func validateOffsets(start, end int) error {
	if start > 0 || end > 0 {
		return &ValidationError{Field: "offsets", Reason: "must be negative-or-zero day counts"}
	}
	if start > end {
		return &ValidationError{Field: "offsets", Reason: "start offset must not exceed end offset"}
	}
	return nil
}

// =============================================================================
// PERIOD CALCULATOR - At most one period per calendar date
// =============================================================================

// PeriodFor returns the period due for payment on the target date, or
// ok=false when the date is not a payday for this schedule.
//
// The function is pure and deterministic: a schedule yields at most one
// period per date. When a misconfigured schedule matches twice (two
// instances on the same payday), the first match in stable order wins and
// ambiguous=true tells the caller to log a warning.
func (s PaymentSchedule) PeriodFor(d Date) (period Period, ok bool, ambiguous bool) {
	switch s.Frequency {
	case FrequencyWeekly:
		if d.ISOWeekday() != s.PaymentWeekday {
			return Period{}, false, false
		}
		return offsetPeriod(d, s.StartOffset, s.EndOffset), true, false

	case FrequencyMonthly:
		if len(s.Instances) > 0 {
			matches := 0
			var first Period
			for _, inst := range s.Instances {
				if !inst.NextPaymentDate.Equal(d) {
					continue
				}
				if matches == 0 {
					first = offsetPeriod(d, inst.StartOffset, inst.EndOffset)
				}
				matches++
			}
			if matches == 0 {
				return Period{}, false, false
			}
			return first, true, matches > 1
		}
		// Legacy single-anchor fallback. Anchor days past the month's end
		// pay on the month's last day instead of never.
		if d.Day() == s.PaymentDay ||
			(s.PaymentDay > daysInMonth(d.Year(), d.Month()) && d.IsLastDayOfMonth()) {
			return offsetPeriod(d, s.StartOffset, s.EndOffset), true, false
		}
		return Period{}, false, false

	default:
		return Period{}, false, false
	}
}

func offsetPeriod(payday Date, startOffset, endOffset int) Period {
	return Period{
		Start: payday.AddDays(startOffset),
		End:   payday.AddDays(endOffset),
	}
}

// ConsumePayday advances every instance whose payday is the consumed
// date, so the next run matches the following month. Returns how many
// instances moved; 0 means nothing to persist. Weekly and legacy
// schedules carry no instances and always return 0.
func (s *PaymentSchedule) ConsumePayday(consumed Date) int {
	advanced := 0
	for _, inst := range s.Instances {
		if inst.NextPaymentDate.Equal(consumed) && s.AdvanceInstance(inst.ID, consumed) {
			advanced++
		}
	}
	return advanced
}

// AdvanceInstance moves the identified instance's payday forward monthly
// until it is strictly after the consumed date, preserving the anchor day
// across short months. Returns false when the instance does not exist.
// The caller persists the mutated schedule.
func (s *PaymentSchedule) AdvanceInstance(instanceID string, consumed Date) bool {
	for i := range s.Instances {
		inst := &s.Instances[i]
		if inst.ID != instanceID {
			continue
		}
		anchor := inst.AnchorDay
		if anchor == 0 {
			anchor = inst.NextPaymentDate.Day()
			inst.AnchorDay = anchor
		}
		next := inst.NextPaymentDate
		for !next.After(consumed) {
			next = nextMonthlyDate(next, anchor)
		}
		inst.NextPaymentDate = next
		return true
	}
	return false
}

// nextMonthlyDate returns the next month's payday for an anchor day,
// clamped to the target month's length.
func nextMonthlyDate(current Date, anchorDay int) Date {
	year, month := current.Year(), current.Month()+1
	if month > 12 {
		month = 1
		year++
	}
	day := anchorDay
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}
