package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const periodLayout = "2006-01"

// Period is a calendar year-month used as the payroll key.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses the "YYYY-MM" form.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodLayout, s)
	if err != nil {
		return Period{}, Validationf("period %q must use the YYYY-MM form", s)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// PeriodOf returns the period containing t in loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	if loc != nil {
		t = t.In(loc)
	}
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Range returns the [first day, first day of next month) window in loc.
func (p Period) Range(loc *time.Location) DateRange {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, orUTC(loc))
	return DateRange{Start: start, End: start.AddDate(0, 1, 0)}
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the period as text.
func (p Period) Value() (driver.Value, error) {
	return p.String(), nil
}

// Scan reads the text form written by Value.
func (p *Period) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("ledger: cannot scan %T into Period", src)
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// DateRange is a half-open [Start, End) interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange covers the calendar days start..end inclusive in loc.
func NewDateRange(start, end time.Time, loc *time.Location) (DateRange, error) {
	loc = orUTC(loc)
	s := startOfDay(start, loc)
	e := startOfDay(end, loc)
	if e.Before(s) {
		return DateRange{}, Validationf("end date %s is before start date %s", e.Format(time.DateOnly), s.Format(time.DateOnly))
	}
	return DateRange{Start: s, End: e.AddDate(0, 0, 1)}, nil
}

// YearRange covers the whole calendar year in loc.
func YearRange(year int, loc *time.Location) DateRange {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, orUTC(loc))
	return DateRange{Start: start, End: start.AddDate(1, 0, 0)}
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// LastDay is the inclusive final calendar day of the range.
func (r DateRange) LastDay() time.Time {
	return r.End.AddDate(0, 0, -1)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
