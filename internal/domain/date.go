package domain

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Date is a calendar day with no time-of-day component. All dates entering the
// system are normalized to midnight UTC before any comparison.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date, want YYYY-MM-DD")

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, errors.Wrap(ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// MustDate parses s and panics on failure; for tests and fixtures.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return Date{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

func (d Date) IsZero() bool        { return d.t.IsZero() }
func (d Date) Before(o Date) bool  { return d.t.Before(o.t) }
func (d Date) After(o Date) bool   { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool   { return d.t.Equal(o.t) }
func (d Date) AddDays(n int) Date  { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) Time() time.Time     { return d.t }
func (d Date) Year() int           { return d.t.Year() }
func (d Date) String() string      { return d.t.Format(dateLayout) }

// DaysBetween returns b-a in whole days; negative when b precedes a.
func DaysBetween(a, b Date) int {
	return int(b.t.Sub(a.t) / (24 * time.Hour))
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is a stay expressed as inclusive calendar-day boundaries: the guest
// is present on days Start..End and consumes the nights [Start, End). A range
// with Start == End covers zero nights.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

func NewDateRange(start, end Date) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.New("date range has unset boundary")
	}
	if !r.End.After(r.Start) {
		return errors.New("stay must cover at least one night")
	}
	return nil
}

func (r DateRange) Nights() int {
	return DaysBetween(r.Start, r.End)
}

// Overlaps reports whether the two stays share a night. The comparison is
// half-open on [Start, End), so a checkout and a checkin falling on the same
// calendar day do not conflict.
func (r DateRange) Overlaps(o DateRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// CoversNight reports whether the night starting on d belongs to the stay.
func (r DateRange) CoversNight(d Date) bool {
	return !d.Before(r.Start) && d.Before(r.End)
}

// ContainsDay reports whether d is one of the stay's calendar days, boundaries
// included.
func (r DateRange) ContainsDay(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days iterates the stay's calendar days, both boundaries included.
func (r DateRange) Days() []Date {
	days := make([]Date, 0, r.Nights()+1)
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}
