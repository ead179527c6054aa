package model

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of estimate schedule dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without time of day, encoded as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// ParseDate parses s in DateLayout.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

// NewDate truncates t to its calendar day in UTC.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s: want a YYYY-MM-DD string", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AddBusinessDays advances start by days business days (土日を除く).
// Counting starts on the day after start. Whole weeks are added in one step,
// so the cost does not grow with days.
func AddBusinessDays(start Date, days int) Date {
	if days <= 0 {
		return start
	}
	cur := start.Time
	// a weekend start counts the same as the Friday before it
	switch cur.Weekday() {
	case time.Saturday:
		cur = cur.AddDate(0, 0, -1)
	case time.Sunday:
		cur = cur.AddDate(0, 0, -2)
	}
	cur = cur.AddDate(0, 0, days/5*7)
	for added := 0; added < days%5; {
		cur = cur.AddDate(0, 0, 1)
		if wd := cur.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return Date{cur}
}
