package domain

import "time"

// dateLayout defines a package constant value.
const dateLayout = "2006-01-02"

// Date is a local-wall-clock calendar day key in ISO form (2006-01-02).
type Date string

// DateOf returns the Date for a point in time.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate parses input into a normalized form.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return "", ErrInvalidDate
	}
	return DateOf(t), nil
}

// Valid reports whether the date is a well-formed calendar day.
func (d Date) Valid() bool {
	_, err := time.ParseInLocation(dateLayout, string(d), time.Local)
	return err == nil
}

// Time returns local midnight of the date.
func (d Date) Time() time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
// ISO date strings order lexicographically.
func (d Date) Before(other Date) bool {
	return d < other
}

// WeekMonday returns the Monday of the ISO week containing the date.
func (d Date) WeekMonday() Date {
	t := d.Time()
	offset := (int(t.Weekday()) + 6) % 7
	return DateOf(t.AddDate(0, 0, -offset))
}
