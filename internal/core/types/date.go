package types

import "time"

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar day at UTC midnight.
// Report rows and day windows are always expressed in this form.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day.
func Today() time.Time {
	return Day(time.Now())
}

// DayWindow returns the half-open window [day, day+1) containing t.
func DayWindow(t time.Time) (from, to time.Time) {
	from = Day(t)
	return from, from.AddDate(0, 0, 1)
}

// EffectiveDay resolves a document's report day: the day of the planned
// date when set, otherwise the day the document was created.
func EffectiveDay(planned *time.Time, createdAt time.Time) time.Time {
	if planned != nil && !planned.IsZero() {
		return Day(*planned)
	}
	if createdAt.IsZero() {
		return Today()
	}
	return Day(createdAt)
}

// ParseDay parses a "2006-01-02" calendar day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
