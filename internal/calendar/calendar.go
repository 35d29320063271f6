// Package calendar maps calendar dates onto credit-card billing periods.
package calendar

import "time"

// Period identifies one monthly invoice of a card and its payment due date.
type Period struct {
	Month   time.Month
	Year    int
	DueDate time.Time
}

// Allocate returns the invoice period a charge dated ref belongs to.
// Charges made after the closing day roll over to the next month's invoice;
// a charge on the closing day itself stays in the current month.
func Allocate(ref time.Time, closingDay, dueDay int) Period {
	year, month := ref.Year(), ref.Month()
	if ref.Day() > closingDay {
		year, month = addMonths(year, month, 1)
	}

	return NewPeriod(year, month, dueDay)
}

// NewPeriod builds the period for the given month, clamping dueDay to the
// last day of that month.
func NewPeriod(year int, month time.Month, dueDay int) Period {
	day := min(dueDay, LastDay(year, month))

	return Period{
		Month:   month,
		Year:    year,
		DueDate: time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
	}
}

// Shift returns the period n months after p, recomputing the due date.
func (p Period) Shift(n, dueDay int) Period {
	year, month := addMonths(p.Year, p.Month, n)

	return NewPeriod(year, month, dueDay)
}

func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}

	return p.Month < other.Month
}

// AddMonths moves t forward by n calendar months, keeping the day of month
// when it exists and clamping to the month's last day otherwise.
func AddMonths(t time.Time, n int) time.Time {
	year, month := addMonths(t.Year(), t.Month(), n)
	day := min(t.Day(), LastDay(year, month))

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// LastDay returns the number of days in the given month.
func LastDay(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month-1) + n

	return idx / 12, time.Month(idx%12 + 1)
}
