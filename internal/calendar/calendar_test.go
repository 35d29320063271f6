package calendar_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/ledger/internal/calendar"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAllocate(t *testing.T) {
	type args struct {
		ref        time.Time
		closingDay int
		dueDay     int
	}

	tests := []struct {
		name string
		args args
		want calendar.Period
	}{
		{
			name: "BeforeClosingDay",
			args: args{ref: date(2024, time.March, 10), closingDay: 25, dueDay: 10},
			want: calendar.Period{Month: time.March, Year: 2024, DueDate: date(2024, time.March, 10)},
		},
		{
			name: "OnClosingDayStaysInMonth",
			args: args{ref: date(2024, time.March, 25), closingDay: 25, dueDay: 10},
			want: calendar.Period{Month: time.March, Year: 2024, DueDate: date(2024, time.March, 10)},
		},
		{
			name: "DayAfterClosingRollsOver",
			args: args{ref: date(2024, time.March, 26), closingDay: 25, dueDay: 10},
			want: calendar.Period{Month: time.April, Year: 2024, DueDate: date(2024, time.April, 10)},
		},
		{
			name: "DecemberRollsIntoNextYear",
			args: args{ref: date(2024, time.December, 28), closingDay: 20, dueDay: 5},
			want: calendar.Period{Month: time.January, Year: 2025, DueDate: date(2025, time.January, 5)},
		},
		{
			name: "DueDayClampedInLeapFebruary",
			args: args{ref: date(2024, time.February, 3), closingDay: 15, dueDay: 31},
			want: calendar.Period{Month: time.February, Year: 2024, DueDate: date(2024, time.February, 29)},
		},
		{
			name: "DueDayClampedInFebruary",
			args: args{ref: date(2023, time.January, 20), closingDay: 15, dueDay: 31},
			want: calendar.Period{Month: time.February, Year: 2023, DueDate: date(2023, time.February, 28)},
		},
		{
			name: "ClosingDay31NeverRollsOver",
			args: args{ref: date(2024, time.January, 31), closingDay: 31, dueDay: 10},
			want: calendar.Period{Month: time.January, Year: 2024, DueDate: date(2024, time.January, 10)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calendar.Allocate(tt.args.ref, tt.args.closingDay, tt.args.dueDay)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocate_DueDayWithinRange(t *testing.T) {
	start := date(2023, time.January, 1)

	for d := range 800 {
		ref := start.AddDate(0, 0, d)

		for _, days := range [][2]int{{1, 31}, {25, 10}, {31, 30}, {28, 29}} {
			p := calendar.Allocate(ref, days[0], days[1])

			assert.Equal(t, p.Month, p.DueDate.Month())
			assert.Equal(t, p.Year, p.DueDate.Year())
			assert.LessOrEqual(t, p.DueDate.Day(), calendar.LastDay(p.Year, p.Month))
		}
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{name: "Zero", in: date(2024, time.May, 17), n: 0, want: date(2024, time.May, 17)},
		{name: "ClampToLeapFebruary", in: date(2024, time.January, 31), n: 1, want: date(2024, time.February, 29)},
		{name: "ClampToFebruary", in: date(2023, time.January, 31), n: 1, want: date(2023, time.February, 28)},
		{name: "DayRestoredAfterShortMonth", in: date(2024, time.January, 31), n: 2, want: date(2024, time.March, 31)},
		{name: "ClampToThirty", in: date(2024, time.March, 31), n: 1, want: date(2024, time.April, 30)},
		{name: "AcrossYear", in: date(2024, time.November, 15), n: 14, want: date(2026, time.January, 15)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calendar.AddMonths(tt.in, tt.n))
		})
	}
}

func TestPeriod_Shift(t *testing.T) {
	p := calendar.NewPeriod(2024, time.November, 31)

	assert.Equal(t, calendar.Period{Month: time.December, Year: 2024, DueDate: date(2024, time.December, 31)}, p.Shift(1, 31))
	assert.Equal(t, calendar.Period{Month: time.February, Year: 2025, DueDate: date(2025, time.February, 28)}, p.Shift(3, 31))
	assert.True(t, p.Before(p.Shift(1, 31)))
	assert.False(t, p.Shift(1, 31).Before(p))
}

func TestLastDay(t *testing.T) {
	assert.Equal(t, 29, calendar.LastDay(2024, time.February))
	assert.Equal(t, 28, calendar.LastDay(2100, time.February))
	assert.Equal(t, 31, calendar.LastDay(2024, time.December))
	assert.Equal(t, 30, calendar.LastDay(2024, time.April))
}
