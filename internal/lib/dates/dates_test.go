package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddMonthsClamped(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{
			name:   "plain month",
			start:  date(2024, time.March, 15),
			months: 1,
			want:   date(2024, time.April, 15),
		},
		{
			name:   "jan 31 clamps to feb 29 in leap year",
			start:  date(2024, time.January, 31),
			months: 1,
			want:   date(2024, time.February, 29),
		},
		{
			name:   "jan 31 clamps to feb 28 in common year",
			start:  date(2025, time.January, 31),
			months: 1,
			want:   date(2025, time.February, 28),
		},
		{
			name:   "may 31 clamps to june 30",
			start:  date(2024, time.May, 31),
			months: 1,
			want:   date(2024, time.June, 30),
		},
		{
			name:   "quarter across year boundary",
			start:  date(2024, time.November, 30),
			months: 3,
			want:   date(2025, time.February, 28),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonthsClamped(tt.start, tt.months)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddYearsClamped(t *testing.T) {
	assert.Equal(t, date(2025, time.February, 28), AddYearsClamped(date(2024, time.February, 29), 1))
	assert.Equal(t, date(2025, time.July, 1), AddYearsClamped(date(2024, time.July, 1), 1))
}

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	in := time.Date(2024, time.June, 1, 2, 30, 0, 0, loc)
	// 1 июня 02:30 UTC+5 это ещё 31 мая по UTC.
	assert.Equal(t, date(2024, time.May, 31), DateOnly(in))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 7, DaysBetween(date(2024, time.June, 1), date(2024, time.June, 8)))
	assert.Equal(t, 0, DaysBetween(date(2024, time.June, 1), date(2024, time.June, 1)))
	assert.Equal(t, -1, DaysBetween(date(2024, time.June, 2), date(2024, time.June, 1)))
}
