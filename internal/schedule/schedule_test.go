package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapoalex/AjoPool/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCycleDates(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		freq      models.Frequency
		cycle     int
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "daily first cycle",
			start:     date(2024, time.March, 1),
			freq:      models.FrequencyDaily,
			cycle:     1,
			wantStart: date(2024, time.March, 1),
			wantEnd:   date(2024, time.March, 2),
		},
		{
			name:      "daily tenth cycle",
			start:     date(2024, time.March, 1),
			freq:      models.FrequencyDaily,
			cycle:     10,
			wantStart: date(2024, time.March, 10),
			wantEnd:   date(2024, time.March, 11),
		},
		{
			name:      "weekly third cycle",
			start:     date(2024, time.March, 4),
			freq:      models.FrequencyWeekly,
			cycle:     3,
			wantStart: date(2024, time.March, 18),
			wantEnd:   date(2024, time.March, 25),
		},
		{
			name:      "monthly second cycle",
			start:     date(2024, time.January, 15),
			freq:      models.FrequencyMonthly,
			cycle:     2,
			wantStart: date(2024, time.February, 15),
			wantEnd:   date(2024, time.March, 15),
		},
		{
			name:      "monthly clamps jan 31 to feb 29 in a leap year",
			start:     date(2024, time.January, 31),
			freq:      models.FrequencyMonthly,
			cycle:     2,
			wantStart: date(2024, time.February, 29),
			wantEnd:   date(2024, time.March, 31),
		},
		{
			name:      "monthly clamps jan 31 to feb 28 outside leap years",
			start:     date(2023, time.January, 31),
			freq:      models.FrequencyMonthly,
			cycle:     2,
			wantStart: date(2023, time.February, 28),
			wantEnd:   date(2023, time.March, 31),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := CycleDates(tt.start, tt.freq, tt.cycle)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, w.Start)
			assert.Equal(t, tt.wantEnd, w.End)
			assert.Equal(t, tt.wantStart.Add(tt.wantEnd.Sub(tt.wantStart)/2), w.PaymentDue)
			assert.Equal(t, tt.wantEnd.AddDate(0, 0, -1), w.PayoutDate)
		})
	}
}

func TestCycleDatesRejectsBadInput(t *testing.T) {
	_, err := CycleDates(date(2024, time.March, 1), models.FrequencyDaily, 0)
	assert.Error(t, err)

	_, err = CycleDates(date(2024, time.March, 1), models.Frequency("hourly"), 1)
	assert.Error(t, err)
}

func TestDayArithmetic(t *testing.T) {
	due := date(2024, time.June, 10)

	tests := []struct {
		name        string
		now         time.Time
		wantOverdue int
		wantUntil   int
	}{
		{"three days before", date(2024, time.June, 7), -3, 3},
		{"due day itself", date(2024, time.June, 10), 0, 0},
		{"late in the due day still not overdue", time.Date(2024, time.June, 10, 23, 59, 0, 0, time.UTC), 0, 0},
		{"one day after", date(2024, time.June, 11), 1, -1},
		{"a week after", date(2024, time.June, 17), 7, -7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantOverdue, DaysOverdue(due, tt.now))
			assert.Equal(t, tt.wantUntil, DaysUntilDue(due, tt.now))
			assert.Equal(t, tt.wantOverdue > 0, IsOverdue(due, tt.now))
		})
	}
}

func TestWithinGracePeriod(t *testing.T) {
	due := date(2024, time.June, 10)

	assert.True(t, WithinGracePeriod(due, 2, date(2024, time.June, 8)))
	assert.True(t, WithinGracePeriod(due, 2, date(2024, time.June, 10)))
	assert.True(t, WithinGracePeriod(due, 2, date(2024, time.June, 12)))
	assert.False(t, WithinGracePeriod(due, 2, date(2024, time.June, 13)))
	assert.False(t, WithinGracePeriod(due, 0, date(2024, time.June, 11)))
}
