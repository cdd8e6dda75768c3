package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseMask(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mask
		wantErr bool
	}{
		{
			name:  "empty means monday to friday",
			input: "",
			want:  DefaultMask,
		},
		{
			name:  "five day week",
			input: "1111100",
			want:  Mask{true, true, true, true, true, false, false},
		},
		{
			name:  "weekend shift",
			input: "0000011",
			want:  Mask{false, false, false, false, false, true, true},
		},
		{
			name:    "wrong length",
			input:   "11111",
			wantErr: true,
		},
		{
			name:    "wrong chars",
			input:   "11111xx",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMask(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsWorkingDay(t *testing.T) {
	// 2026-01-05 — понедельник.
	monday := date(2026, 1, 5)
	saturday := date(2026, 1, 10)
	sunday := date(2026, 1, 11)

	assert.True(t, DefaultMask.IsWorkingDay(monday))
	assert.False(t, DefaultMask.IsWorkingDay(saturday))
	assert.False(t, DefaultMask.IsWorkingDay(sunday))

	weekendOnly := Mask{false, false, false, false, false, true, true}
	assert.False(t, weekendOnly.IsWorkingDay(monday))
	assert.True(t, weekendOnly.IsWorkingDay(saturday))
}

func TestCountWorkingDays(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Time
		want       int
	}{
		{
			name:  "two full weeks",
			start: date(2026, 1, 5),
			end:   date(2026, 1, 16),
			want:  10,
		},
		{
			name:  "single saturday",
			start: date(2026, 1, 10),
			end:   date(2026, 1, 10),
			want:  0,
		},
		{
			name:  "inverted range is empty",
			start: date(2026, 1, 16),
			end:   date(2026, 1, 5),
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CountWorkingDays(DefaultMask, tt.start, tt.end))
		})
	}
}

func TestEnumerateWorkingDays(t *testing.T) {
	days := EnumerateWorkingDays(DefaultMask, date(2026, 1, 5), date(2026, 1, 16))
	require.Len(t, days, 10)
	assert.Equal(t, date(2026, 1, 5), days[0])
	assert.Equal(t, date(2026, 1, 9), days[4])
	// Выходные 10–11 января пропущены.
	assert.Equal(t, date(2026, 1, 12), days[5])
	assert.Equal(t, date(2026, 1, 16), days[9])

	assert.Empty(t, EnumerateWorkingDays(DefaultMask, date(2026, 1, 16), date(2026, 1, 5)))
}

func TestWeekBounds(t *testing.T) {
	// 2026-01-07 — среда; неделя 5–11 января.
	monday, nextMonday := WeekBounds(date(2026, 1, 7))
	assert.Equal(t, date(2026, 1, 5), monday)
	assert.Equal(t, date(2026, 1, 12), nextMonday)

	// Граничные случаи: понедельник и воскресенье той же недели.
	monday, nextMonday = WeekBounds(date(2026, 1, 5))
	assert.Equal(t, date(2026, 1, 5), monday)
	assert.Equal(t, date(2026, 1, 12), nextMonday)

	monday, nextMonday = WeekBounds(date(2026, 1, 11))
	assert.Equal(t, date(2026, 1, 5), monday)
	assert.Equal(t, date(2026, 1, 12), nextMonday)
}

func TestCutoffPassed(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		cutoff  string
		tz      string
		want    bool
		wantErr bool
	}{
		{
			name:   "before cutoff",
			now:    time.Date(2026, 1, 5, 9, 59, 0, 0, time.UTC),
			cutoff: "10:30",
			tz:     "UTC",
			want:   false,
		},
		{
			name:   "exactly at cutoff counts as passed",
			now:    time.Date(2026, 1, 5, 10, 30, 0, 0, time.UTC),
			cutoff: "10:30",
			tz:     "UTC",
			want:   true,
		},
		{
			name:   "after cutoff",
			now:    time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
			cutoff: "10:30",
			tz:     "UTC",
			want:   true,
		},
		{
			name:   "timezone shifts the deadline",
			now:    time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC), // 11:00 в Москве
			cutoff: "10:30",
			tz:     "Europe/Moscow",
			want:   true,
		},
		{
			name:   "empty cutoff never passes",
			now:    time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC),
			cutoff: "",
			tz:     "UTC",
			want:   false,
		},
		{
			name:    "broken timezone",
			now:     time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
			cutoff:  "10:30",
			tz:      "Mars/Olympus",
			wantErr: true,
		},
		{
			name:    "broken cutoff format",
			now:     time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC),
			cutoff:  "25:99",
			tz:      "UTC",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CutoffPassed(tt.now, tt.cutoff, tt.tz)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDateOnly(t *testing.T) {
	ts := time.Date(2026, 1, 5, 18, 45, 12, 99, time.UTC)
	assert.Equal(t, date(2026, 1, 5), DateOnly(ts))
}
