package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDurationUntilNextMidnight(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		offset time.Duration
		want   time.Duration
	}{
		{"utc evening", time.Date(2024, 1, 5, 22, 30, 0, 0, time.UTC), 0, 90 * time.Minute},
		{"wib crosses the utc day", time.Date(2024, 1, 5, 16, 0, 0, 0, time.UTC), 7 * time.Hour, time.Hour},
		{"exactly midnight", time.Date(2024, 1, 5, 17, 0, 0, 0, time.UTC), 7 * time.Hour, 24 * time.Hour},
		{"negative offset", time.Date(2024, 1, 5, 3, 0, 0, 0, time.UTC), -5 * time.Hour, 2 * time.Hour},
		{"month end", time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC), 0, time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DurationUntilNextMidnight(tt.now, tt.offset))
		})
	}
}

func TestWIBOffset(t *testing.T) {
	_, offset := time.Date(2024, 1, 5, 0, 0, 0, 0, WIB).Zone()
	assert.Equal(t, 7*60*60, offset)
}
