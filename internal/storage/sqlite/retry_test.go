package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/perception-eval/internal/timeutil"
)

func TestIsSQLiteBusy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"database is locked", errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{"SQLITE_BUSY", errors.New("SQLITE_BUSY"), true},
		{"other error", errors.New("some other error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isSQLiteBusy(tt.err))
		})
	}
}

func TestRetryOnBusy(t *testing.T) {
	busy := errors.New("database is locked (5) (SQLITE_BUSY)")

	t.Run("success after retry", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		calls := 0
		err := retryOnBusy(clock, func() error {
			calls++
			if calls < 3 {
				return busy
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []time.Duration{initialBusyDelay, 2 * initialBusyDelay}, clock.Sleeps())
	})

	t.Run("non-busy error fails immediately", func(t *testing.T) {
		calls := 0
		other := errors.New("some other error")
		err := retryOnBusy(timeutil.NewMockClock(time.Unix(0, 0)), func() error {
			calls++
			return other
		})
		assert.Equal(t, other, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		calls := 0
		err := retryOnBusy(clock, func() error {
			calls++
			return busy
		})
		assert.Equal(t, busy, err)
		assert.Equal(t, maxBusyRetries, calls)
		assert.Len(t, clock.Sleeps(), maxBusyRetries-1, "no sleep after the last attempt")
	})
}
