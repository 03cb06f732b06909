package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	start := c.Now()
	c.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, c.Since(start), time.Millisecond)
}

func TestMockClock(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(base)
	assert.Equal(t, base, c.Now())

	c.Advance(time.Minute)
	assert.Equal(t, time.Minute, c.Since(base))

	c.Sleep(10 * time.Millisecond)
	c.Sleep(20 * time.Millisecond)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, c.Sleeps())
	assert.Equal(t, base.Add(time.Minute+30*time.Millisecond), c.Now())

	c.Set(base)
	assert.Equal(t, base, c.Now())
}
