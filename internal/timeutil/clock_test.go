package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))

	select {
	case <-c.After(time.Millisecond):
	case <-time.After(5 * time.Second):
		t.Fatal("After did not fire")
	}
	assert.GreaterOrEqual(t, c.Since(now), time.Millisecond)
}

func TestMockClock(t *testing.T) {
	start := time.Date(2019, 3, 14, 9, 26, 53, 0, time.UTC)
	c := NewMockClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
	assert.Equal(t, 90*time.Second, c.Since(start))

	later := start.Add(time.Hour)
	c.Set(later)
	assert.Equal(t, later, c.Now())
}

func TestMockClockAfterFiresOnAdvance(t *testing.T) {
	start := time.Date(2019, 3, 14, 9, 26, 53, 0, time.UTC)
	c := NewMockClock(start)

	short := c.After(time.Second)
	long := c.After(3 * time.Second)
	assert.Equal(t, 2, c.Pending())

	c.Advance(2 * time.Second)
	select {
	case got := <-short:
		assert.Equal(t, start.Add(2*time.Second), got)
	default:
		t.Fatal("short wait should have fired")
	}
	select {
	case <-long:
		t.Fatal("long wait fired early")
	default:
	}
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	require.Len(t, long, 1)
	assert.Zero(t, c.Pending())

	// Non-positive waits fire without advancing.
	require.Len(t, c.After(0), 1)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 0}, c.Waits())
}

func TestMockClockAutoAdvance(t *testing.T) {
	start := time.Date(2019, 3, 14, 9, 26, 53, 0, time.UTC)
	c := NewMockClock(start)
	c.SetAutoAdvance(true)

	got := <-c.After(250 * time.Millisecond)
	assert.Equal(t, start.Add(250*time.Millisecond), got)
	assert.Equal(t, start.Add(250*time.Millisecond), c.Now())
	assert.Zero(t, c.Pending())

	waits := c.Waits()
	waits[0] = 0
	assert.Equal(t, 250*time.Millisecond, c.Waits()[0])
}
