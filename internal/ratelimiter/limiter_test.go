package ratelimiter

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBurstThenRefill(t *testing.T) {
	l := PerMinute(60, 2, time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow("u1", now))
	assert.True(t, l.Allow("u1", now))
	assert.False(t, l.Allow("u1", now))

	// Other callers have their own bucket.
	assert.True(t, l.Allow("u2", now))

	assert.True(t, l.Allow("u1", now.Add(time.Second)))
}

func TestFractionalRate(t *testing.T) {
	l := PerMinute(0.5, 1, time.Hour)
	require.NotNil(t, l)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, l.Allow("u1", now))
	assert.False(t, l.Allow("u1", now.Add(time.Minute)))
	assert.True(t, l.Allow("u1", now.Add(2*time.Minute+time.Second)))
}

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	assert.Nil(t, PerMinute(0, 5, 0))
	assert.True(t, l.Allow("any", time.Now()))
	assert.Equal(t, 0, l.Len())
}

func TestBlankKeyIsNotLimited(t *testing.T) {
	l := PerMinute(1, 1, time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow("  ", now))
	}
	assert.Equal(t, 0, l.Len())
}

func TestIdleBucketsAreSwept(t *testing.T) {
	l := PerMinute(60, 1, time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.Allow("old", start)

	later := start.Add(time.Hour)
	for i := 0; i < sweepEvery; i++ {
		l.Allow(fmt.Sprintf("k%d", i%3), later)
	}

	assert.Equal(t, 3, l.Len())
}
