package cache

import (
	"testing"
	"time"

	"github.com/crownlands/tenure/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiry(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewTTLCache[string, int](clk)

	c.Set("a", 42, 5*time.Minute)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	clk.Advance(5*time.Minute + time.Second)

	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheInvalidate(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := NewTTLCache[string, string](clk)

	c.Set("org", "reg", 24*time.Hour)
	c.Invalidate("org")

	_, ok := c.Get("org")
	assert.False(t, ok)
}

func TestTTLCacheZeroTTLNotStored(t *testing.T) {
	c := NewTTLCache[string, int](clock.NewFakeClock(time.Unix(0, 0)))
	c.Set("a", 1, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)
}
