package tzconv

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToUTC(t *testing.T) {
	c := New()

	// 10:00 wall clock in New York during DST is 14:00 UTC.
	wall := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	got, err := c.ToUTC(wall, "America/New_York")
	require.NoError(t, err)
	assert.True(t, got.Equal(time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)))

	_, err = c.ToUTC(wall, "Not/AZone")
	require.Error(t, err)
}

func TestToLocal(t *testing.T) {
	c := New()

	utc := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	got, err := c.ToLocal(utc, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())

	_, err = c.ToLocal(utc, "Not/AZone")
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	c := New()

	wall := time.Date(2025, 12, 24, 18, 30, 0, 0, time.UTC)
	utc, err := c.ToUTC(wall, "Europe/Berlin")
	require.NoError(t, err)
	local, err := c.ToLocal(utc, "Europe/Berlin")
	require.NoError(t, err)

	assert.Equal(t, wall.Hour(), local.Hour())
	assert.Equal(t, wall.Minute(), local.Minute())
	assert.Equal(t, wall.Day(), local.Day())
}
