package coerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vhsops/internal/config"
)

func TestDate(t *testing.T) {
	d := Date("2026-03-15")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), *d)

	d = Date("2026-03-15T10:30:00Z")
	require.NotNil(t, d)
	assert.Equal(t, 10, d.Hour())

	assert.Nil(t, Date("not a date"))
	assert.Nil(t, Date(""))
	assert.Nil(t, Date(nil))
	assert.Nil(t, Date(42.0))
}

func TestNumber(t *testing.T) {
	n := Number(12.5)
	require.NotNil(t, n)
	assert.Equal(t, 12.5, *n)

	n = Number(" 90 ")
	require.NotNil(t, n)
	assert.Equal(t, 90.0, *n)

	assert.Nil(t, Number(""))
	assert.Nil(t, Number("  "))
	assert.Nil(t, Number("ninety"))
	assert.Nil(t, Number(nil))
	assert.Nil(t, Number(true))
}

func TestMinutesClockStrings(t *testing.T) {
	m := Minutes("1:30:00", config.UnitSeconds)
	require.NotNil(t, m)
	assert.InDelta(t, 90.0, *m, 1e-9)

	m = Minutes("2:15", config.UnitSeconds)
	require.NotNil(t, m)
	assert.InDelta(t, 2.25, *m, 1e-9)

	m = Minutes("0:45:30", config.UnitMinutes)
	require.NotNil(t, m)
	assert.InDelta(t, 45.5, *m, 1e-9)

	assert.Nil(t, Minutes("1:2:3:4", config.UnitSeconds))
	assert.Nil(t, Minutes("a:b", config.UnitSeconds))
}

func TestMinutesUnitModes(t *testing.T) {
	m := Minutes(600.0, config.UnitSeconds)
	require.NotNil(t, m)
	assert.Equal(t, 10.0, *m)

	m = Minutes(600.0, config.UnitMinutes)
	require.NotNil(t, m)
	assert.Equal(t, 600.0, *m)

	// auto: above the threshold reads as seconds, below as minutes
	m = Minutes(600.0, config.UnitAuto)
	require.NotNil(t, m)
	assert.Equal(t, 10.0, *m)

	m = Minutes(120.0, config.UnitAuto)
	require.NotNil(t, m)
	assert.Equal(t, 120.0, *m)

	m = Minutes("480", config.UnitSeconds)
	require.NotNil(t, m)
	assert.Equal(t, 8.0, *m)
}

func TestMinutesDegradesToAbsent(t *testing.T) {
	assert.Nil(t, Minutes("garbage", config.UnitSeconds))
	assert.Nil(t, Minutes("", config.UnitSeconds))
	assert.Nil(t, Minutes(nil, config.UnitSeconds))
	assert.Nil(t, Minutes(-30.0, config.UnitSeconds))
}

func TestBoolTruthySet(t *testing.T) {
	for _, v := range []any{true, 1.0, 3, int64(2), float32(0.5), "yes", "YES", "done", "checked", "✅", "2026-01-05", []any{"file.mov"}} {
		assert.True(t, Bool(v), "expected true for %v", v)
	}
}

func TestBoolFalsySet(t *testing.T) {
	for _, v := range []any{false, 0.0, -1.0, int64(0), float32(0), "no", "pending", "❌", "", "  ", nil, []any{}} {
		assert.False(t, Bool(v), "expected false for %v", v)
	}
}

func TestBoolUnknownTextIsFalse(t *testing.T) {
	// Free-form notes in a checkbox column must not count as completion.
	assert.False(t, Bool("ask Sam about this one"))
	assert.False(t, Bool("maybe"))
}

func TestText(t *testing.T) {
	assert.Equal(t, "SEQ-4", Text(" SEQ-4 "))
	assert.Equal(t, "12", Text(12.0))
	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "", Text([]any{"x"}))
}
