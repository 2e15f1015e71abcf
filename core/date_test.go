package core_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcore/leave-engine/core"
)

func TestParseDate(t *testing.T) {
	d, err := core.ParseDate("2024-06-03")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())
	assert.Equal(t, time.June, d.Month())
	assert.Equal(t, 3, d.Day())
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = core.ParseDate("03/06/2024")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestDaysUntil(t *testing.T) {
	mon := core.NewDate(2024, time.June, 3)

	assert.Equal(t, 0, mon.DaysUntil(mon))
	assert.Equal(t, 4, mon.DaysUntil(mon.AddDays(4)))
	assert.Equal(t, -2, mon.DaysUntil(mon.AddDays(-2)))
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, core.NewDate(2024, time.June, 1).IsWeekend())  // Saturday
	assert.True(t, core.NewDate(2024, time.June, 2).IsWeekend())  // Sunday
	assert.False(t, core.NewDate(2024, time.June, 3).IsWeekend()) // Monday
}

func TestDate_JSON(t *testing.T) {
	d := core.NewDate(2024, time.June, 3)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-06-03"`, string(b))

	var back core.Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(d))

	var zero core.Date
	b, err = json.Marshal(zero)
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}

func TestAddDays_CrossesMonth(t *testing.T) {
	d := core.NewDate(2024, time.June, 28)
	assert.Equal(t, "2024-07-03", d.AddDays(5).String())
}

func TestFixedClock(t *testing.T) {
	day := core.NewDate(2024, time.June, 1)
	clock := core.Fixed(day)

	assert.True(t, clock.Today().Equal(day))
	assert.Equal(t, day.Time(), clock.Now())
}
