package cronspec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ValidForms(t *testing.T) {
	for _, expr := range []string{
		"* * * * *",
		"*/5 * * * *",
		"0 0 1-15/2 * *",
		"0,30 9-17 * * 1,3,5",
		"0 0 * * 7",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			require.NoError(t, err)
		})
	}
}

func TestParse_InvalidForms(t *testing.T) {
	for _, expr := range []string{
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 8",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			assert.Error(t, err)
		})
	}
}

func TestWeekdayAliasFoldsToSunday(t *testing.T) {
	e7, err := Parse("0 0 * * 7")
	require.NoError(t, err)

	e0, err := Parse("0 0 * * 0")
	require.NoError(t, err)

	assert.Equal(t, e0.weekday, e7.weekday)
}

func TestNext_EveryMinute(t *testing.T) {
	e, err := Parse("* * * * *")
	require.NoError(t, err)

	from := time.Date(2026, 1, 1, 10, 30, 15, 0, time.UTC)

	next, err := e.Next(from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 1, 10, 31, 0, 0, time.UTC), next)
}

func TestNext_DailyAtThreeAM(t *testing.T) {
	e, err := Parse("0 3 * * *")
	require.NoError(t, err)

	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	next, err := e.Next(from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC), next)
}

func TestNext_DomOrDowJoin(t *testing.T) {
	// "1st of month OR Monday" — both fields restricted, so it's an OR join.
	e, err := Parse("0 0 1 * 1")
	require.NoError(t, err)

	// 2026-01-05 is a Monday but not the 1st — should still match via OR.
	from := time.Date(2026, 1, 4, 23, 59, 0, 0, time.UTC)

	next, err := e.Next(from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), next)
}

func TestValidate_Idempotent(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	r1, err := Validate("0 0 * * 7", now)
	require.NoError(t, err)

	r2, err := Validate(r1.Canonical, now)
	require.NoError(t, err)

	assert.Equal(t, r1.Canonical, r2.Canonical)
	assert.Equal(t, r1.NextFire, r2.NextFire)
}
