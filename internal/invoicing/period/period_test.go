package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFinancialYear(t *testing.T) {
	assert.Equal(t, "2029-2030", FinancialYear(date(2030, time.March, 15)))
	assert.Equal(t, "2030-2031", FinancialYear(date(2030, time.August, 1)))
	assert.Equal(t, "2030-2031", FinancialYear(date(2030, time.July, 1)))
	assert.Equal(t, "2029-2030", FinancialYear(date(2030, time.June, 30)))
}

func TestQuarterMonthRoundTrip(t *testing.T) {
	assert.Equal(t, 1, QuarterFromMonth(time.July))
	assert.Equal(t, 1, QuarterFromMonth(time.September))
	assert.Equal(t, 2, QuarterFromMonth(time.October))
	assert.Equal(t, 3, QuarterFromMonth(time.January))
	assert.Equal(t, 4, QuarterFromMonth(time.April))
	assert.Equal(t, 4, QuarterFromMonth(time.June))

	for q := 1; q <= 4; q++ {
		assert.Equal(t, q, QuarterFromMonth(MonthFromQuarter(q)), "quarter %d", q)
	}
}

func TestFinancialYearsIn(t *testing.T) {
	years := FinancialYearsIn(date(2029, time.March, 1), date(2030, time.August, 1))
	assert.Equal(t, []string{"2028-2029", "2029-2030", "2030-2031"}, years)

	// Entirely inside one financial year.
	years = FinancialYearsIn(date(2029, time.August, 1), date(2030, time.June, 30))
	assert.Equal(t, []string{"2029-2030"}, years)

	assert.Nil(t, FinancialYearsIn(date(2030, time.January, 2), date(2030, time.January, 1)))
}

func TestQuartersIn(t *testing.T) {
	quarters := QuartersIn(date(2029, time.June, 15), date(2029, time.October, 2))
	assert.Equal(t, []Quarter{
		{FinancialYear: "2028-2029", Number: 4},
		{FinancialYear: "2029-2030", Number: 1},
		{FinancialYear: "2029-2030", Number: 2},
	}, quarters)

	quarters = QuartersIn(date(2029, time.July, 1), date(2029, time.July, 1))
	assert.Equal(t, []Quarter{{FinancialYear: "2029-2030", Number: 1}}, quarters)
}

func TestMonthsIn(t *testing.T) {
	months := MonthsIn(date(2029, time.November, 20), date(2030, time.February, 3))
	require.Len(t, months, 4)
	assert.Equal(t, date(2029, time.November, 1), months[0])
	assert.Equal(t, date(2030, time.February, 1), months[3])
}

func TestEndOfNextFinancialYear(t *testing.T) {
	assert.Equal(t, date(2030, time.June, 30), EndOfNextFinancialYear(date(2030, time.March, 15)))
	assert.Equal(t, date(2031, time.June, 30), EndOfNextFinancialYear(date(2030, time.July, 1)))
	// A date already on the boundary rolls to the following year end.
	assert.Equal(t, date(2031, time.June, 30), EndOfNextFinancialYear(date(2030, time.June, 30)))
}

func TestEndOfNextFinancialQuarter(t *testing.T) {
	assert.Equal(t, date(2030, time.September, 30), EndOfNextFinancialQuarter(date(2030, time.August, 15)))
	assert.Equal(t, date(2030, time.December, 31), EndOfNextFinancialQuarter(date(2030, time.September, 30)))
	assert.Equal(t, date(2030, time.March, 31), EndOfNextFinancialQuarter(date(2030, time.January, 1)))
	assert.Equal(t, date(2030, time.September, 30), EndOfNextFinancialQuarter(date(2030, time.June, 30)))
}

func TestDaysDifference(t *testing.T) {
	assert.Equal(t, 0, DaysDifference(date(2030, time.May, 1), date(2030, time.May, 1)))
	assert.Equal(t, 31, DaysDifference(date(2030, time.May, 1), date(2030, time.June, 1)))
	assert.Equal(t, -1, DaysDifference(date(2030, time.May, 2), date(2030, time.May, 1)))
}

func TestMonthsDifference(t *testing.T) {
	assert.Equal(t, 0, MonthsDifference(date(2030, time.May, 1), date(2030, time.May, 1)))
	assert.Equal(t, 1, MonthsDifference(date(2030, time.May, 1), date(2030, time.May, 20)))
	assert.Equal(t, 1, MonthsDifference(date(2030, time.May, 1), date(2030, time.June, 1)))
	assert.Equal(t, 2, MonthsDifference(date(2030, time.May, 1), date(2030, time.June, 2)))
	assert.Equal(t, 1, MonthsDifference(date(2030, time.May, 15), date(2030, time.June, 14)))
	assert.Equal(t, 13, MonthsDifference(date(2029, time.January, 1), date(2030, time.February, 1)))
	assert.Equal(t, -1, MonthsDifference(date(2030, time.June, 1), date(2030, time.May, 20)))
}

func TestQuartersDifference(t *testing.T) {
	assert.Equal(t, 1, QuartersDifference(date(2030, time.January, 1), date(2030, time.March, 1)))
	assert.Equal(t, 1, QuartersDifference(date(2030, time.January, 1), date(2030, time.April, 1)))
	assert.Equal(t, 2, QuartersDifference(date(2030, time.January, 1), date(2030, time.April, 2)))
}

func TestYearsDifference(t *testing.T) {
	assert.Equal(t, 1, YearsDifference(date(2029, time.January, 1), date(2030, time.January, 1)))
	// Thirteen months round up to two years.
	assert.Equal(t, 2, YearsDifference(date(2029, time.January, 1), date(2030, time.February, 1)))
	assert.Equal(t, 1, YearsDifference(date(2029, time.January, 1), date(2029, time.January, 2)))
}

func TestSchedule(t *testing.T) {
	annual, err := Schedule(date(2029, time.July, 1), date(2032, time.June, 30), FrequencyAnnual)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2029, time.July, 1),
		date(2030, time.July, 1),
		date(2031, time.July, 1),
	}, annual)

	quarterly, err := Schedule(date(2030, time.January, 1), date(2030, time.December, 31), FrequencyQuarterly)
	require.NoError(t, err)
	require.Len(t, quarterly, 4)
	assert.Equal(t, date(2030, time.October, 1), quarterly[3])

	monthly, err := Schedule(date(2030, time.January, 15), date(2030, time.March, 15), FrequencyMonthly)
	require.NoError(t, err)
	require.Len(t, monthly, 3)

	_, err = Schedule(date(2030, time.January, 1), date(2030, time.December, 31), Frequency("weekly"))
	assert.ErrorIs(t, err, ErrInvalidFrequency)

	empty, err := Schedule(date(2030, time.February, 1), date(2030, time.January, 1), FrequencyMonthly)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
