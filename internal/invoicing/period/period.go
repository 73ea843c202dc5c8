// Package period implements financial calendar math for invoicing and
// compliance scheduling. The financial year runs 1 July to 30 June and is
// labelled "2029-2030"; quarters are numbered from July (Jul-Sep = 1,
// Oct-Dec = 2, Jan-Mar = 3, Apr-Jun = 4).
package period

import (
	"errors"
	"fmt"
	"time"
)

// Frequency selects how often a recurring charge or requirement falls due.
type Frequency string

const (
	FrequencyAnnual    Frequency = "annual"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyMonthly   Frequency = "monthly"
)

var ErrInvalidFrequency = errors.New("invalid_frequency")

// FinancialYearStart returns 1 July of the financial year containing d.
func FinancialYearStart(d time.Time) time.Time {
	year := d.Year()
	if d.Month() < time.July {
		year--
	}
	return time.Date(year, time.July, 1, 0, 0, 0, 0, d.Location())
}

// FinancialYear labels the financial year containing d, e.g. "2029-2030"
// for any date from 1 July 2029 through 30 June 2030.
func FinancialYear(d time.Time) string {
	start := FinancialYearStart(d).Year()
	return fmt.Sprintf("%d-%d", start, start+1)
}

// QuarterFromMonth maps a calendar month to its financial quarter.
func QuarterFromMonth(m time.Month) int {
	switch {
	case m >= time.July && m <= time.September:
		return 1
	case m >= time.October && m <= time.December:
		return 2
	case m >= time.January && m <= time.March:
		return 3
	default:
		return 4
	}
}

// MonthFromQuarter returns the first calendar month of a financial quarter.
func MonthFromQuarter(q int) time.Month {
	switch q {
	case 1:
		return time.July
	case 2:
		return time.October
	case 3:
		return time.January
	case 4:
		return time.April
	}
	return 0
}

// quarterStart returns the first day of the financial quarter containing d.
func quarterStart(d time.Time) time.Time {
	m := MonthFromQuarter(QuarterFromMonth(d.Month()))
	year := d.Year()
	// Jan-Mar and Apr-Jun quarters start in the same calendar year as d;
	// so do Jul-Sep and Oct-Dec. No adjustment needed.
	return time.Date(year, m, 1, 0, 0, 0, 0, d.Location())
}

// FinancialYearsIn lists the label of every financial year overlapping
// [start, end], each exactly once, in order.
func FinancialYearsIn(start, end time.Time) []string {
	if end.Before(start) {
		return nil
	}
	var out []string
	for cur := FinancialYearStart(start); !cur.After(end); cur = cur.AddDate(1, 0, 0) {
		out = append(out, FinancialYear(cur))
	}
	return out
}

// Quarter identifies one financial quarter.
type Quarter struct {
	FinancialYear string
	Number        int
}

// QuartersIn lists every financial quarter overlapping [start, end],
// each exactly once, in order.
func QuartersIn(start, end time.Time) []Quarter {
	if end.Before(start) {
		return nil
	}
	var out []Quarter
	for cur := quarterStart(start); !cur.After(end); cur = cur.AddDate(0, 3, 0) {
		out = append(out, Quarter{
			FinancialYear: FinancialYear(cur),
			Number:        QuarterFromMonth(cur.Month()),
		})
	}
	return out
}

// MonthsIn lists the first day of every calendar month overlapping
// [start, end], each exactly once, in order.
func MonthsIn(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	cur := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location())
	for ; !cur.After(end); cur = cur.AddDate(0, 1, 0) {
		out = append(out, cur)
	}
	return out
}

// EndOfNextFinancialYear returns the first 30 June strictly after d.
func EndOfNextFinancialYear(d time.Time) time.Time {
	end := FinancialYearStart(d).AddDate(1, 0, -1)
	if !end.After(d) {
		end = end.AddDate(1, 0, 0)
	}
	return end
}

// EndOfNextFinancialQuarter returns the last day of the financial quarter
// containing d, or of the following quarter when d already sits on a
// quarter boundary.
func EndOfNextFinancialQuarter(d time.Time) time.Time {
	end := quarterStart(d).AddDate(0, 3, -1)
	if !end.After(d) {
		end = quarterStart(d).AddDate(0, 6, -1)
	}
	return end
}

// DaysDifference counts whole days from start to end, negative when end
// precedes start.
func DaysDifference(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}

// MonthsDifference counts months from start to end, with any partial month
// counting as a full one. Identical dates count as zero.
func MonthsDifference(start, end time.Time) int {
	if end.Before(start) {
		return -MonthsDifference(end, start)
	}
	whole := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if whole > 0 && start.AddDate(0, whole, 0).After(end) {
		whole--
	}
	if start.AddDate(0, whole, 0).Before(end) {
		whole++
	}
	return whole
}

// QuartersDifference counts quarters from start to end, partial quarters
// rounding up.
func QuartersDifference(start, end time.Time) int {
	m := MonthsDifference(start, end)
	if m < 0 {
		return -((-m + 2) / 3)
	}
	return (m + 2) / 3
}

// YearsDifference counts years from start to end, partial years rounding
// up: a 13 month span is 2 years.
func YearsDifference(start, end time.Time) int {
	m := MonthsDifference(start, end)
	if m < 0 {
		return -((-m + 11) / 12)
	}
	return (m + 11) / 12
}

// Schedule lists the charge dates for a lease running [start, end] at the
// given frequency: the start date itself, then every period boundary up to
// and including end.
func Schedule(start, end time.Time, freq Frequency) ([]time.Time, error) {
	if end.Before(start) {
		return nil, nil
	}
	var step func(time.Time) time.Time
	switch freq {
	case FrequencyAnnual:
		step = func(t time.Time) time.Time { return t.AddDate(1, 0, 0) }
	case FrequencyQuarterly:
		step = func(t time.Time) time.Time { return t.AddDate(0, 3, 0) }
	case FrequencyMonthly:
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
	default:
		return nil, ErrInvalidFrequency
	}
	var out []time.Time
	for cur := start; !cur.After(end); cur = step(cur) {
		out = append(out, cur)
	}
	return out, nil
}
