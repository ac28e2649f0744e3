package filing

import (
	"fmt"
	"strconv"
)

// DefaultWindowYears is how many full years before the target year are planned.
const DefaultWindowYears = 4

// PeriodForMonth returns the report period whose quarter contains month.
func PeriodForMonth(year, month int) (ReportPeriod, error) {
	if month < 1 || month > 12 {
		return ReportPeriod{}, fmt.Errorf("%w: month %d out of range 1-12", ErrInvalidPeriod, month)
	}
	q := (month + 2) / 3
	kind, _ := KindForQuarter(q)
	return ReportPeriod{Year: year, Quarter: q, Kind: kind}, nil
}

// Plan returns the ascending quarters from Q1 of year-DefaultWindowYears
// through the target quarter, inclusive.
func Plan(year, month int) ([]ReportPeriod, error) {
	return PlanWindow(year, month, DefaultWindowYears)
}

// PlanWindow is Plan with a configurable number of leading years.
func PlanWindow(year, month, years int) ([]ReportPeriod, error) {
	if years < 0 {
		return nil, fmt.Errorf("%w: negative window %d", ErrInvalidPeriod, years)
	}
	target, err := PeriodForMonth(year, month)
	if err != nil {
		return nil, err
	}

	periods := make([]ReportPeriod, 0, years*4+target.Quarter)
	y, q := year-years, 1
	for {
		kind, _ := KindForQuarter(q)
		periods = append(periods, ReportPeriod{Year: y, Quarter: q, Kind: kind})
		if y == target.Year && q == target.Quarter {
			break
		}
		q++
		if q > 4 {
			q = 1
			y++
		}
	}
	return periods, nil
}

// ParseYearMonth parses a YYYYMM target period.
func ParseYearMonth(s string) (year, month int, err error) {
	if len(s) != 6 {
		return 0, 0, fmt.Errorf("%w: %q is not YYYYMM", ErrInvalidPeriod, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, 0, fmt.Errorf("%w: %q is not YYYYMM", ErrInvalidPeriod, s)
	}
	year, month = n/100, n%100
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("%w: month %d out of range 1-12", ErrInvalidPeriod, month)
	}
	return year, month, nil
}
