// Package normalize turns collected line items into a discrete quarterly
// metrics series.
package normalize

import (
	"slices"

	"github.com/phuslu/log"

	"github.com/TobiSchelling/dartq/internal/filing"
)

type slotKey struct {
	year    int
	quarter int
}

// slot holds the filed amounts of one period under one variant. A missing
// map entry means the account was not filed or its amount was blank.
type slot struct {
	variant filing.Variant
	amounts map[filing.Account]int64
}

// Quarterly converts items into one QuarterlyMetric per quarter, ascending,
// from the earliest to the latest quarter with any filed data. Quarters
// inside that span with no data are emitted with zero values.
//
// Annual reports are cumulative, so the Q4 value of each account is the
// annual amount minus whichever of Q1-Q3 are present for the same year and
// variant. When an account lacks any of those quarters the metric is
// flagged Q4Incomplete.
func Quarterly(items []filing.LineItem) []filing.QuarterlyMetric {
	slots := group(items)
	if len(slots) == 0 {
		return []filing.QuarterlyMetric{}
	}

	keys := make([]slotKey, 0, len(slots))
	for k := range slots {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareSlots)
	first, last := keys[0], keys[len(keys)-1]

	var out []filing.QuarterlyMetric
	for k := first; compareSlots(k, last) <= 0; k = next(k) {
		m := filing.QuarterlyMetric{Year: k.year, Quarter: k.quarter}
		if s, ok := slots[k]; ok {
			amounts := s.amounts
			if k.quarter == 4 {
				var complete bool
				amounts, complete = discreteQ4(slots, k.year, s)
				if !complete {
					m.Q4Incomplete = true
					log.Warn().Int("year", k.year).Msg("Q4 derived from incomplete Q1-Q3 data")
				}
			}
			m.Revenue = amounts[filing.AccountRevenue]
			m.OperatingIncome = amounts[filing.AccountOperatingIncome]
		}
		out = append(out, m)
	}
	return out
}

// group keeps tracked accounts and settles one variant per slot,
// consolidated first.
func group(items []filing.LineItem) map[slotKey]*slot {
	slots := make(map[slotKey]*slot)
	for _, it := range items {
		account, ok := filing.TrackedAccount(it.AccountKey)
		if !ok {
			continue
		}
		k := slotKey{year: it.Year, quarter: it.Kind.Quarter()}
		s, ok := slots[k]
		switch {
		case !ok:
			s = &slot{variant: it.Variant, amounts: make(map[filing.Account]int64)}
			slots[k] = s
		case s.variant == it.Variant:
		case it.Variant == filing.Consolidated:
			log.Warn().Int("year", k.year).Int("quarter", k.quarter).Msg("mixed variants in period; using consolidated")
			s.variant = it.Variant
			s.amounts = make(map[filing.Account]int64)
		default:
			continue
		}
		if it.Amount != nil {
			s.amounts[account] = *it.Amount
		}
	}
	return slots
}

// discreteQ4 subtracts the year's Q1-Q3 amounts from the annual ones,
// taking only quarters filed under the annual's variant. complete is false
// when any annual account lacks an amount in one of Q1-Q3.
func discreteQ4(slots map[slotKey]*slot, year int, annual *slot) (map[filing.Account]int64, bool) {
	out := make(map[filing.Account]int64, len(annual.amounts))
	for account, amount := range annual.amounts {
		out[account] = amount
	}
	complete := true
	for q := 1; q <= 3; q++ {
		s, ok := slots[slotKey{year: year, quarter: q}]
		if !ok || s.variant != annual.variant {
			complete = false
			continue
		}
		for account := range out {
			amount, ok := s.amounts[account]
			if !ok {
				complete = false
				continue
			}
			out[account] -= amount
		}
	}
	return out, complete
}

func compareSlots(a, b slotKey) int {
	if a.year != b.year {
		return a.year - b.year
	}
	return a.quarter - b.quarter
}

func next(k slotKey) slotKey {
	if k.quarter == 4 {
		return slotKey{year: k.year + 1, quarter: 1}
	}
	return slotKey{year: k.year, quarter: k.quarter + 1}
}
