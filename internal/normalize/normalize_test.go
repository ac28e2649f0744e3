package normalize

import (
	"testing"

	"github.com/TobiSchelling/dartq/internal/filing"
	"github.com/TobiSchelling/dartq/internal/filing/filingtest"
)

const entity = "00126380"

func revenue(year int, kind filing.ReportKind, amount int64) filing.LineItem {
	return filingtest.Item(entity, year, kind, filing.Consolidated, filing.RevenueKey, amount)
}

func opIncome(year int, kind filing.ReportKind, amount int64) filing.LineItem {
	return filingtest.Item(entity, year, kind, filing.Consolidated, filing.OperatingIncomeKey, amount)
}

func find(t *testing.T, ms []filing.QuarterlyMetric, year, quarter int) filing.QuarterlyMetric {
	t.Helper()
	for _, m := range ms {
		if m.Year == year && m.Quarter == quarter {
			return m
		}
	}
	t.Fatalf("no metric for %d Q%d in %+v", year, quarter, ms)
	return filing.QuarterlyMetric{}
}

func TestQuarterlyDerivesQ4(t *testing.T) {
	items := []filing.LineItem{
		revenue(2024, filing.KindQ1, 100),
		revenue(2024, filing.KindH1, 120),
		revenue(2024, filing.KindQ3, 90),
		revenue(2024, filing.KindAnnual, 400),
		opIncome(2024, filing.KindQ1, 10),
		opIncome(2024, filing.KindH1, 12),
		opIncome(2024, filing.KindQ3, 9),
		opIncome(2024, filing.KindAnnual, 40),
	}

	ms := Quarterly(items)
	if len(ms) != 4 {
		t.Fatalf("got %d metrics, want 4", len(ms))
	}
	q4 := find(t, ms, 2024, 4)
	if q4.Revenue != 90 {
		t.Errorf("Q4 revenue = %d, want 90", q4.Revenue)
	}
	if q4.OperatingIncome != 9 {
		t.Errorf("Q4 operating income = %d, want 9", q4.OperatingIncome)
	}
	if q4.Q4Incomplete {
		t.Error("Q4 flagged incomplete with all quarters present")
	}
	if q2 := find(t, ms, 2024, 2); q2.Revenue != 120 {
		t.Errorf("Q2 revenue = %d, want 120 unchanged", q2.Revenue)
	}
}

func TestQuarterlyPartialQuarters(t *testing.T) {
	items := []filing.LineItem{
		revenue(2024, filing.KindQ1, 50),
		revenue(2024, filing.KindQ3, 80),
		revenue(2024, filing.KindAnnual, 300),
	}

	ms := Quarterly(items)
	q4 := find(t, ms, 2024, 4)
	if q4.Revenue != 170 {
		t.Errorf("Q4 revenue = %d, want 170", q4.Revenue)
	}
	if !q4.Q4Incomplete {
		t.Error("Q4 not flagged incomplete")
	}
	// The absent Q2 is zero-filled between Q1 and Q3.
	q2 := find(t, ms, 2024, 2)
	if q2.Revenue != 0 || q2.OperatingIncome != 0 {
		t.Errorf("Q2 = %+v, want zero-filled", q2)
	}
}

func TestQuarterlyFlagsMissingAccount(t *testing.T) {
	items := []filing.LineItem{
		revenue(2024, filing.KindQ1, 10),
		revenue(2024, filing.KindH1, 10),
		revenue(2024, filing.KindQ3, 10),
		revenue(2024, filing.KindAnnual, 40),
		opIncome(2024, filing.KindQ1, 1),
		opIncome(2024, filing.KindQ3, 1),
		opIncome(2024, filing.KindAnnual, 4),
	}

	q4 := find(t, Quarterly(items), 2024, 4)
	if q4.Revenue != 10 || q4.OperatingIncome != 2 {
		t.Errorf("Q4 = %+v, want revenue 10 and operating income 2", q4)
	}
	if !q4.Q4Incomplete {
		t.Error("Q4 not flagged incomplete with operating income missing from H1")
	}
}

func TestQuarterlyFlagsBlankAmount(t *testing.T) {
	items := []filing.LineItem{
		revenue(2024, filing.KindQ1, 10),
		{EntityID: entity, Year: 2024, Kind: filing.KindH1, Variant: filing.Consolidated, AccountKey: filing.RevenueKey},
		revenue(2024, filing.KindQ3, 10),
		revenue(2024, filing.KindAnnual, 40),
	}

	q4 := find(t, Quarterly(items), 2024, 4)
	if q4.Revenue != 20 {
		t.Errorf("Q4 revenue = %d, want 20", q4.Revenue)
	}
	if !q4.Q4Incomplete {
		t.Error("Q4 not flagged incomplete with a blank H1 amount")
	}
}

func TestQuarterlyQ4SubtractsSameVariantOnly(t *testing.T) {
	items := []filing.LineItem{
		filingtest.Item(entity, 2024, filing.KindQ1, filing.Separate, filing.RevenueKey, 30),
		revenue(2024, filing.KindH1, 10),
		revenue(2024, filing.KindQ3, 10),
		revenue(2024, filing.KindAnnual, 100),
	}

	q4 := find(t, Quarterly(items), 2024, 4)
	if q4.Revenue != 80 {
		t.Errorf("Q4 revenue = %d, want 80 without the separate Q1", q4.Revenue)
	}
	if !q4.Q4Incomplete {
		t.Error("Q4 not flagged incomplete with Q1 filed under another variant")
	}
	if q1 := find(t, Quarterly(items), 2024, 1); q1.Revenue != 30 {
		t.Errorf("Q1 revenue = %d, want 30", q1.Revenue)
	}
}

func TestQuarterlyOrderingAndGaps(t *testing.T) {
	items := []filing.LineItem{
		revenue(2025, filing.KindH1, 7),
		revenue(2023, filing.KindQ3, 3),
		revenue(2024, filing.KindQ1, 5),
	}

	ms := Quarterly(items)
	// 2023 Q3 through 2025 Q2.
	if len(ms) != 8 {
		t.Fatalf("got %d metrics, want 8", len(ms))
	}
	for i := 1; i < len(ms); i++ {
		prev, cur := ms[i-1], ms[i]
		if cur.Year < prev.Year || (cur.Year == prev.Year && cur.Quarter <= prev.Quarter) {
			t.Errorf("metrics out of order at %d: %+v then %+v", i, prev, cur)
		}
	}
	if ms[0].Year != 2023 || ms[0].Quarter != 3 {
		t.Errorf("first = %+v, want 2023 Q3", ms[0])
	}
	if last := ms[len(ms)-1]; last.Year != 2025 || last.Quarter != 2 {
		t.Errorf("last = %+v, want 2025 Q2", last)
	}
}

func TestQuarterlyIgnoresUntrackedAndNil(t *testing.T) {
	items := []filing.LineItem{
		filingtest.Item(entity, 2024, filing.KindQ1, filing.Consolidated, "ifrs-full_Assets", 999),
		{EntityID: entity, Year: 2024, Kind: filing.KindQ1, Variant: filing.Consolidated, AccountKey: filing.RevenueKey},
		opIncome(2024, filing.KindQ1, 4),
	}

	ms := Quarterly(items)
	if len(ms) != 1 {
		t.Fatalf("got %d metrics, want 1", len(ms))
	}
	if ms[0].Revenue != 0 || ms[0].OperatingIncome != 4 {
		t.Errorf("got %+v, want revenue 0 and operating income 4", ms[0])
	}
}

func TestQuarterlyPrefersConsolidated(t *testing.T) {
	items := []filing.LineItem{
		filingtest.Item(entity, 2024, filing.KindQ1, filing.Separate, filing.RevenueKey, 1),
		revenue(2024, filing.KindQ1, 2),
		filingtest.Item(entity, 2024, filing.KindQ1, filing.Separate, filing.OperatingIncomeKey, 3),
	}

	ms := Quarterly(items)
	if len(ms) != 1 {
		t.Fatalf("got %d metrics, want 1", len(ms))
	}
	if ms[0].Revenue != 2 || ms[0].OperatingIncome != 0 {
		t.Errorf("got %+v, want consolidated values only", ms[0])
	}
}

func TestQuarterlyEmpty(t *testing.T) {
	ms := Quarterly(nil)
	if ms == nil || len(ms) != 0 {
		t.Errorf("Quarterly(nil) = %#v, want empty non-nil slice", ms)
	}
}
