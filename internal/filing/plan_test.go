package filing

import (
	"errors"
	"testing"
)

func TestPlanTrailingWindow(t *testing.T) {
	periods, err := Plan(2025, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(periods) != 19 {
		t.Fatalf("expected 19 periods, got %d", len(periods))
	}
	first, last := periods[0], periods[len(periods)-1]
	if first.Year != 2021 || first.Quarter != 1 || first.Kind != KindQ1 {
		t.Errorf("expected first period 2021Q1, got %s (%s)", first, first.Kind)
	}
	if last.Year != 2025 || last.Quarter != 3 || last.Kind != KindQ3 {
		t.Errorf("expected last period 2025Q3, got %s (%s)", last, last.Kind)
	}

	seen := make(map[ReportPeriod]bool)
	for i, p := range periods {
		if seen[p] {
			t.Errorf("duplicate period %s", p)
		}
		seen[p] = true
		if i > 0 && !periods[i-1].Before(p) {
			t.Errorf("periods not ascending at %d: %s then %s", i, periods[i-1], p)
		}
		if p.Kind.Quarter() != p.Quarter {
			t.Errorf("period %s has kind %s", p, p.Kind)
		}
	}
}

func TestPeriodForMonth(t *testing.T) {
	tests := []struct {
		month   int
		quarter int
		kind    ReportKind
	}{
		{1, 1, KindQ1},
		{3, 1, KindQ1},
		{4, 2, KindH1},
		{6, 2, KindH1},
		{7, 3, KindQ3},
		{9, 3, KindQ3},
		{10, 4, KindAnnual},
		{12, 4, KindAnnual},
	}
	for _, tt := range tests {
		p, err := PeriodForMonth(2024, tt.month)
		if err != nil {
			t.Fatalf("month %d: unexpected error: %v", tt.month, err)
		}
		if p.Quarter != tt.quarter || p.Kind != tt.kind {
			t.Errorf("month %d: expected Q%d/%s, got Q%d/%s", tt.month, tt.quarter, tt.kind, p.Quarter, p.Kind)
		}
	}
}

func TestPlanAnnualTarget(t *testing.T) {
	periods, err := Plan(2024, 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(periods) != 20 {
		t.Fatalf("expected 20 periods, got %d", len(periods))
	}
	if last := periods[len(periods)-1]; last.Kind != KindAnnual || last.Year != 2024 {
		t.Errorf("expected last period 2024 Annual, got %s %s", last, last.Kind)
	}
}

func TestPlanInvalidMonth(t *testing.T) {
	for _, m := range []int{0, 13, -1} {
		if _, err := Plan(2025, m); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("month %d: expected ErrInvalidPeriod, got %v", m, err)
		}
	}
}

func TestParseYearMonth(t *testing.T) {
	y, m, err := ParseYearMonth("202509")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if y != 2025 || m != 9 {
		t.Errorf("expected 2025/9, got %d/%d", y, m)
	}

	for _, bad := range []string{"2025", "2025-09", "202513", "202500", "abcdef"} {
		if _, _, err := ParseYearMonth(bad); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("%q: expected ErrInvalidPeriod, got %v", bad, err)
		}
	}
}
