// Package report shapes quarterly metrics for display.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/TobiSchelling/dartq/internal/filing"
)

const million = 1_000_000

// Row is one display line of the metrics table. Amounts are in millions.
type Row struct {
	Label           string  `json:"label"`
	Revenue         float64 `json:"revenue_mn"`
	OperatingIncome float64 `json:"operating_income_mn"`
	Margin          float64 `json:"operating_margin_pct"`
	Q4Incomplete    bool    `json:"q4_incomplete,omitempty"`
}

// Rows converts metrics into display rows, preserving order.
func Rows(metrics []filing.QuarterlyMetric) []Row {
	rows := make([]Row, len(metrics))
	for i, m := range metrics {
		rows[i] = Row{
			Label:           fmt.Sprintf("%d Q%d", m.Year, m.Quarter),
			Revenue:         float64(m.Revenue) / million,
			OperatingIncome: float64(m.OperatingIncome) / million,
			Margin:          Margin(m.Revenue, m.OperatingIncome),
			Q4Incomplete:    m.Q4Incomplete,
		}
	}
	return rows
}

// Margin returns operating income as a percentage of revenue, or 0 when
// there is no revenue.
func Margin(revenue, operatingIncome int64) float64 {
	if revenue == 0 {
		return 0
	}
	return float64(operatingIncome) / float64(revenue) * 100
}

// Markdown renders rows as a GitHub-style table under an optional heading.
func Markdown(title string, rows []Row) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "## %s\n\n", title)
	}
	if len(rows) == 0 {
		b.WriteString("No filings found for the requested window.\n")
		return b.String()
	}

	b.WriteString("| Quarter | Revenue (mn) | Operating income (mn) | Margin (%) |\n")
	b.WriteString("|---|---:|---:|---:|\n")
	incomplete := false
	for _, r := range rows {
		label := r.Label
		if r.Q4Incomplete {
			label += "*"
			incomplete = true
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			label,
			oneDecimal(r.Revenue),
			oneDecimal(r.OperatingIncome),
			oneDecimal(r.Margin),
		)
	}
	if incomplete {
		b.WriteString("\n\\* Q4 derived without all of Q1-Q3.\n")
	}
	return b.String()
}

func oneDecimal(v float64) string {
	return humanize.CommafWithDigits(math.Round(v*10)/10, 1)
}
