// Package filing holds the domain model shared by the retrieval pipeline:
// report periods, statement variants, filed line items and the normalized
// quarterly metrics computed from them.
package filing

import (
	"fmt"
	"strings"
)

// ReportKind identifies which periodic filing a figure comes from.
type ReportKind int

const (
	KindQ1 ReportKind = iota + 1
	KindH1
	KindQ3
	KindAnnual
)

var kindCodes = map[ReportKind]string{
	KindQ1:     "11013",
	KindH1:     "11012",
	KindQ3:     "11014",
	KindAnnual: "11011",
}

// Code returns the filings API report code (reprt_code).
func (k ReportKind) Code() string {
	return kindCodes[k]
}

// Quarter returns the fiscal quarter whose end the report covers.
func (k ReportKind) Quarter() int {
	return int(k)
}

func (k ReportKind) String() string {
	switch k {
	case KindQ1:
		return "Q1"
	case KindH1:
		return "H1"
	case KindQ3:
		return "Q3"
	case KindAnnual:
		return "Annual"
	}
	return fmt.Sprintf("ReportKind(%d)", int(k))
}

// KindForQuarter maps a quarter number (1..4) to the report that ends in it.
func KindForQuarter(q int) (ReportKind, bool) {
	if q < 1 || q > 4 {
		return 0, false
	}
	return ReportKind(q), true
}

// KindFromCode parses a filings API report code.
func KindFromCode(code string) (ReportKind, bool) {
	for k, c := range kindCodes {
		if c == code {
			return k, true
		}
	}
	return 0, false
}

// Variant is the statement basis an entity files under.
type Variant int

const (
	Consolidated Variant = iota + 1
	Separate
)

// Variants lists every variant in probing order. Consolidated is always
// tried first.
var Variants = []Variant{Consolidated, Separate}

// Code returns the filings API fs_div value.
func (v Variant) Code() string {
	switch v {
	case Consolidated:
		return "CFS"
	case Separate:
		return "OFS"
	}
	return ""
}

func (v Variant) String() string {
	switch v {
	case Consolidated:
		return "consolidated"
	case Separate:
		return "separate"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// VariantFromCode parses an fs_div value (CFS/OFS).
func VariantFromCode(code string) (Variant, bool) {
	switch strings.ToUpper(code) {
	case "CFS":
		return Consolidated, true
	case "OFS":
		return Separate, true
	}
	return 0, false
}

// ReportPeriod is one (year, quarter) slot and the report that covers it.
type ReportPeriod struct {
	Year    int
	Quarter int
	Kind    ReportKind
}

func (p ReportPeriod) String() string {
	return fmt.Sprintf("%dQ%d", p.Year, p.Quarter)
}

// Before reports whether p sorts strictly before o.
func (p ReportPeriod) Before(o ReportPeriod) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Quarter < o.Quarter
}

// LineItem is one filed account figure. Amount is cumulative from the start
// of the fiscal year through the report's end month; nil means the filed
// value could not be read as a number.
type LineItem struct {
	EntityID     string
	Year         int
	Kind         ReportKind
	Variant      Variant
	AccountKey   string
	AccountLabel string
	Amount       *int64
}

// Key returns the cache key identifying the item.
func (li LineItem) Key() CacheKey {
	return CacheKey{
		EntityID:   li.EntityID,
		Year:       li.Year,
		Kind:       li.Kind,
		Variant:    li.Variant,
		AccountKey: li.AccountKey,
	}
}

// Period returns the report period the item belongs to.
func (li LineItem) Period() ReportPeriod {
	return ReportPeriod{Year: li.Year, Quarter: li.Kind.Quarter(), Kind: li.Kind}
}

// CacheKey uniquely identifies a stored LineItem.
type CacheKey struct {
	EntityID   string
	Year       int
	Kind       ReportKind
	Variant    Variant
	AccountKey string
}

// String renders the key as a slash-separated path, suitable for KV stores.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s/%d/%s/%s/%s", k.EntityID, k.Year, k.Kind.Code(), k.Variant.Code(), k.AccountKey)
}

// QuarterlyMetric is the normalized output unit for one fiscal quarter.
// Quarter 4 values are derived from the annual report.
type QuarterlyMetric struct {
	Year            int   `json:"year"`
	Quarter         int   `json:"quarter"`
	Revenue         int64 `json:"revenue"`
	OperatingIncome int64 `json:"operating_income"`
	// Q4Incomplete marks a derived Q4 whose Q1-Q3 inputs were not all present.
	Q4Incomplete bool `json:"q4_incomplete,omitempty"`
}

// NormalizeEntityID zero-pads a numeric entity identifier to 8 digits.
func NormalizeEntityID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) >= 8 {
		return id
	}
	return strings.Repeat("0", 8-len(id)) + id
}
