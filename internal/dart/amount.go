package dart

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount reads a filed amount such as "1,234,567" or "-98,765".
// Blank, dash-only and malformed values yield nil.
func ParseAmount(s string) *int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" {
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return nil
	}
	v := int64(f)
	return &v
}
