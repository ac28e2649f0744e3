package dart

import "testing"

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want *int64
	}{
		{"1,234,567", i64(1234567)},
		{"-98,765", i64(-98765)},
		{" 300 ", i64(300)},
		{"12.0", i64(12)},
		{"", nil},
		{"-", nil},
		{"n/a", nil},
		{"1,2x3", nil},
	}
	for _, tt := range tests {
		got := ParseAmount(tt.in)
		switch {
		case tt.want == nil && got != nil:
			t.Errorf("%q: expected nil, got %d", tt.in, *got)
		case tt.want != nil && got == nil:
			t.Errorf("%q: expected %d, got nil", tt.in, *tt.want)
		case tt.want != nil && *got != *tt.want:
			t.Errorf("%q: expected %d, got %d", tt.in, *tt.want, *got)
		}
	}
}

func i64(v int64) *int64 { return &v }
