package payfast

import "testing"

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{in: "15000", want: 150.00},
		{in: "150", want: 150},
		{in: "1000", want: 1000},
		{in: "1001", want: 10.01},
		{in: "499.00", want: 499},
		{in: " 42.50 ", want: 42.5},
		{in: "0", want: 0},
	}

	for _, tt := range tests {
		got, err := NormalizeAmount(tt.in)
		if err != nil {
			t.Fatalf("NormalizeAmount(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("NormalizeAmount(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeAmount_Errors(t *testing.T) {
	for _, in := range []string{"", "abc", "-5"} {
		if _, err := NormalizeAmount(in); err == nil {
			t.Fatalf("NormalizeAmount(%q) expected error", in)
		}
	}
}
