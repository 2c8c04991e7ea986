package id

import (
	"testing"

	cerr "github.com/nmorales/custos/internal/errors"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		decimal  string
		decimals int
		want     string
	}{
		{"2.5", 8, "250000000"},
		{"1", 6, "1000000"},
		{"0.000001", 6, "1"},
		{"0", 8, "0"},
		{"0.0", 8, "0"},
		{"100.25", 6, "100250000"},
		{" 3.14 ", 2, "314"},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.decimal, tt.decimals)
		if err != nil {
			t.Errorf("ToBaseUnits(%q, %d): %v", tt.decimal, tt.decimals, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ToBaseUnits(%q, %d) = %s, want %s", tt.decimal, tt.decimals, got, tt.want)
		}
	}
}

func TestToBaseUnitsRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "abc", "-1", "1.2.3", "1,5"} {
		if _, err := ToBaseUnits(input, 8); err == nil {
			t.Errorf("ToBaseUnits(%q) accepted bad input", input)
		}
	}

	_, err := ToBaseUnits("0.123456789", 8)
	typed, ok := cerr.As(err)
	if !ok || typed.Code != cerr.CodeUsage {
		t.Fatalf("excess precision: got %v, want usage error", err)
	}
}

func TestFromBaseUnits(t *testing.T) {
	tests := []struct {
		base     string
		decimals int
		want     string
	}{
		{"250000000", 8, "2.5"},
		{"1000000", 6, "1"},
		{"1", 6, "0.000001"},
		{"0", 8, "0"},
		{"123", 0, "123"},
		{"garbage", 8, "0"},
	}
	for _, tt := range tests {
		if got := FromBaseUnits(tt.base, tt.decimals); got != tt.want {
			t.Errorf("FromBaseUnits(%q, %d) = %s, want %s", tt.base, tt.decimals, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, amount := range []string{"2.5", "0.000001", "1000", "99.999999"} {
		base, err := ToBaseUnits(amount, 6)
		if err != nil {
			t.Fatalf("ToBaseUnits(%q): %v", amount, err)
		}
		if got := FromBaseUnits(base, 6); got != amount {
			t.Errorf("round trip %q -> %q -> %q", amount, base, got)
		}
	}
}

func TestBaseUnitsToFloat(t *testing.T) {
	if got := BaseUnitsToFloat("250000000", 8); got != 2.5 {
		t.Errorf("BaseUnitsToFloat = %v, want 2.5", got)
	}
	if got := BaseUnitsToFloat("junk", 8); got != 0 {
		t.Errorf("invalid input should yield 0, got %v", got)
	}
}
