package id

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	cerr "github.com/nmorales/custos/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToBaseUnits converts a human-readable decimal amount into the asset's
// smallest on-chain unit using its decimal count.
func ToBaseUnits(decimal string, decimals int) (string, error) {
	clean := strings.TrimSpace(decimal)
	if clean == "" {
		return "", cerr.New(cerr.CodeUsage, "amount is required")
	}
	if decimals < 0 {
		return "", cerr.New(cerr.CodeUsage, "decimals must be >= 0")
	}
	if !decimalPattern.MatchString(clean) {
		return "", cerr.New(cerr.CodeUsage, "amount must be in decimal form like 1.23")
	}

	parts := strings.SplitN(clean, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > decimals {
		return "", cerr.New(cerr.CodeUsage, fmt.Sprintf("decimal precision exceeds token decimals (%d)", decimals))
	}

	fracPart = fracPart + strings.Repeat("0", decimals-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return "0", nil
	}
	if _, ok := new(big.Int).SetString(combined, 10); !ok {
		return "", cerr.New(cerr.CodeUsage, "invalid decimal amount")
	}
	return combined, nil
}

// FromBaseUnits renders a base-unit integer string as a decimal string.
func FromBaseUnits(baseUnits string, decimals int) string {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimSpace(baseUnits), 10); !ok {
		return "0"
	}
	if decimals <= 0 {
		return n.String()
	}

	s := n.String()
	if len(s) <= decimals {
		pad := strings.Repeat("0", decimals-len(s)+1)
		s = pad + s
	}
	intPart := s[:len(s)-decimals]
	fracPart := strings.TrimRight(s[len(s)-decimals:], "0")
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// BaseUnitsToFloat is a lossy conversion used only for USD valuation, never
// for on-chain amounts.
func BaseUnitsToFloat(baseUnits string, decimals int) float64 {
	n, ok := new(big.Float).SetString(strings.TrimSpace(baseUnits))
	if !ok {
		return 0
	}
	scale := new(big.Float).SetFloat64(1)
	ten := big.NewFloat(10)
	for i := 0; i < decimals; i++ {
		scale.Mul(scale, ten)
	}
	out, _ := new(big.Float).Quo(n, scale).Float64()
	return out
}
