package intent

import (
	"fmt"
	"strings"

	cerr "github.com/nmorales/custos/internal/errors"
)

// RiskTier selects the minimum acceptable APY for yield deposits.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// MinAPYPct returns the tier's APY floor in percent.
func (r RiskTier) MinAPYPct() (float64, error) {
	switch r {
	case RiskLow:
		return 5, nil
	case RiskMedium:
		return 8, nil
	case RiskHigh:
		return 12, nil
	default:
		return 0, cerr.New(cerr.CodeUsage, fmt.Sprintf("unknown risk tier: %s (want low, medium, or high)", string(r)))
	}
}

func ParseRiskTier(input string) (RiskTier, error) {
	tier := RiskTier(strings.ToLower(strings.TrimSpace(input)))
	if tier == "" {
		return RiskMedium, nil
	}
	if _, err := tier.MinAPYPct(); err != nil {
		return "", err
	}
	return tier, nil
}

// Frequency is a recurring-execution cadence.
type Frequency string

const (
	FreqHourly  Frequency = "hourly"
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
)

// Seconds returns the cadence interval. Monthly uses a 30-day month.
func (f Frequency) Seconds() (int64, error) {
	switch f {
	case FreqHourly:
		return 3_600, nil
	case FreqDaily:
		return 86_400, nil
	case FreqWeekly:
		return 604_800, nil
	case FreqMonthly:
		return 2_592_000, nil
	default:
		return 0, cerr.New(cerr.CodeUsage, fmt.Sprintf("unknown frequency: %s (want hourly, daily, weekly, or monthly)", string(f)))
	}
}

func ParseFrequency(input string) (Frequency, error) {
	freq := Frequency(strings.ToLower(strings.TrimSpace(input)))
	if freq == "" {
		return FreqDaily, nil
	}
	if _, err := freq.Seconds(); err != nil {
		return "", err
	}
	return freq, nil
}

// DefaultSlippagePct is applied when a swap does not set its own tolerance.
const DefaultSlippagePct = 1.0

// Swap exchanges a fixed input amount for the best available output.
type Swap struct {
	Chain       string
	FromSymbol  string
	ToSymbol    string
	Amount      string
	SlippagePct float64
}

// DCA registers a recurring swap. MaxExecutions of zero means unlimited.
type DCA struct {
	Chain         string
	FromSymbol    string
	ToSymbol      string
	AmountPerRun  string
	Frequency     Frequency
	MaxExecutions int64
}

// Yield deposits into the best vault at or above the tier's APY floor.
type Yield struct {
	Chain  string
	Symbol string
	Amount string
	Risk   RiskTier
}
