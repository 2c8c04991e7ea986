package intent

import (
	"testing"

	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/registry"
)

const sender = "0x52b8a3a5a0a9d423e2e6c2a3f9e6d7c8b9a0f1e2d3c4b5a69788796a5b4c3d2e"

func TestBuildSwapDefaults(t *testing.T) {
	builder := NewBuilder()
	tx, err := builder.BuildSwap(sender, Swap{
		Chain:      "aptos",
		FromSymbol: "APT",
		ToSymbol:   "USDC",
		Amount:     "2.5",
	})
	if err != nil {
		t.Fatalf("BuildSwap: %v", err)
	}
	if tx.Function != registry.FnSwapExactIn {
		t.Errorf("function = %s", tx.Function)
	}
	if len(tx.TypeArgs) != 2 || tx.TypeArgs[0] != "0x1::aptos_coin::AptosCoin" {
		t.Errorf("type args = %v, order must be from then to", tx.TypeArgs)
	}
	if tx.Args[0] != "250000000" {
		t.Errorf("amount = %v, want 2.5 APT in base units", tx.Args[0])
	}
	if tx.Args[1] != "100" {
		t.Errorf("slippage = %v, want 100 bps default", tx.Args[1])
	}
	if tx.Sender != sender || tx.ChainSlug != "aptos" {
		t.Errorf("tx routing wrong: %+v", tx)
	}
}

func TestBuildSwapCustomSlippage(t *testing.T) {
	tx, err := NewBuilder().BuildSwap(sender, Swap{
		Chain:       "aptos",
		FromSymbol:  "USDC",
		ToSymbol:    "APT",
		Amount:      "100",
		SlippagePct: 0.5,
	})
	if err != nil {
		t.Fatalf("BuildSwap: %v", err)
	}
	if tx.Args[1] != "50" {
		t.Errorf("slippage = %v, want 50 bps", tx.Args[1])
	}
	if tx.Args[0] != "100000000" {
		t.Errorf("amount = %v, want 100 USDC at 6 decimals", tx.Args[0])
	}
}

func TestBuildSwapRejectsNonMoveChain(t *testing.T) {
	_, err := NewBuilder().BuildSwap(sender, Swap{
		Chain:      "ethereum",
		FromSymbol: "ETH",
		ToSymbol:   "USDC",
		Amount:     "1",
	})
	typed, ok := cerr.As(err)
	if !ok || typed.Code != cerr.CodeUnsupported {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestBuildSwapRejectsUnknownToken(t *testing.T) {
	_, err := NewBuilder().BuildSwap(sender, Swap{
		Chain:      "aptos",
		FromSymbol: "DOGE",
		ToSymbol:   "APT",
		Amount:     "1",
	})
	typed, ok := cerr.As(err)
	if !ok || typed.Code != cerr.CodeUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestBuildDCADefaultsToDailyUnlimited(t *testing.T) {
	tx, err := NewBuilder().BuildDCA(sender, DCA{
		Chain:        "aptos",
		FromSymbol:   "USDC",
		ToSymbol:     "APT",
		AmountPerRun: "50",
	})
	if err != nil {
		t.Fatalf("BuildDCA: %v", err)
	}
	if tx.Function != registry.FnStrategyCreate {
		t.Errorf("function = %s", tx.Function)
	}
	if tx.Args[1] != "86400" {
		t.Errorf("interval = %v, want daily default", tx.Args[1])
	}
	if tx.Args[2] != "0" {
		t.Errorf("max executions = %v, want 0 for unlimited", tx.Args[2])
	}
}

func TestFrequencySeconds(t *testing.T) {
	tests := []struct {
		freq Frequency
		want int64
	}{
		{FreqHourly, 3600},
		{FreqDaily, 86400},
		{FreqWeekly, 604800},
		{FreqMonthly, 2592000},
	}
	for _, tt := range tests {
		got, err := tt.freq.Seconds()
		if err != nil || got != tt.want {
			t.Errorf("%s.Seconds() = %d, %v; want %d", tt.freq, got, err, tt.want)
		}
	}
	if _, err := Frequency("fortnightly").Seconds(); err == nil {
		t.Error("unknown frequency must error")
	}
}

func TestBuildYieldRiskTiers(t *testing.T) {
	tests := []struct {
		risk    RiskTier
		wantBps string
	}{
		{RiskLow, "500"},
		{RiskMedium, "800"},
		{RiskHigh, "1200"},
		{"", "800"},
	}
	for _, tt := range tests {
		tx, err := NewBuilder().BuildYield(sender, Yield{
			Chain:  "aptos",
			Symbol: "USDC",
			Amount: "1000",
			Risk:   tt.risk,
		})
		if err != nil {
			t.Fatalf("BuildYield(%q): %v", tt.risk, err)
		}
		if tx.Args[1] != tt.wantBps {
			t.Errorf("risk %q min apy = %v, want %s bps", tt.risk, tx.Args[1], tt.wantBps)
		}
		if tx.Function != registry.FnYieldDeposit {
			t.Errorf("function = %s", tx.Function)
		}
	}
}

func TestBuilderIsDeterministic(t *testing.T) {
	builder := NewBuilder()
	swap := Swap{Chain: "aptos", FromSymbol: "APT", ToSymbol: "USDC", Amount: "1"}
	first, err := builder.BuildSwap(sender, swap)
	if err != nil {
		t.Fatalf("BuildSwap: %v", err)
	}
	second, err := builder.BuildSwap(sender, swap)
	if err != nil {
		t.Fatalf("BuildSwap: %v", err)
	}
	if first.Function != second.Function || first.Args[0] != second.Args[0] {
		t.Error("same intent must build the same transaction")
	}
}
