package portfolio

import (
	"math"
	"testing"
	"time"

	"github.com/nmorales/custos/internal/chains"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/id"
	"github.com/nmorales/custos/internal/prices"
)

func chain(t *testing.T, slug string) id.Chain {
	t.Helper()
	c, err := id.ParseChain(slug)
	if err != nil {
		t.Fatalf("ParseChain(%s): %v", slug, err)
	}
	return c
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestComposeSingleChainOwnsFullPercentage(t *testing.T) {
	results := []ChainResult{
		{
			Chain:   chain(t, "ethereum"),
			Address: "0x1111111111111111111111111111111111111111",
			Balances: []chains.Balance{
				{Symbol: "USDC", Address: "0xa0b8", AmountBase: "100000000", Decimals: 6},
			},
		},
		{Chain: chain(t, "solana")},
	}
	quotes := map[string]prices.Quote{
		"ethereum:0xa0b8": {PriceUSD: 1.0},
	}

	snapshot, warnings := Compose(results, quotes, time.Unix(0, 0))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !approx(snapshot.TotalValueUSD, 100) {
		t.Errorf("total = %v, want 100", snapshot.TotalValueUSD)
	}
	if snapshot.Chains[0].Chain != "Ethereum" || !approx(snapshot.Chains[0].Percentage, 100) {
		t.Errorf("top chain = %+v, want Ethereum at 100%%", snapshot.Chains[0])
	}
	if len(snapshot.ActiveChains) != 1 || snapshot.ActiveChains[0] != "ethereum" {
		t.Errorf("active chains = %v", snapshot.ActiveChains)
	}
	if snapshot.PartialFailure {
		t.Error("no failures expected")
	}
}

func TestComposeSortsChainsByValue(t *testing.T) {
	results := []ChainResult{
		{
			Chain:   chain(t, "ethereum"),
			Address: "0x1",
			Balances: []chains.Balance{
				{Symbol: "USDC", Address: "0xa0b8", AmountBase: "25000000", Decimals: 6},
			},
		},
		{
			Chain:   chain(t, "aptos"),
			Address: "0x2",
			Balances: []chains.Balance{
				{Symbol: "APT", Address: "0x1::aptos_coin::AptosCoin", AmountBase: "1000000000", Decimals: 8},
			},
		},
	}
	quotes := map[string]prices.Quote{
		"ethereum:0xa0b8": {PriceUSD: 1.0},
		"coingecko:aptos": {PriceUSD: 10.0},
	}

	snapshot, _ := Compose(results, quotes, time.Unix(0, 0))
	if snapshot.Chains[0].Chain != "Aptos" {
		t.Errorf("expected Aptos first (value 100 vs 25), got %s", snapshot.Chains[0].Chain)
	}
	if !approx(snapshot.Chains[0].Percentage, 80) || !approx(snapshot.Chains[1].Percentage, 20) {
		t.Errorf("percentages = %v, %v, want 80/20", snapshot.Chains[0].Percentage, snapshot.Chains[1].Percentage)
	}
}

func TestComposeFailedChainMarksPartial(t *testing.T) {
	results := []ChainResult{
		{
			Chain:   chain(t, "ethereum"),
			Address: "0x1",
			Balances: []chains.Balance{
				{Symbol: "USDC", Address: "0xa0b8", AmountBase: "100000000", Decimals: 6},
			},
		},
		{
			Chain:   chain(t, "solana"),
			Address: "sol-addr",
			Err:     cerr.New(cerr.CodeUnavailable, "rpc down"),
		},
	}
	quotes := map[string]prices.Quote{"ethereum:0xa0b8": {PriceUSD: 1.0}}

	snapshot, warnings := Compose(results, quotes, time.Unix(0, 0))
	if !snapshot.PartialFailure {
		t.Error("partial failure not flagged")
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v", warnings)
	}
	if !approx(snapshot.TotalValueUSD, 100) {
		t.Errorf("total should exclude failed chain, got %v", snapshot.TotalValueUSD)
	}
	var solana struct {
		found  bool
		failed bool
	}
	for _, c := range snapshot.Chains {
		if c.Chain == "Solana" {
			solana.found, solana.failed = true, c.Failed
		}
	}
	if !solana.found || !solana.failed {
		t.Errorf("failed chain must stay visible and flagged: %+v", snapshot.Chains)
	}
}

func TestComposeEmptyPortfolioAvoidsDivisionByZero(t *testing.T) {
	results := []ChainResult{
		{Chain: chain(t, "ethereum")},
		{Chain: chain(t, "solana")},
	}

	snapshot, _ := Compose(results, map[string]prices.Quote{}, time.Unix(0, 0))
	if snapshot.TotalValueUSD != 0 || snapshot.Change24hPct != 0 || snapshot.Yield24hPct != 0 {
		t.Errorf("empty portfolio must be all zeros: %+v", snapshot)
	}
	for _, c := range snapshot.Chains {
		if c.Percentage != 0 {
			t.Errorf("percentage must be 0 with zero total, got %v", c.Percentage)
		}
	}
}

func TestComposeYieldFromAbsoluteMove(t *testing.T) {
	// 110 USD now, +10% over 24h: opening value 100, yield 10%.
	results := []ChainResult{
		{
			Chain:   chain(t, "ethereum"),
			Address: "0x1",
			Balances: []chains.Balance{
				{Symbol: "USDC", Address: "0xa0b8", AmountBase: "110000000", Decimals: 6},
			},
		},
	}
	quotes := map[string]prices.Quote{
		"ethereum:0xa0b8": {PriceUSD: 1.0, Change24hPct: 10},
	}

	snapshot, _ := Compose(results, quotes, time.Unix(0, 0))
	if !approx(snapshot.Yield24hPct, 10) {
		t.Errorf("yield = %v, want 10", snapshot.Yield24hPct)
	}
	if !approx(snapshot.Change24hPct, 10) {
		t.Errorf("change = %v, want 10", snapshot.Change24hPct)
	}
}

func TestComposeAveragesChangeOverHoldingChainsOnly(t *testing.T) {
	results := []ChainResult{
		{
			Chain:   chain(t, "ethereum"),
			Address: "0x1",
			Balances: []chains.Balance{
				{Symbol: "USDC", Address: "0xa0b8", AmountBase: "100000000", Decimals: 6},
			},
		},
		{
			Chain:   chain(t, "aptos"),
			Address: "0x2",
			Balances: []chains.Balance{
				{Symbol: "APT", Address: "0x1::aptos_coin::AptosCoin", AmountBase: "100000000", Decimals: 8},
			},
		},
		{Chain: chain(t, "solana")},
	}
	quotes := map[string]prices.Quote{
		"ethereum:0xa0b8": {PriceUSD: 1.0, Change24hPct: 4},
		"coingecko:aptos": {PriceUSD: 10.0, Change24hPct: 8},
	}

	snapshot, _ := Compose(results, quotes, time.Unix(0, 0))
	if !approx(snapshot.Change24hPct, 6) {
		t.Errorf("change = %v, want mean of 4 and 8 over holding chains only", snapshot.Change24hPct)
	}
}

func TestComposeChangeCountsUnpricedHoldingChain(t *testing.T) {
	// Aptos holds a token the price feed knows nothing about: zero value,
	// zero change, but still a holding chain that dilutes the average.
	results := []ChainResult{
		{
			Chain:   chain(t, "ethereum"),
			Address: "0x1",
			Balances: []chains.Balance{
				{Symbol: "USDC", Address: "0xa0b8", AmountBase: "100000000", Decimals: 6},
			},
		},
		{
			Chain:   chain(t, "aptos"),
			Address: "0x2",
			Balances: []chains.Balance{
				{Symbol: "APT", Address: "0x1::aptos_coin::AptosCoin", AmountBase: "100000000", Decimals: 8},
			},
		},
	}
	quotes := map[string]prices.Quote{
		"ethereum:0xa0b8": {PriceUSD: 1.0, Change24hPct: 6},
	}

	snapshot, _ := Compose(results, quotes, time.Unix(0, 0))
	if !approx(snapshot.Change24hPct, 3) {
		t.Errorf("change = %v, want 6 averaged over two holding chains", snapshot.Change24hPct)
	}
	if len(snapshot.ActiveChains) != 1 || snapshot.ActiveChains[0] != "ethereum" {
		t.Errorf("active chains = %v, want only the chain with USD value", snapshot.ActiveChains)
	}
}
