package chains

import (
	"context"

	"github.com/nmorales/custos/internal/id"
)

// Balance is one token position on one chain, amount in base units.
type Balance struct {
	Symbol     string
	Address    string
	AmountBase string
	Decimals   int
}

// BalanceFetcher reads every known token balance for an address on one chain.
// Implementations return only positions the chain actually reports; zero
// filtering is the aggregator's job.
type BalanceFetcher interface {
	Chain() id.Chain
	Balances(ctx context.Context, address string) ([]Balance, error)
}
