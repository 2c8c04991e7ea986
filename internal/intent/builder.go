package intent

import (
	"fmt"
	"strconv"

	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/execution"
	"github.com/nmorales/custos/internal/id"
	"github.com/nmorales/custos/internal/registry"
)

// Builder turns intents into unsigned transactions. It is pure: no network
// access, no clocks, deterministic output for the same input.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) resolveToken(chain id.Chain, symbol string) (id.Token, error) {
	token, ok := id.KnownToken(chain.CAIP2, symbol)
	if !ok {
		return id.Token{}, cerr.New(cerr.CodeUsage, fmt.Sprintf("token %s is not registered on %s", symbol, chain.Slug))
	}
	if chain.IsMove() && token.Address == "" {
		return id.Token{}, cerr.New(cerr.CodeUsage, fmt.Sprintf("token %s has no coin type on %s", symbol, chain.Slug))
	}
	return token, nil
}

func requireMove(chain id.Chain) error {
	if !chain.IsMove() {
		return cerr.New(cerr.CodeUnsupported, fmt.Sprintf("on-chain execution is not supported on %s", chain.Slug))
	}
	return nil
}

// BuildSwap produces a swap_exact_in call. The input amount converts to base
// units; the slippage tolerance travels as basis points.
func (b *Builder) BuildSwap(sender string, swap Swap) (*execution.UnsignedTransaction, error) {
	chain, err := id.ParseChain(swap.Chain)
	if err != nil {
		return nil, err
	}
	if err := requireMove(chain); err != nil {
		return nil, err
	}

	from, err := b.resolveToken(chain, swap.FromSymbol)
	if err != nil {
		return nil, err
	}
	to, err := b.resolveToken(chain, swap.ToSymbol)
	if err != nil {
		return nil, err
	}

	amount, err := id.ToBaseUnits(swap.Amount, from.Decimals)
	if err != nil {
		return nil, err
	}

	slippage := swap.SlippagePct
	if slippage == 0 {
		slippage = DefaultSlippagePct
	}
	if slippage < 0 || slippage > 50 {
		return nil, cerr.New(cerr.CodeUsage, fmt.Sprintf("slippage %.2f%% out of range", slippage))
	}
	slippageBps := int64(slippage * 100)

	return &execution.UnsignedTransaction{
		ChainSlug: chain.Slug,
		Sender:    sender,
		Function:  registry.FnSwapExactIn,
		TypeArgs:  []string{from.Address, to.Address},
		Args:      []any{amount, strconv.FormatInt(slippageBps, 10)},
	}, nil
}

// BuildDCA produces a create_strategy call registering a recurring swap.
func (b *Builder) BuildDCA(sender string, dca DCA) (*execution.UnsignedTransaction, error) {
	chain, err := id.ParseChain(dca.Chain)
	if err != nil {
		return nil, err
	}
	if err := requireMove(chain); err != nil {
		return nil, err
	}

	from, err := b.resolveToken(chain, dca.FromSymbol)
	if err != nil {
		return nil, err
	}
	to, err := b.resolveToken(chain, dca.ToSymbol)
	if err != nil {
		return nil, err
	}

	amount, err := id.ToBaseUnits(dca.AmountPerRun, from.Decimals)
	if err != nil {
		return nil, err
	}

	freq := dca.Frequency
	if freq == "" {
		freq = FreqDaily
	}
	intervalSecs, err := freq.Seconds()
	if err != nil {
		return nil, err
	}
	if dca.MaxExecutions < 0 {
		return nil, cerr.New(cerr.CodeUsage, "max executions cannot be negative")
	}

	return &execution.UnsignedTransaction{
		ChainSlug: chain.Slug,
		Sender:    sender,
		Function:  registry.FnStrategyCreate,
		TypeArgs:  []string{from.Address, to.Address},
		Args: []any{
			amount,
			strconv.FormatInt(intervalSecs, 10),
			strconv.FormatInt(dca.MaxExecutions, 10),
		},
	}, nil
}

// BuildYield produces a vault deposit with the tier's APY floor in basis
// points.
func (b *Builder) BuildYield(sender string, yield Yield) (*execution.UnsignedTransaction, error) {
	chain, err := id.ParseChain(yield.Chain)
	if err != nil {
		return nil, err
	}
	if err := requireMove(chain); err != nil {
		return nil, err
	}

	token, err := b.resolveToken(chain, yield.Symbol)
	if err != nil {
		return nil, err
	}

	amount, err := id.ToBaseUnits(yield.Amount, token.Decimals)
	if err != nil {
		return nil, err
	}

	risk := yield.Risk
	if risk == "" {
		risk = RiskMedium
	}
	minAPY, err := risk.MinAPYPct()
	if err != nil {
		return nil, err
	}
	minAPYBps := int64(minAPY * 100)

	return &execution.UnsignedTransaction{
		ChainSlug: chain.Slug,
		Sender:    sender,
		Function:  registry.FnYieldDeposit,
		TypeArgs:  []string{token.Address},
		Args:      []any{amount, strconv.FormatInt(minAPYBps, 10)},
	}, nil
}
