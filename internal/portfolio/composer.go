package portfolio

import (
	"fmt"
	"sort"
	"time"

	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/id"
	"github.com/nmorales/custos/internal/model"
	"github.com/nmorales/custos/internal/prices"
)

// Compose turns raw per-chain fetch results into a priced snapshot. Chains
// are sorted by USD value descending; percentages are of the grand total and
// zero when the portfolio is empty. The portfolio 24h change averages over
// chains holding at least one token, and the 24h yield relates the absolute
// move to the opening value, guarding the empty-portfolio division.
func Compose(results []ChainResult, quotes map[string]prices.Quote, fetchedAt time.Time) (model.PortfolioSnapshot, []string) {
	var warnings []string
	var chainViews []model.ChainPortfolio
	var total, totalChangeUSD float64
	partial := false

	for _, res := range results {
		view := model.ChainPortfolio{
			Chain:   res.Chain.Name,
			ChainID: res.Chain.CAIP2,
			Address: res.Address,
			Tokens:  []model.TokenHolding{},
		}

		if res.Err != nil {
			view.Failed = true
			partial = true
			warnings = append(warnings, fmt.Sprintf("%s: %s", res.Chain.Slug, cerr.Deepest(res.Err, "balance fetch failed")))
			chainViews = append(chainViews, view)
			continue
		}

		var chainChangeUSD float64
		for _, balance := range res.Balances {
			quote := quotes[prices.CoinKey(res.Chain, id.Token{Symbol: balance.Symbol, Address: balance.Address, Decimals: balance.Decimals})]
			amount := id.BaseUnitsToFloat(balance.AmountBase, balance.Decimals)
			value := amount * quote.PriceUSD

			holding := model.TokenHolding{
				Symbol:       balance.Symbol,
				Address:      balance.Address,
				Amount:       id.FromBaseUnits(balance.AmountBase, balance.Decimals),
				AmountBase:   balance.AmountBase,
				Decimals:     balance.Decimals,
				PriceUSD:     quote.PriceUSD,
				ValueUSD:     value,
				Change24hPct: quote.Change24hPct,
			}
			view.Tokens = append(view.Tokens, holding)
			view.ValueUSD += value
			chainChangeUSD += changeUSD(value, quote.Change24hPct)
		}

		sort.SliceStable(view.Tokens, func(i, j int) bool {
			return view.Tokens[i].ValueUSD > view.Tokens[j].ValueUSD
		})
		if opening := view.ValueUSD - chainChangeUSD; opening != 0 {
			view.Change24hPct = chainChangeUSD / opening * 100
		}

		total += view.ValueUSD
		totalChangeUSD += chainChangeUSD
		chainViews = append(chainViews, view)
	}

	var activeChains []string
	var changeSum float64
	holdingChains := 0
	for i := range chainViews {
		if total > 0 {
			chainViews[i].Percentage = chainViews[i].ValueUSD / total * 100
		}
		if chainViews[i].ValueUSD > 0 {
			activeChains = append(activeChains, chainSlugByCAIP2(chainViews[i].ChainID))
		}
		if len(chainViews[i].Tokens) > 0 {
			changeSum += chainViews[i].Change24hPct
			holdingChains++
		}
	}

	sort.SliceStable(chainViews, func(i, j int) bool {
		return chainViews[i].ValueUSD > chainViews[j].ValueUSD
	})

	snapshot := model.PortfolioSnapshot{
		TotalValueUSD:  total,
		Chains:         chainViews,
		ActiveChains:   activeChains,
		FetchedAt:      fetchedAt,
		PartialFailure: partial,
	}
	if holdingChains > 0 {
		snapshot.Change24hPct = changeSum / float64(holdingChains)
	}
	if opening := total - totalChangeUSD; opening != 0 {
		snapshot.Yield24hPct = totalChangeUSD / opening * 100
	}
	return snapshot, warnings
}

// changeUSD converts a relative 24h move into the absolute USD move,
// value*pct/(100+pct), with the degenerate -100% move guarded.
func changeUSD(value, pct float64) float64 {
	if value == 0 || pct == 0 {
		return 0
	}
	denom := 100 + pct
	if denom == 0 {
		return value
	}
	return value * pct / denom
}

func chainSlugByCAIP2(caip2 string) string {
	for _, chain := range id.Supported() {
		if chain.CAIP2 == caip2 {
			return chain.Slug
		}
	}
	return caip2
}
