package portfolio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nmorales/custos/internal/cache"
	"github.com/nmorales/custos/internal/chains"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/id"
	"github.com/nmorales/custos/internal/model"
	"github.com/nmorales/custos/internal/prices"
)

// ChainResult is one chain's raw fetch outcome before composition.
type ChainResult struct {
	Chain    id.Chain
	Address  string
	Balances []chains.Balance
	Err      error
}

type quoter interface {
	Quotes(ctx context.Context, keys []string) (map[string]prices.Quote, error)
}

// Aggregator fans balance fetches out across every supported chain and
// composes the results into a priced snapshot. Chains without a resolved
// address get a zero entry without any network call; a failing chain degrades
// the snapshot instead of sinking it.
type Aggregator struct {
	fetchers map[string]chains.BalanceFetcher
	prices   quoter
	store    *cache.Store
	ttl      time.Duration
	cacheOn  bool
	now      func() time.Time
}

func NewAggregator(fetchers map[string]chains.BalanceFetcher, quotes quoter, store *cache.Store, ttl time.Duration, cacheOn bool, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		fetchers: fetchers,
		prices:   quotes,
		store:    store,
		ttl:      ttl,
		cacheOn:  cacheOn,
		now:      now,
	}
}

type cachedSnapshot struct {
	Snapshot model.PortfolioSnapshot
	Warnings []string
}

// Snapshot returns the user's portfolio across all supported chains. Results
// are cached per address set; force bypasses the cache and overwrites it.
func (a *Aggregator) Snapshot(ctx context.Context, set model.ChainAddressSet, force bool) (model.PortfolioSnapshot, []string, error) {
	fetch := func(ctx context.Context) (any, error) {
		snapshot, warnings, err := a.fetchSnapshot(ctx, set)
		if err != nil {
			return nil, err
		}
		return cachedSnapshot{Snapshot: snapshot, Warnings: warnings}, nil
	}

	if !a.cacheOn || a.store == nil {
		value, err := fetch(ctx)
		if err != nil {
			return model.PortfolioSnapshot{}, nil, err
		}
		cached := value.(cachedSnapshot)
		return cached.Snapshot, cached.Warnings, nil
	}

	key := cache.Key("portfolio", set)
	value, status, err := a.store.GetOrFetch(ctx, key, a.ttl, force, fetch)
	if err != nil {
		return model.PortfolioSnapshot{}, nil, err
	}
	cached, ok := value.(cachedSnapshot)
	if !ok {
		return model.PortfolioSnapshot{}, nil, cerr.New(cerr.CodeInternal, "portfolio cache holds unexpected value")
	}
	cached.Snapshot.FromCache = status.FromCache
	return cached.Snapshot, cached.Warnings, nil
}

func (a *Aggregator) fetchSnapshot(ctx context.Context, set model.ChainAddressSet) (model.PortfolioSnapshot, []string, error) {
	supported := id.Supported()
	results := make([]ChainResult, len(supported))

	var wg sync.WaitGroup
	for i, chain := range supported {
		address := set.AddressFor(chain.Slug, chain.IsEVM())
		results[i] = ChainResult{Chain: chain, Address: address}
		if address == "" {
			continue
		}
		fetcher, ok := a.fetchers[chain.Slug]
		if !ok {
			results[i].Err = cerr.New(cerr.CodeUnsupported, fmt.Sprintf("no balance fetcher for %s", chain.Slug))
			continue
		}

		wg.Add(1)
		go func(slot int, f chains.BalanceFetcher, addr string) {
			defer wg.Done()
			balances, err := f.Balances(ctx, addr)
			results[slot].Balances = balances
			results[slot].Err = err
		}(i, fetcher, address)
	}
	wg.Wait()

	quotes, warnings := a.quoteResults(ctx, results)
	snapshot, composeWarnings := Compose(results, quotes, a.now())
	warnings = append(warnings, composeWarnings...)
	sort.Strings(warnings)
	return snapshot, warnings, nil
}

func (a *Aggregator) quoteResults(ctx context.Context, results []ChainResult) (map[string]prices.Quote, []string) {
	seen := map[string]bool{}
	var keys []string
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, balance := range res.Balances {
			key := prices.CoinKey(res.Chain, id.Token{Symbol: balance.Symbol, Address: balance.Address, Decimals: balance.Decimals})
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)

	quotes, err := a.prices.Quotes(ctx, keys)
	if err != nil {
		return map[string]prices.Quote{}, []string{"prices: " + cerr.Deepest(err, "quote fetch failed")}
	}
	return quotes, nil
}
