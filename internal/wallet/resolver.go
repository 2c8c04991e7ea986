package wallet

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nmorales/custos/internal/custody"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/id"
	"github.com/nmorales/custos/internal/model"
)

// Resolver maps a custody user to per-chain account addresses. Resolution is
// read-only and idempotent: the same custody state always produces the same
// address set.
type Resolver struct {
	custody *custody.Client
}

func NewResolver(client *custody.Client) *Resolver {
	return &Resolver{custody: client}
}

type accountsResult struct {
	walletID string
	accounts []custody.Account
	err      error
}

// Resolve lists the user's wallets, fetches every wallet's accounts
// concurrently, and classifies each address into the chains it can serve.
// A wallet whose account fetch fails is skipped with a warning; resolution
// fails only when no address at all could be recovered.
func (r *Resolver) Resolve(ctx context.Context, userID string) (model.ChainAddressSet, []string, error) {
	wallets, err := r.custody.ListWallets(ctx, userID)
	if err != nil {
		return model.ChainAddressSet{}, nil, err
	}
	if len(wallets) == 0 {
		return model.ChainAddressSet{}, nil, cerr.New(cerr.CodeResolution, fmt.Sprintf("no custody wallets found for user %s", userID))
	}

	results := make([]accountsResult, len(wallets))
	var wg sync.WaitGroup
	for i, w := range wallets {
		wg.Add(1)
		go func(slot int, walletID string) {
			defer wg.Done()
			accounts, err := r.custody.WalletAccounts(ctx, walletID)
			results[slot] = accountsResult{walletID: walletID, accounts: accounts, err: err}
		}(i, w.ID)
	}
	wg.Wait()

	set := model.ChainAddressSet{
		UserID:    userID,
		Addresses: map[string]string{},
	}
	var warnings []string

	for _, res := range results {
		if res.err != nil {
			warnings = append(warnings, fmt.Sprintf("wallet %s: %s", res.walletID, cerr.Deepest(res.err, "account fetch failed")))
			continue
		}
		for _, account := range res.accounts {
			assign(&set, account)
		}
	}

	if len(set.Addresses) == 0 && set.Fallback == "" {
		if len(warnings) > 0 {
			return model.ChainAddressSet{}, warnings, cerr.New(cerr.CodeResolution, "could not resolve any chain address: "+strings.Join(warnings, "; "))
		}
		return model.ChainAddressSet{}, nil, cerr.New(cerr.CodeResolution, fmt.Sprintf("custody wallets for user %s hold no recognizable accounts", userID))
	}

	sort.Strings(warnings)
	return set, warnings, nil
}

// assign places an account address into the chain map. An explicit chain tag
// from custody wins over format classification; classified addresses cover
// every chain that shares the format. First assignment per chain sticks.
func assign(set *model.ChainAddressSet, account custody.Account) {
	addr := strings.TrimSpace(account.Address)
	if addr == "" {
		return
	}

	if tag := strings.TrimSpace(account.Chain); tag != "" {
		chain, err := id.ParseChain(tag)
		if err != nil {
			return
		}
		if !id.MatchesKind(addr, chain.Kind) {
			return
		}
		if _, taken := set.Addresses[chain.Slug]; !taken {
			set.Addresses[chain.Slug] = addr
		}
		return
	}

	kind, ok := id.ClassifyAddress(addr)
	if !ok {
		return
	}
	for _, chain := range id.Supported() {
		if !classifiedServes(kind, chain.Kind) {
			continue
		}
		if _, taken := set.Addresses[chain.Slug]; taken {
			continue
		}
		set.Addresses[chain.Slug] = addr
	}
	if kind == id.KindEVM && set.Fallback == "" {
		set.Fallback = addr
	}
}

// classifiedServes maps a classified format family onto the chains an
// untagged address may cover. Classification reads ambiguous short hex as
// EVM, so untagged addresses never spill onto the Move chains; an explicit
// custody tag (validated by MatchesKind above) is the way onto those.
func classifiedServes(classified, chainKind id.AddressKind) bool {
	switch chainKind {
	case id.KindEVM:
		return classified == id.KindEVM
	case id.KindAptos, id.KindSui:
		return classified == id.KindAptos
	case id.KindSolana:
		return classified == id.KindSolana
	default:
		return false
	}
}
