package sui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nmorales/custos/internal/chains"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/httpx"
	"github.com/nmorales/custos/internal/id"
)

// Client reads coin balances over Sui JSON-RPC.
type Client struct {
	http  *httpx.Client
	base  string
	chain id.Chain
}

func NewClient(http *httpx.Client, base string) *Client {
	chain, _ := id.ParseChain("sui")
	return &Client{http: http, base: strings.TrimRight(base, "/"), chain: chain}
}

func (c *Client) Chain() id.Chain { return c.chain }

// Balances calls suix_getAllBalances and keeps the coin types the token
// registry knows decimals for.
func (c *Client) Balances(ctx context.Context, address string) ([]chains.Balance, error) {
	if !id.MatchesKind(address, id.KindSui) {
		return nil, cerr.New(cerr.CodeUsage, fmt.Sprintf("invalid sui address: %s", address))
	}

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "suix_getAllBalances",
		"params":  []any{address},
	})
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeInternal, "encode rpc request", err)
	}

	var envelope struct {
		Result []struct {
			CoinType     string `json:"coinType"`
			TotalBalance string `json:"totalBalance"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.base, body, nil, &envelope); err != nil {
		return nil, cerr.Wrap(cerr.CodeUnavailable, "sui rpc suix_getAllBalances", err)
	}
	if envelope.Error != nil {
		return nil, cerr.New(cerr.CodeUnavailable, "sui rpc: "+envelope.Error.Message)
	}

	var balances []chains.Balance
	for _, entry := range envelope.Result {
		token, known := id.LookupByAddress(c.chain.CAIP2, entry.CoinType)
		if !known {
			continue
		}
		if entry.TotalBalance == "" || entry.TotalBalance == "0" {
			continue
		}
		balances = append(balances, chains.Balance{
			Symbol:     token.Symbol,
			Address:    token.Address,
			AmountBase: entry.TotalBalance,
			Decimals:   token.Decimals,
		})
	}
	return balances, nil
}
