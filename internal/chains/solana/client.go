package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"

	"github.com/nmorales/custos/internal/chains"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/httpx"
	"github.com/nmorales/custos/internal/id"
)

const tokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"

// Client reads native and SPL token balances over Solana JSON-RPC.
type Client struct {
	http  *httpx.Client
	base  string
	chain id.Chain
}

func NewClient(http *httpx.Client, base string) *Client {
	chain, _ := id.ParseChain("solana")
	return &Client{http: http, base: strings.TrimRight(base, "/"), chain: chain}
}

func (c *Client) Chain() id.Chain { return c.chain }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return cerr.Wrap(cerr.CodeInternal, "encode rpc request", err)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.base, body, nil, &envelope); err != nil {
		return cerr.Wrap(cerr.CodeUnavailable, "solana rpc "+method, err)
	}
	if envelope.Error != nil {
		return cerr.New(cerr.CodeUnavailable, fmt.Sprintf("solana rpc %s: %s", method, envelope.Error.Message))
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return cerr.Wrap(cerr.CodeUnavailable, "decode solana rpc result", err)
	}
	return nil
}

// Balances reports the lamport balance plus every SPL token account whose
// mint is registered. Aggregation across multiple token accounts for the same
// mint sums their raw amounts.
func (c *Client) Balances(ctx context.Context, address string) ([]chains.Balance, error) {
	if decoded, err := base58.Decode(address); err != nil || len(decoded) != 32 {
		return nil, cerr.New(cerr.CodeUsage, fmt.Sprintf("invalid solana address: %s", address))
	}

	var native struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{address}, &native); err != nil {
		return nil, err
	}

	var tokenAccounts struct {
		Value []struct {
			Account struct {
				Data struct {
					Parsed struct {
						Info struct {
							Mint        string `json:"mint"`
							TokenAmount struct {
								Amount   string `json:"amount"`
								Decimals int    `json:"decimals"`
							} `json:"tokenAmount"`
						} `json:"info"`
					} `json:"parsed"`
				} `json:"data"`
			} `json:"account"`
		} `json:"value"`
	}
	params := []any{
		address,
		map[string]string{"programId": tokenProgramID},
		map[string]string{"encoding": "jsonParsed"},
	}
	if err := c.call(ctx, "getTokenAccountsByOwner", params, &tokenAccounts); err != nil {
		return nil, err
	}

	var balances []chains.Balance
	if native.Value > 0 {
		sol, _ := id.KnownToken(c.chain.CAIP2, "SOL")
		balances = append(balances, chains.Balance{
			Symbol:     sol.Symbol,
			AmountBase: strconv.FormatUint(native.Value, 10),
			Decimals:   sol.Decimals,
		})
	}

	totals := map[string]uint64{}
	for _, acct := range tokenAccounts.Value {
		info := acct.Account.Data.Parsed.Info
		token, known := id.LookupByAddress(c.chain.CAIP2, info.Mint)
		if !known {
			continue
		}
		amount, err := strconv.ParseUint(info.TokenAmount.Amount, 10, 64)
		if err != nil || amount == 0 {
			continue
		}
		totals[token.Symbol] += amount
	}
	for symbol, amount := range totals {
		token, _ := id.KnownToken(c.chain.CAIP2, symbol)
		balances = append(balances, chains.Balance{
			Symbol:     token.Symbol,
			Address:    token.Address,
			AmountBase: strconv.FormatUint(amount, 10),
			Decimals:   token.Decimals,
		})
	}
	return balances, nil
}
