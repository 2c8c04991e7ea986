package prices

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/httpx"
	"github.com/nmorales/custos/internal/id"
)

// Quote is a spot price with its trailing 24h move.
type Quote struct {
	PriceUSD     float64
	Change24hPct float64
}

// Client fetches USD quotes from the DefiLlama coins API.
type Client struct {
	http   *httpx.Client
	base   string
	apiKey string
}

func NewClient(http *httpx.Client, base, apiKey string) *Client {
	return &Client{http: http, base: strings.TrimRight(base, "/"), apiKey: apiKey}
}

// CoinKey maps a token to the DefiLlama coin identifier. Native assets go
// through coingecko ids; everything else is chain-prefixed by contract
// address, coin type, or mint.
func CoinKey(chain id.Chain, token id.Token) string {
	if token.Address == "" || (chain.IsMove() && isNativeMoveCoin(token)) {
		switch chain.Slug {
		case "aptos":
			return "coingecko:aptos"
		case "ethereum", "base":
			return "coingecko:ethereum"
		case "solana":
			return "coingecko:solana"
		case "sui":
			return "coingecko:sui"
		}
	}
	return chain.Slug + ":" + token.Address
}

func isNativeMoveCoin(token id.Token) bool {
	switch token.Address {
	case "0x1::aptos_coin::AptosCoin", "0x2::sui::SUI":
		return true
	default:
		return false
	}
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + c.apiKey}
}

// Quotes fetches current prices and 24h percentage moves for the given coin
// keys. A key the API does not know simply has no entry in the result; a
// missing 24h move leaves the change at zero.
func (c *Client) Quotes(ctx context.Context, keys []string) (map[string]Quote, error) {
	if len(keys) == 0 {
		return map[string]Quote{}, nil
	}
	joined := url.PathEscape(strings.Join(keys, ","))

	var current struct {
		Coins map[string]struct {
			Price  float64 `json:"price"`
			Symbol string  `json:"symbol"`
		} `json:"coins"`
	}
	endpoint := fmt.Sprintf("%s/prices/current/%s", c.base, joined)
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, c.headers(), &current); err != nil {
		return nil, cerr.Wrap(cerr.CodeUnavailable, "fetch current prices", err)
	}

	quotes := make(map[string]Quote, len(current.Coins))
	for key, coin := range current.Coins {
		quotes[key] = Quote{PriceUSD: coin.Price}
	}

	var changes struct {
		Coins map[string]float64 `json:"coins"`
	}
	endpoint = fmt.Sprintf("%s/percentage/%s", c.base, joined)
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, c.headers(), &changes); err == nil {
		for key, pct := range changes.Coins {
			quote := quotes[key]
			quote.Change24hPct = pct
			quotes[key] = quote
		}
	}

	return quotes, nil
}
