package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/nmorales/custos/internal/chains"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/id"
)

// balanceOf(address) selector.
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// Client reads native and ERC-20 balances for one EVM chain through a
// standard JSON-RPC endpoint.
type Client struct {
	chain id.Chain
	rpc   string
	dial  func(ctx context.Context, rawurl string) (ethBackend, error)
}

// ethBackend is the slice of ethclient.Client the fetcher uses.
type ethBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	Close()
}

func NewClient(chain id.Chain, rpcURL string) *Client {
	return &Client{
		chain: chain,
		rpc:   rpcURL,
		dial: func(ctx context.Context, rawurl string) (ethBackend, error) {
			return ethclient.DialContext(ctx, rawurl)
		},
	}
}

func (c *Client) Chain() id.Chain { return c.chain }

// Balances reads the native balance plus every registered ERC-20 for the
// chain. Zero positions are dropped.
func (c *Client) Balances(ctx context.Context, address string) ([]chains.Balance, error) {
	if !common.IsHexAddress(address) {
		return nil, cerr.New(cerr.CodeUsage, fmt.Sprintf("invalid EVM address: %s", address))
	}
	holder := common.HexToAddress(address)

	backend, err := c.dial(ctx, c.rpc)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeUnavailable, fmt.Sprintf("dial %s rpc", c.chain.Slug), err)
	}
	defer backend.Close()

	var balances []chains.Balance
	for _, token := range registeredTokens(c.chain.CAIP2) {
		var amount *big.Int
		if token.Address == "" {
			amount, err = backend.BalanceAt(ctx, holder, nil)
		} else {
			amount, err = erc20Balance(ctx, backend, common.HexToAddress(token.Address), holder)
		}
		if err != nil {
			return nil, cerr.Wrap(cerr.CodeUnavailable, fmt.Sprintf("fetch %s balance on %s", token.Symbol, c.chain.Slug), err)
		}
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		balances = append(balances, chains.Balance{
			Symbol:     token.Symbol,
			Address:    token.Address,
			AmountBase: amount.String(),
			Decimals:   token.Decimals,
		})
	}
	return balances, nil
}

func erc20Balance(ctx context.Context, backend ethBackend, contract, holder common.Address) (*big.Int, error) {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(holder.Bytes(), 32)...)

	out, err := backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(out), nil
}

func registeredTokens(caip2 string) []id.Token {
	var tokens []id.Token
	for _, symbol := range []string{"ETH", "USDC", "USDT"} {
		if token, ok := id.KnownToken(caip2, symbol); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// ChecksumAddress normalizes an EVM address to its EIP-55 form.
func ChecksumAddress(address string) (string, bool) {
	if !common.IsHexAddress(address) {
		return "", false
	}
	return common.HexToAddress(strings.TrimSpace(address)).Hex(), true
}
