package id

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mr-tron/base58"
	cerr "github.com/nmorales/custos/internal/errors"
)

// AddressKind tags the address-format family an account belongs to. New kinds
// must be added to ClassifyAddress and every switch over AddressKind.
type AddressKind string

const (
	KindEVM    AddressKind = "evm"
	KindSolana AddressKind = "solana"
	KindAptos  AddressKind = "aptos"
	KindSui    AddressKind = "sui"
)

var (
	eip155ChainPattern = regexp.MustCompile(`^eip155:[0-9]+$`)
	evmAddressPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	moveAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)
	base58Pattern      = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

const solanaMainnetRef = "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"

type Chain struct {
	Name       string
	Slug       string
	CAIP2      string
	Kind       AddressKind
	EVMChainID int64
}

func (c Chain) IsEVM() bool { return c.Kind == KindEVM }

func (c Chain) IsMove() bool { return c.Kind == KindAptos || c.Kind == KindSui }

// Ed25519Signed reports whether the chain authenticates transactions with
// ed25519 over a raw canonical message, meaning the remote signer receives
// hash function "not_applicable".
func (c Chain) Ed25519Signed() bool {
	switch c.Kind {
	case KindSolana, KindAptos, KindSui:
		return true
	case KindEVM:
		return false
	default:
		return false
	}
}

var chainBySlug = map[string]Chain{
	"aptos":    {Name: "Aptos", Slug: "aptos", CAIP2: "aptos:1", Kind: KindAptos},
	"ethereum": {Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", Kind: KindEVM, EVMChainID: 1},
	"mainnet":  {Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", Kind: KindEVM, EVMChainID: 1},
	"base":     {Name: "Base", Slug: "base", CAIP2: "eip155:8453", Kind: KindEVM, EVMChainID: 8453},
	"solana":   {Name: "Solana", Slug: "solana", CAIP2: "solana:" + solanaMainnetRef, Kind: KindSolana},
	"sui":      {Name: "Sui", Slug: "sui", CAIP2: "sui:mainnet", Kind: KindSui},
}

var chainByEVMID = map[int64]Chain{
	1:    chainBySlug["ethereum"],
	8453: chainBySlug["base"],
}

// Supported returns the chain registry in a stable order. The portfolio view
// always covers every supported chain, with or without a resolved address.
func Supported() []Chain {
	return []Chain{
		chainBySlug["aptos"],
		chainBySlug["ethereum"],
		chainBySlug["base"],
		chainBySlug["solana"],
		chainBySlug["sui"],
	}
}

func ParseChain(input string) (Chain, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Chain{}, cerr.New(cerr.CodeUsage, "chain is required")
	}
	norm := strings.ToLower(raw)

	if chain, ok := chainBySlug[norm]; ok {
		return chain, nil
	}

	if eip155ChainPattern.MatchString(norm) {
		parts := strings.Split(norm, ":")
		evmID, _ := strconv.ParseInt(parts[1], 10, 64)
		if known, ok := chainByEVMID[evmID]; ok {
			return known, nil
		}
		return Chain{Name: fmt.Sprintf("EVM-%d", evmID), Slug: fmt.Sprintf("evm-%d", evmID), CAIP2: norm, Kind: KindEVM, EVMChainID: evmID}, nil
	}

	for _, chain := range Supported() {
		if strings.EqualFold(chain.CAIP2, raw) {
			return chain, nil
		}
	}

	return Chain{}, cerr.New(cerr.CodeUsage, fmt.Sprintf("unsupported chain input: %s", input))
}

// ClassifyAddress maps a raw account address onto its format family.
// EVM addresses are exactly 20 hex bytes; Move addresses (Aptos, Sui) are up
// to 32 hex bytes and are only distinguishable by the caller's chain hint;
// Solana addresses decode from base58 to 32 bytes.
func ClassifyAddress(address string) (AddressKind, bool) {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return "", false
	}
	if evmAddressPattern.MatchString(addr) {
		return KindEVM, true
	}
	if moveAddressPattern.MatchString(addr) {
		return KindAptos, true
	}
	if base58Pattern.MatchString(addr) {
		decoded, err := base58.Decode(addr)
		if err == nil && len(decoded) == 32 {
			return KindSolana, true
		}
	}
	return "", false
}

// MatchesKind reports whether an address is well-formed for the given kind.
// Aptos and Sui share the Move hex format, which includes the 20-byte short
// form that also reads as an EVM address, so Move kinds match the pattern
// directly rather than going through classification precedence.
func MatchesKind(address string, kind AddressKind) bool {
	addr := strings.TrimSpace(address)
	switch kind {
	case KindEVM:
		return evmAddressPattern.MatchString(addr)
	case KindAptos, KindSui:
		return moveAddressPattern.MatchString(addr)
	case KindSolana:
		got, ok := ClassifyAddress(addr)
		return ok && got == KindSolana
	default:
		return false
	}
}

type Token struct {
	Symbol   string
	Address  string
	Decimals int
}

// Bootstrap token registry for deterministic decimals on supported chains.
// Addresses are coin types on Move chains, contract addresses on EVM, and
// mints on Solana; the empty address marks the chain's native asset.
var tokenRegistry = map[string][]Token{
	"aptos:1": {
		{Symbol: "APT", Address: "0x1::aptos_coin::AptosCoin", Decimals: 8},
		{Symbol: "USDC", Address: "0xf22bede237a07e121b56d91a491eb7bcdfd1f5907926a9e58338f964a01b17fa::asset::USDC", Decimals: 6},
	},
	"eip155:1": {
		{Symbol: "ETH", Address: "", Decimals: 18},
		{Symbol: "USDC", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
		{Symbol: "USDT", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
	},
	"eip155:8453": {
		{Symbol: "ETH", Address: "", Decimals: 18},
		{Symbol: "USDC", Address: "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", Decimals: 6},
	},
	"solana:" + solanaMainnetRef: {
		{Symbol: "SOL", Address: "", Decimals: 9},
		{Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
	},
	"sui:mainnet": {
		{Symbol: "SUI", Address: "0x2::sui::SUI", Decimals: 9},
	},
}

func KnownToken(chainCAIP2, symbol string) (Token, bool) {
	for _, t := range tokenRegistry[chainCAIP2] {
		if strings.EqualFold(t.Symbol, symbol) {
			return Token{Symbol: strings.ToUpper(t.Symbol), Address: t.Address, Decimals: t.Decimals}, true
		}
	}
	return Token{}, false
}

func LookupByAddress(chainCAIP2, address string) (Token, bool) {
	for _, t := range tokenRegistry[chainCAIP2] {
		if strings.EqualFold(strings.TrimSpace(t.Address), strings.TrimSpace(address)) {
			return Token{Symbol: strings.ToUpper(t.Symbol), Address: t.Address, Decimals: t.Decimals}, true
		}
	}
	return Token{}, false
}
