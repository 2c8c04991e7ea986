package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nmorales/custos/internal/httpx"
)

const owner = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func TestBalancesParsesRPCResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		switch req.Method {
		case "getBalance":
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":2500000000}}`))
		case "getTokenAccountsByOwner":
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":[
				{"account":{"data":{"parsed":{"info":{"mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","tokenAmount":{"amount":"7000000","decimals":6}}}}}},
				{"account":{"data":{"parsed":{"info":{"mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","tokenAmount":{"amount":"3000000","decimals":6}}}}}},
				{"account":{"data":{"parsed":{"info":{"mint":"UnknownMint1111111111111111111111111111111","tokenAmount":{"amount":"99","decimals":0}}}}}}
			]}}`))
		default:
			t.Errorf("unexpected rpc method %s", req.Method)
		}
	}))
	defer server.Close()

	client := NewClient(httpx.New(2*time.Second, 0), server.URL)
	balances, err := client.Balances(context.Background(), owner)
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}

	bySymbol := map[string]string{}
	for _, b := range balances {
		bySymbol[b.Symbol] = b.AmountBase
	}
	if bySymbol["SOL"] != "2500000000" {
		t.Errorf("SOL = %q", bySymbol["SOL"])
	}
	if bySymbol["USDC"] != "10000000" {
		t.Errorf("USDC = %q, want summed token accounts", bySymbol["USDC"])
	}
	if len(balances) != 2 {
		t.Errorf("unknown mint should be skipped, got %+v", balances)
	}
}

func TestBalancesRejectsBadAddress(t *testing.T) {
	client := NewClient(httpx.New(time.Second, 0), "http://unused")
	if _, err := client.Balances(context.Background(), "0x1111111111111111111111111111111111111111"); err == nil {
		t.Fatal("expected error for non-base58 address")
	}
}

func TestBalancesSurfacesRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"node is behind"}}`))
	}))
	defer server.Close()

	client := NewClient(httpx.New(2*time.Second, 0), server.URL)
	if _, err := client.Balances(context.Background(), owner); err == nil {
		t.Fatal("expected rpc error to surface")
	}
}
