package sui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/httpx"
)

const suiAddress = "0x5a6c1f2e3d4b5a6c1f2e3d4b5a6c1f2e3d4b5a6c1f2e3d4b5a6c1f2e3d4b5a6c"

func newTestClient(handler http.HandlerFunc) (*Client, func()) {
	srv := httptest.NewServer(handler)
	return NewClient(httpx.New(2*time.Second, 0), srv.URL), srv.Close
}

func TestBalancesKeepsRegisteredCoins(t *testing.T) {
	client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode rpc request: %v", err)
		}
		if req.Method != "suix_getAllBalances" {
			t.Errorf("method = %s", req.Method)
		}
		if len(req.Params) != 1 || req.Params[0] != suiAddress {
			t.Errorf("params = %v", req.Params)
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":[
			{"coinType":"0x2::sui::SUI","totalBalance":"5000000000"},
			{"coinType":"0xdead::meme::MEME","totalBalance":"999"},
			{"coinType":"0x2::sui::SUI","totalBalance":"0"}
		]}`))
	})
	defer done()

	balances, err := client.Balances(context.Background(), suiAddress)
	if err != nil {
		t.Fatalf("Balances: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("balances = %+v", balances)
	}
	if balances[0].Symbol != "SUI" || balances[0].AmountBase != "5000000000" || balances[0].Decimals != 9 {
		t.Errorf("SUI entry wrong: %+v", balances[0])
	}
}

func TestBalancesRejectsBadAddress(t *testing.T) {
	client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		t.Error("rpc should not be called for an invalid address")
	})
	defer done()

	_, err := client.Balances(context.Background(), "0x742d35Cc6634C0532925a3b844Bc454e4438f44e zz")
	typed, ok := cerr.As(err)
	if !ok || typed.Code != cerr.CodeUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestBalancesSurfacesRPCError(t *testing.T) {
	client, done := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Invalid params"}}`))
	})
	defer done()

	_, err := client.Balances(context.Background(), suiAddress)
	typed, ok := cerr.As(err)
	if !ok || typed.Code != cerr.CodeUnavailable {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}
