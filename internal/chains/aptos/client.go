package aptos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nmorales/custos/internal/chains"
	"github.com/nmorales/custos/internal/custody"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/execution"
	"github.com/nmorales/custos/internal/httpx"
	"github.com/nmorales/custos/internal/id"
)

const (
	coinStorePrefix = "0x1::coin::CoinStore<"

	maxGasAmount  = "20000"
	expirySeconds = 600
)

// Client talks to an Aptos fullnode REST API. It serves both balance reads
// and the prepare/submit/receipt cycle for entry function calls. The fullnode
// computes the canonical signing message via encode_submission, so no BCS
// serialization happens client-side.
type Client struct {
	http  *httpx.Client
	base  string
	chain id.Chain
	now   func() time.Time
}

func NewClient(http *httpx.Client, base string) *Client {
	chain, _ := id.ParseChain("aptos")
	return &Client{
		http:  http,
		base:  strings.TrimRight(base, "/"),
		chain: chain,
		now:   time.Now,
	}
}

func (c *Client) Chain() id.Chain { return c.chain }

type accountInfo struct {
	SequenceNumber string `json:"sequence_number"`
}

type resource struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type coinStoreData struct {
	Coin struct {
		Value string `json:"value"`
	} `json:"coin"`
}

// Balances walks the account's resources and reports every CoinStore whose
// coin type is in the token registry. Unknown coin types are skipped: without
// registered decimals the amount cannot be interpreted.
func (c *Client) Balances(ctx context.Context, address string) ([]chains.Balance, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/resources", c.base, url.PathEscape(address))
	var resources []resource
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, nil, &resources); err != nil {
		var status *httpx.StatusError
		if errors.As(err, &status) && status.Status == http.StatusNotFound {
			return nil, nil
		}
		return nil, cerr.Wrap(cerr.CodeUnavailable, "fetch aptos resources", err)
	}

	var balances []chains.Balance
	for _, res := range resources {
		if !strings.HasPrefix(res.Type, coinStorePrefix) || !strings.HasSuffix(res.Type, ">") {
			continue
		}
		coinType := res.Type[len(coinStorePrefix) : len(res.Type)-1]
		token, known := id.LookupByAddress(c.chain.CAIP2, coinType)
		if !known {
			continue
		}
		var data coinStoreData
		if err := json.Unmarshal(res.Data, &data); err != nil {
			continue
		}
		if data.Coin.Value == "" || data.Coin.Value == "0" {
			continue
		}
		balances = append(balances, chains.Balance{
			Symbol:     token.Symbol,
			Address:    token.Address,
			AmountBase: data.Coin.Value,
			Decimals:   token.Decimals,
		})
	}
	return balances, nil
}

func (c *Client) sequenceNumber(ctx context.Context, address string) (string, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s", c.base, url.PathEscape(address))
	var info accountInfo
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, nil, &info); err != nil {
		return "", cerr.Wrap(cerr.CodeSubmission, "fetch aptos account", err)
	}
	if info.SequenceNumber == "" {
		return "", cerr.New(cerr.CodeSubmission, "aptos account has no sequence number")
	}
	return info.SequenceNumber, nil
}

func (c *Client) gasUnitPrice(ctx context.Context) (string, error) {
	var estimate struct {
		GasEstimate int64 `json:"gas_estimate"`
	}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, c.base+"/estimate_gas_price", nil, nil, &estimate); err != nil {
		return "", cerr.Wrap(cerr.CodeSubmission, "estimate aptos gas price", err)
	}
	if estimate.GasEstimate <= 0 {
		return "", cerr.New(cerr.CodeSubmission, "aptos gas estimate unavailable")
	}
	return strconv.FormatInt(estimate.GasEstimate, 10), nil
}

type rawTransaction struct {
	Sender                  string         `json:"sender"`
	SequenceNumber          string         `json:"sequence_number"`
	MaxGasAmount            string         `json:"max_gas_amount"`
	GasUnitPrice            string         `json:"gas_unit_price"`
	ExpirationTimestampSecs string         `json:"expiration_timestamp_secs"`
	Payload                 entryFunction  `json:"payload"`
	Signature               *ed25519SigRef `json:"signature,omitempty"`
}

type entryFunction struct {
	Type          string   `json:"type"`
	Function      string   `json:"function"`
	TypeArguments []string `json:"type_arguments"`
	Arguments     []any    `json:"arguments"`
}

type ed25519SigRef struct {
	Type      string `json:"type"`
	PublicKey string `json:"public_key"`
	Signature string `json:"signature"`
}

// Prepare assembles the raw transaction and asks the fullnode for the
// canonical signing message. Type argument order is preserved exactly as
// given; reordering changes the on-chain call.
func (c *Client) Prepare(ctx context.Context, tx *execution.UnsignedTransaction) (*execution.PreparedTransaction, error) {
	if !strings.Contains(tx.Function, "::") {
		return nil, cerr.New(cerr.CodeUsage, fmt.Sprintf("aptos function must be fully qualified: %s", tx.Function))
	}

	seq, err := c.sequenceNumber(ctx, tx.Sender)
	if err != nil {
		return nil, err
	}
	gasPrice, err := c.gasUnitPrice(ctx)
	if err != nil {
		return nil, err
	}

	args := tx.Args
	if args == nil {
		args = []any{}
	}
	typeArgs := tx.TypeArgs
	if typeArgs == nil {
		typeArgs = []string{}
	}

	raw := rawTransaction{
		Sender:                  tx.Sender,
		SequenceNumber:          seq,
		MaxGasAmount:            maxGasAmount,
		GasUnitPrice:            gasPrice,
		ExpirationTimestampSecs: strconv.FormatInt(c.now().Unix()+expirySeconds, 10),
		Payload: entryFunction{
			Type:          "entry_function_payload",
			Function:      tx.Function,
			TypeArguments: typeArgs,
			Arguments:     args,
		},
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeInternal, "encode aptos transaction", err)
	}

	var signingMessage string
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.base+"/transactions/encode_submission", body, nil, &signingMessage); err != nil {
		return nil, cerr.Wrap(cerr.CodeSubmission, "encode aptos signing message", err)
	}
	if signingMessage == "" {
		return nil, cerr.New(cerr.CodeSubmission, "fullnode returned empty signing message")
	}

	return &execution.PreparedTransaction{
		SigningPayload: strings.TrimPrefix(signingMessage, "0x"),
		HashFunction:   custody.HashNotApplicable,
		Raw:            body,
	}, nil
}

// Submit attaches the ed25519 authenticator and posts the transaction. A 4xx
// from the fullnode is a terminal rejection and its message is preserved.
func (c *Client) Submit(ctx context.Context, prep *execution.PreparedTransaction, signed execution.SignedTransaction) (string, error) {
	var raw rawTransaction
	if err := json.Unmarshal(prep.Raw, &raw); err != nil {
		return "", cerr.Wrap(cerr.CodeInternal, "decode prepared aptos transaction", err)
	}
	raw.Signature = &ed25519SigRef{
		Type:      "ed25519_signature",
		PublicKey: prefixHex(signed.PublicKey),
		Signature: prefixHex(signed.Signature),
	}

	body, err := json.Marshal(raw)
	if err != nil {
		return "", cerr.Wrap(cerr.CodeInternal, "encode signed aptos transaction", err)
	}

	var resp struct {
		Hash string `json:"hash"`
	}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.base+"/transactions", body, nil, &resp); err != nil {
		var status *httpx.StatusError
		if errors.As(err, &status) {
			return "", cerr.Wrap(cerr.CodeSubmission, "fullnode rejected transaction", status)
		}
		return "", cerr.Wrap(cerr.CodeSubmission, "submit aptos transaction", err)
	}
	if resp.Hash == "" {
		return "", cerr.New(cerr.CodeSubmission, "fullnode returned no transaction hash")
	}
	return resp.Hash, nil
}

// Receipt polls the transaction by hash. A 404 means the transaction has not
// reached the node yet and counts as pending.
func (c *Client) Receipt(ctx context.Context, hash string) (*execution.Receipt, error) {
	endpoint := fmt.Sprintf("%s/transactions/by_hash/%s", c.base, url.PathEscape(hash))
	var tx struct {
		Type     string `json:"type"`
		Hash     string `json:"hash"`
		Success  bool   `json:"success"`
		VMStatus string `json:"vm_status"`
	}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, nil, &tx); err != nil {
		var status *httpx.StatusError
		if errors.As(err, &status) && status.Status == http.StatusNotFound {
			return &execution.Receipt{Hash: hash, Pending: true}, nil
		}
		return nil, cerr.Wrap(cerr.CodeUnavailable, "fetch aptos transaction", err)
	}

	if tx.Type == "pending_transaction" {
		return &execution.Receipt{Hash: hash, Pending: true}, nil
	}
	return &execution.Receipt{
		Hash:     hash,
		Success:  tx.Success,
		VMStatus: tx.VMStatus,
	}, nil
}

// View calls a Move view function and returns its raw return values.
func (c *Client) View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error) {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(map[string]any{
		"function":       function,
		"type_arguments": typeArgs,
		"arguments":      args,
	})
	if err != nil {
		return nil, cerr.Wrap(cerr.CodeInternal, "encode view request", err)
	}

	var values []json.RawMessage
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, c.base+"/view", body, nil, &values); err != nil {
		return nil, cerr.Wrap(cerr.CodeUnavailable, "call aptos view function", err)
	}
	return values, nil
}

func prefixHex(v string) string {
	if strings.HasPrefix(v, "0x") {
		return v
	}
	return "0x" + v
}
