package custody

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/httpx"
)

// Encoding and hash-function values accepted by the signing endpoint.
// Ed25519 chains sign the raw canonical message, so they pass
// HashNotApplicable; EVM payloads are keccak256-hashed before signing.
const (
	EncodingHex = "hex"

	HashNotApplicable = "not_applicable"
	HashKeccak256     = "keccak256"
)

type Wallet struct {
	ID     string `json:"wallet_id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type Account struct {
	WalletID string `json:"wallet_id"`
	Address  string `json:"address"`
	Chain    string `json:"chain,omitempty"`
}

// SignRequest asks the custody service to produce a signature over an
// already-encoded payload. The service never returns key material beyond the
// public key; private keys stay inside custody.
type SignRequest struct {
	WalletID     string `json:"wallet_id"`
	Address      string `json:"address"`
	Payload      string `json:"payload"`
	Encoding     string `json:"encoding"`
	HashFunction string `json:"hash_function"`
}

type SignResponse struct {
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

type Client struct {
	http   *httpx.Client
	base   string
	appID  string
	apiKey string
}

func NewClient(http *httpx.Client, base, appID, apiKey string) *Client {
	return &Client{
		http:   http,
		base:   strings.TrimRight(base, "/"),
		appID:  appID,
		apiKey: apiKey,
	}
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.appID != "" {
		h["X-App-ID"] = c.appID
	}
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	return h
}

// ListWallets returns every custody wallet owned by the user.
func (c *Client) ListWallets(ctx context.Context, userID string) ([]Wallet, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, cerr.New(cerr.CodeUsage, "user id is required")
	}

	endpoint := fmt.Sprintf("%s/v1/wallets?user_id=%s", c.base, url.QueryEscape(userID))
	var body struct {
		Wallets []Wallet `json:"wallets"`
	}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, c.headers(), &body); err != nil {
		return nil, mapCustodyError("list wallets", err)
	}
	return body.Wallets, nil
}

// WalletAccounts returns the account addresses held by a wallet, one per
// address-format family the wallet supports.
func (c *Client) WalletAccounts(ctx context.Context, walletID string) ([]Account, error) {
	if strings.TrimSpace(walletID) == "" {
		return nil, cerr.New(cerr.CodeUsage, "wallet id is required")
	}

	endpoint := fmt.Sprintf("%s/v1/wallets/%s/accounts", c.base, url.PathEscape(walletID))
	var body struct {
		Accounts []Account `json:"accounts"`
	}
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodGet, endpoint, nil, c.headers(), &body); err != nil {
		return nil, mapCustodyError("list wallet accounts", err)
	}
	return body.Accounts, nil
}

// Sign submits a payload to the custody signing endpoint. Connectivity
// failures map to a retryable signer error; an explicit 4xx rejection is
// terminal and carries the service's own message.
func (c *Client) Sign(ctx context.Context, req SignRequest) (SignResponse, error) {
	if req.WalletID == "" || req.Address == "" {
		return SignResponse{}, cerr.New(cerr.CodeUsage, "signing request requires wallet id and address")
	}
	if req.Payload == "" {
		return SignResponse{}, cerr.New(cerr.CodeUsage, "signing request requires a payload")
	}
	if req.Encoding == "" {
		req.Encoding = EncodingHex
	}
	if req.HashFunction == "" {
		req.HashFunction = HashNotApplicable
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return SignResponse{}, cerr.Wrap(cerr.CodeInternal, "encode signing request", err)
	}

	endpoint := c.base + "/v1/sign"
	var resp SignResponse
	if _, err := httpx.DoBodyJSON(ctx, c.http, http.MethodPost, endpoint, payload, c.headers(), &resp); err != nil {
		return SignResponse{}, mapSignError(err)
	}
	return resp, nil
}

func mapCustodyError(op string, err error) error {
	if typed, ok := cerr.As(err); ok && typed.Code == cerr.CodeAuth {
		return err
	}
	return cerr.Wrap(cerr.CodeResolution, op+" failed", err)
}

func mapSignError(err error) error {
	var status *httpx.StatusError
	if errors.As(err, &status) {
		return cerr.Wrap(cerr.CodeSignerRejected, "custody service rejected signing request", status)
	}
	if typed, ok := cerr.As(err); ok {
		switch typed.Code {
		case cerr.CodeAuth:
			return err
		case cerr.CodeUnavailable, cerr.CodeRateLimited:
			return cerr.Wrap(cerr.CodeSigner, "custody signing service unreachable", err)
		}
	}
	return cerr.Wrap(cerr.CodeSigner, "signing request failed", err)
}
