package execution

import (
	"context"
	"encoding/json"
	"time"
)

// State tracks a submission through the pipeline. Transitions are linear:
// Built -> SigningRequested -> Signed -> Submitted, then exactly one of
// Confirmed, Failed, or TimedOut. TimedOut is not a failure: the transaction
// may still land, and the recorded hash stays valid for re-polling.
type State string

const (
	StateBuilt            State = "built"
	StateSigningRequested State = "signing_requested"
	StateSigned           State = "signed"
	StateSubmitted        State = "submitted"
	StateConfirmed        State = "confirmed"
	StateFailed           State = "failed"
	StateTimedOut         State = "timed_out"
)

func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateFailed, StateTimedOut:
		return true
	default:
		return false
	}
}

// UnsignedTransaction is a chain-agnostic call description: a fully qualified
// function identifier, ordered type arguments, and positional arguments.
type UnsignedTransaction struct {
	ChainSlug string   `json:"chain"`
	Sender    string   `json:"sender"`
	Function  string   `json:"function"`
	TypeArgs  []string `json:"type_args,omitempty"`
	Args      []any    `json:"args"`
}

// PreparedTransaction is the chain-specific encoding of an unsigned
// transaction: the canonical payload the signer must sign, plus the raw body
// the chain expects back at submission time.
type PreparedTransaction struct {
	SigningPayload string
	HashFunction   string
	Raw            json.RawMessage
}

// SignedTransaction pairs the signature with the public key that produced
// it, both hex-encoded.
type SignedTransaction struct {
	Signature string
	PublicKey string
}

// Receipt is the chain's view of a submitted transaction.
type Receipt struct {
	Hash     string
	Pending  bool
	Success  bool
	VMStatus string
}

// Signer produces a signature over a prepared payload. The custody-backed
// implementation never exposes private keys.
type Signer interface {
	Sign(ctx context.Context, walletID, address string, prep *PreparedTransaction) (SignedTransaction, error)
}

// ChainClient is the chain-RPC surface the submitter drives: encode the
// canonical signing payload, submit the signed transaction, poll the receipt.
type ChainClient interface {
	Prepare(ctx context.Context, tx *UnsignedTransaction) (*PreparedTransaction, error)
	Submit(ctx context.Context, prep *PreparedTransaction, signed SignedTransaction) (string, error)
	Receipt(ctx context.Context, hash string) (*Receipt, error)
}

// Submission is the persisted record of one pipeline run.
type Submission struct {
	ID              string
	ChainSlug       string
	Function        string
	Sender          string
	TransactionHash string
	State           State
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
