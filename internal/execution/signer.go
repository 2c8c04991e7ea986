package execution

import (
	"context"

	"github.com/nmorales/custos/internal/custody"
)

// CustodySigner signs prepared payloads through the custody service. The
// payload is already the chain's canonical signing message, so the service
// receives it hex-encoded together with the hash function the chain expects.
type CustodySigner struct {
	client *custody.Client
}

func NewCustodySigner(client *custody.Client) *CustodySigner {
	return &CustodySigner{client: client}
}

func (s *CustodySigner) Sign(ctx context.Context, walletID, address string, prep *PreparedTransaction) (SignedTransaction, error) {
	resp, err := s.client.Sign(ctx, custody.SignRequest{
		WalletID:     walletID,
		Address:      address,
		Payload:      prep.SigningPayload,
		Encoding:     custody.EncodingHex,
		HashFunction: prep.HashFunction,
	})
	if err != nil {
		return SignedTransaction{}, err
	}
	return SignedTransaction{
		Signature: resp.Signature,
		PublicKey: resp.PublicKey,
	}, nil
}
