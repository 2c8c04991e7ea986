package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	cerr "github.com/nmorales/custos/internal/errors"
)

// Journal persists submission records. Every state transition is written
// through before the pipeline proceeds, so a crash never loses a hash.
type Journal interface {
	Record(ctx context.Context, sub *Submission) error
}

// Submitter drives a built transaction through signing, submission, and
// confirmation. Confirmation polls at a fixed interval until the timeout; a
// timeout is reported as TimedOut, never Failed, because the transaction may
// still land and its hash stays valid.
type Submitter struct {
	chains         map[string]ChainClient
	signer         Signer
	journal        Journal
	confirmTimeout time.Duration
	pollInterval   time.Duration
	now            func() time.Time

	// OnConfirmed runs after a confirmed transaction, before the result is
	// returned. Used to invalidate stale portfolio entries.
	OnConfirmed func(sub *Submission)
}

func NewSubmitter(clients map[string]ChainClient, signer Signer, journal Journal, confirmTimeout, pollInterval time.Duration) *Submitter {
	if confirmTimeout <= 0 {
		confirmTimeout = 30 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Submitter{
		chains:         clients,
		signer:         signer,
		journal:        journal,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
		now:            time.Now,
	}
}

func (s *Submitter) record(ctx context.Context, sub *Submission) {
	sub.UpdatedAt = s.now()
	if s.journal != nil {
		_ = s.journal.Record(ctx, sub)
	}
}

func (s *Submitter) fail(ctx context.Context, sub *Submission, err error) (*Submission, error) {
	sub.State = StateFailed
	sub.Error = cerr.Deepest(err, "execution failed")
	s.record(ctx, sub)
	return sub, err
}

// Execute runs the full pipeline for one unsigned transaction. The returned
// submission always reflects the final recorded state; err is nil for
// Confirmed and TimedOut outcomes.
func (s *Submitter) Execute(ctx context.Context, walletID string, tx *UnsignedTransaction) (*Submission, error) {
	sub := &Submission{
		ID:        uuid.NewString(),
		ChainSlug: tx.ChainSlug,
		Function:  tx.Function,
		Sender:    tx.Sender,
		State:     StateBuilt,
		CreatedAt: s.now(),
	}
	s.record(ctx, sub)

	client, ok := s.chains[tx.ChainSlug]
	if !ok {
		return s.fail(ctx, sub, cerr.New(cerr.CodeUnsupported, fmt.Sprintf("no execution client for chain %s", tx.ChainSlug)))
	}

	prep, err := client.Prepare(ctx, tx)
	if err != nil {
		return s.fail(ctx, sub, err)
	}

	sub.State = StateSigningRequested
	s.record(ctx, sub)

	signed, err := s.signer.Sign(ctx, walletID, tx.Sender, prep)
	if err != nil {
		return s.fail(ctx, sub, err)
	}
	if signed.Signature == "" {
		return s.fail(ctx, sub, cerr.New(cerr.CodeSigner, "failed to sign transaction: signer returned no signature"))
	}

	sub.State = StateSigned
	s.record(ctx, sub)

	hash, err := client.Submit(ctx, prep, signed)
	if err != nil {
		return s.fail(ctx, sub, err)
	}

	// The hash is persisted before any confirmation work so it survives a
	// timeout or crash.
	sub.TransactionHash = hash
	sub.State = StateSubmitted
	s.record(ctx, sub)

	return s.confirm(ctx, client, sub)
}

func (s *Submitter) confirm(ctx context.Context, client ChainClient, sub *Submission) (*Submission, error) {
	deadline := s.now().Add(s.confirmTimeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.Receipt(ctx, sub.TransactionHash)
		switch {
		case err != nil && !cerr.Retryable(err):
			return s.fail(ctx, sub, err)
		case err == nil && !receipt.Pending:
			if receipt.Success {
				sub.State = StateConfirmed
				s.record(ctx, sub)
				if s.OnConfirmed != nil {
					s.OnConfirmed(sub)
				}
				return sub, nil
			}
			reason := receipt.VMStatus
			if reason == "" {
				reason = "transaction aborted on chain"
			}
			return s.fail(ctx, sub, cerr.New(cerr.CodeSubmission, reason))
		}

		if !s.now().Add(s.pollInterval).Before(deadline) {
			sub.State = StateTimedOut
			sub.Error = ""
			s.record(ctx, sub)
			return sub, nil
		}

		select {
		case <-ctx.Done():
			sub.State = StateTimedOut
			s.record(ctx, sub)
			return sub, nil
		case <-ticker.C:
		}
	}
}

// Repoll re-checks a previously timed-out submission by hash and updates the
// journal if the transaction has since landed.
func (s *Submitter) Repoll(ctx context.Context, sub *Submission) (*Submission, error) {
	if sub.TransactionHash == "" {
		return nil, cerr.New(cerr.CodeUsage, "submission has no transaction hash to poll")
	}
	client, ok := s.chains[sub.ChainSlug]
	if !ok {
		return nil, cerr.New(cerr.CodeUnsupported, fmt.Sprintf("no execution client for chain %s", sub.ChainSlug))
	}

	receipt, err := client.Receipt(ctx, sub.TransactionHash)
	if err != nil {
		return nil, err
	}
	if receipt.Pending {
		return sub, nil
	}
	if receipt.Success {
		sub.State = StateConfirmed
		sub.Error = ""
		s.record(ctx, sub)
		if s.OnConfirmed != nil {
			s.OnConfirmed(sub)
		}
		return sub, nil
	}
	sub.State = StateFailed
	sub.Error = receipt.VMStatus
	s.record(ctx, sub)
	return sub, nil
}
