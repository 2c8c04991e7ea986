package app

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmorales/custos/internal/config"
	"github.com/nmorales/custos/internal/execution"
)

type scriptedChain struct {
	receipt execution.Receipt
}

func (c *scriptedChain) Prepare(context.Context, *execution.UnsignedTransaction) (*execution.PreparedTransaction, error) {
	return &execution.PreparedTransaction{SigningPayload: "deadbeef", HashFunction: "not_applicable"}, nil
}

func (c *scriptedChain) Submit(context.Context, *execution.PreparedTransaction, execution.SignedTransaction) (string, error) {
	return "0xhash", nil
}

func (c *scriptedChain) Receipt(context.Context, string) (*execution.Receipt, error) {
	r := c.receipt
	return &r, nil
}

type scriptedSigner struct {
	signed execution.SignedTransaction
}

func (s *scriptedSigner) Sign(context.Context, string, string, *execution.PreparedTransaction) (execution.SignedTransaction, error) {
	return s.signed, nil
}

func executionState(chain execution.ChainClient, signer execution.Signer) (*runtimeState, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	state := &runtimeState{
		runner: NewRunnerWithWriters(&stdout, &stderr),
		settings: config.Settings{
			OutputMode:     "json",
			Timeout:        time.Second,
			ConfirmTimeout: 50 * time.Millisecond,
		},
	}
	state.submitter = execution.NewSubmitter(
		map[string]execution.ChainClient{"aptos": chain},
		signer, nil, 50*time.Millisecond, time.Millisecond,
	)
	return state, &stdout
}

type resultEnvelope struct {
	Success bool                  `json:"success"`
	Data    resultEnvelopePayload `json:"data"`
}

type resultEnvelopePayload struct {
	Success         bool   `json:"success"`
	Status          string `json:"status"`
	TransactionHash string `json:"transaction_hash"`
	Error           string `json:"error"`
}

func TestRunExecutionReportsOnChainAbortAsResult(t *testing.T) {
	chain := &scriptedChain{receipt: execution.Receipt{Hash: "0xhash", Success: false, VMStatus: "Move abort in 0x1::coin"}}
	state, stdout := executionState(chain, &scriptedSigner{signed: execution.SignedTransaction{Signature: "sig", PublicKey: "pub"}})

	tx := &execution.UnsignedTransaction{ChainSlug: "aptos", Sender: "0xsender", Function: "0x1::coin::transfer", Args: []any{}}
	if err := state.runExecution(&cobra.Command{Use: "swap"}, "w-1", tx); err != nil {
		t.Fatalf("failed submission must be reported, not returned: %v", err)
	}

	var env resultEnvelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, stdout.String())
	}
	if env.Data.Success || env.Data.Status != "failed" {
		t.Errorf("result = %+v, want failed outcome", env.Data)
	}
	if env.Data.TransactionHash != "0xhash" {
		t.Errorf("hash = %q, want the submitted hash kept visible", env.Data.TransactionHash)
	}
	if env.Data.Error != "Move abort in 0x1::coin" {
		t.Errorf("error = %q, want vm status surfaced", env.Data.Error)
	}
}

func TestRunExecutionReportsMissingSignatureAsResult(t *testing.T) {
	chain := &scriptedChain{receipt: execution.Receipt{Hash: "0xhash", Success: true}}
	state, stdout := executionState(chain, &scriptedSigner{})

	tx := &execution.UnsignedTransaction{ChainSlug: "aptos", Sender: "0xsender", Function: "0x1::coin::transfer", Args: []any{}}
	if err := state.runExecution(&cobra.Command{Use: "swap"}, "w-1", tx); err != nil {
		t.Fatalf("signing failure must be reported, not returned: %v", err)
	}

	var env resultEnvelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, stdout.String())
	}
	if env.Data.Success || env.Data.Status != "failed" {
		t.Errorf("result = %+v, want failed outcome", env.Data)
	}
	if env.Data.TransactionHash != "" {
		t.Errorf("hash = %q, nothing was submitted", env.Data.TransactionHash)
	}
	if !strings.Contains(env.Data.Error, "no signature") {
		t.Errorf("error = %q, want the signing failure reason", env.Data.Error)
	}
}

func TestRunExecutionEmitsConfirmedResult(t *testing.T) {
	chain := &scriptedChain{receipt: execution.Receipt{Hash: "0xhash", Success: true}}
	state, stdout := executionState(chain, &scriptedSigner{signed: execution.SignedTransaction{Signature: "sig", PublicKey: "pub"}})

	tx := &execution.UnsignedTransaction{ChainSlug: "aptos", Sender: "0xsender", Function: "0x1::coin::transfer", Args: []any{}}
	if err := state.runExecution(&cobra.Command{Use: "swap"}, "w-1", tx); err != nil {
		t.Fatalf("runExecution: %v", err)
	}

	var env resultEnvelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, stdout.String())
	}
	if !env.Data.Success || env.Data.Status != "confirmed" || env.Data.TransactionHash != "0xhash" {
		t.Errorf("result = %+v, want confirmed with hash", env.Data)
	}
}
