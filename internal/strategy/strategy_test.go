package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nmorales/custos/internal/cache"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/execution"
	"github.com/nmorales/custos/internal/registry"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusActive, StatusPaused, true},
		{StatusPaused, StatusActive, true},
		{StatusActive, StatusCancelled, true},
		{StatusPaused, StatusCancelled, true},
		{StatusCompleted, StatusActive, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusActive, false},
		{StatusCancelled, StatusPaused, false},
		{StatusActive, StatusActive, false},
		{StatusActive, StatusCompleted, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

type fakeView struct {
	status   string
	notFound bool
	lastFn   string
	calls    int
}

func (f *fakeView) View(_ context.Context, function string, _ []string, _ []any) ([]json.RawMessage, error) {
	f.lastFn = function
	f.calls++
	if f.notFound {
		return nil, nil
	}
	body := fmt.Sprintf(`{"id":"7","owner":"0xowner","strategy_type":"dca","status":"%s","interval_secs":"86400","executions":"3","max_executions":"10","params":""}`, f.status)
	return []json.RawMessage{json.RawMessage(body)}, nil
}

type fakeChain struct {
	lastFunction string
}

func (f *fakeChain) Prepare(_ context.Context, tx *execution.UnsignedTransaction) (*execution.PreparedTransaction, error) {
	f.lastFunction = tx.Function
	return &execution.PreparedTransaction{SigningPayload: "00", HashFunction: "not_applicable"}, nil
}

func (f *fakeChain) Submit(context.Context, *execution.PreparedTransaction, execution.SignedTransaction) (string, error) {
	return "0xhash", nil
}

func (f *fakeChain) Receipt(context.Context, string) (*execution.Receipt, error) {
	return &execution.Receipt{Hash: "0xhash", Success: true}, nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(context.Context, string, string, *execution.PreparedTransaction) (execution.SignedTransaction, error) {
	return execution.SignedTransaction{Signature: "sig", PublicKey: "pub"}, nil
}

func newTestService(view *fakeView, chain *fakeChain) *Service {
	submitter := execution.NewSubmitter(
		map[string]execution.ChainClient{"aptos": chain},
		fakeSigner{}, nil,
		50*time.Millisecond, time.Millisecond,
	)
	return NewService(view, submitter, nil, 0)
}

func TestGetDecodesOnChainStrategy(t *testing.T) {
	service := newTestService(&fakeView{status: "1"}, &fakeChain{})
	view, status, err := service.Get(context.Background(), "0xowner", "7")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != StatusPaused || view.Status != "paused" {
		t.Errorf("status = %s", status)
	}
	if view.IntervalSecs != 86400 || view.Executions != 3 || view.MaxExecutions != 10 {
		t.Errorf("counters wrong: %+v", view)
	}
}

func TestGetServesMirrorCache(t *testing.T) {
	view := &fakeView{status: "0"}
	chain := &fakeChain{}
	submitter := execution.NewSubmitter(
		map[string]execution.ChainClient{"aptos": chain},
		fakeSigner{}, nil,
		50*time.Millisecond, time.Millisecond,
	)
	service := NewService(view, submitter, cache.New(nil), 5*time.Minute)

	for i := 0; i < 3; i++ {
		if _, _, err := service.Get(context.Background(), "0xowner", "7"); err != nil {
			t.Fatalf("Get #%d: %v", i+1, err)
		}
	}
	if view.calls != 1 {
		t.Fatalf("view called %d times, want 1 (mirror cache)", view.calls)
	}

	// Transitions must never trust the mirror.
	if _, err := service.Pause(context.Background(), "w-1", "0xowner", "7"); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if view.calls != 2 {
		t.Fatalf("view called %d times, want 2 (transition re-reads)", view.calls)
	}
}

func TestGetMissingStrategy(t *testing.T) {
	service := newTestService(&fakeView{notFound: true}, &fakeChain{})
	_, _, err := service.Get(context.Background(), "0xowner", "404")
	typed, ok := cerr.As(err)
	if !ok || typed.Code != cerr.CodeUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestPauseActiveStrategy(t *testing.T) {
	chain := &fakeChain{}
	service := newTestService(&fakeView{status: "0"}, chain)

	sub, err := service.Pause(context.Background(), "w-1", "0xowner", "7")
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if sub.State != execution.StateConfirmed {
		t.Errorf("state = %s", sub.State)
	}
	if chain.lastFunction != registry.FnStrategyPause {
		t.Errorf("function = %s", chain.lastFunction)
	}
}

func TestResumeRequiresPaused(t *testing.T) {
	service := newTestService(&fakeView{status: "0"}, &fakeChain{})
	_, err := service.Resume(context.Background(), "w-1", "0xowner", "7")
	typed, ok := cerr.As(err)
	if !ok || typed.Code != cerr.CodeBlocked {
		t.Fatalf("expected blocked transition, got %v", err)
	}
}

func TestCancelIsOneWay(t *testing.T) {
	chain := &fakeChain{}
	service := newTestService(&fakeView{status: "1"}, chain)

	if _, err := service.Cancel(context.Background(), "w-1", "0xowner", "7"); err != nil {
		t.Fatalf("Cancel from paused: %v", err)
	}
	if chain.lastFunction != registry.FnStrategyCancel {
		t.Errorf("function = %s", chain.lastFunction)
	}

	cancelled := newTestService(&fakeView{status: "3"}, &fakeChain{})
	_, err := cancelled.Resume(context.Background(), "w-1", "0xowner", "7")
	typed, ok := cerr.As(err)
	if !ok || typed.Code != cerr.CodeBlocked {
		t.Fatalf("terminal strategy must block transitions, got %v", err)
	}
}

func TestCompletedStrategyBlocksEverything(t *testing.T) {
	service := newTestService(&fakeView{status: "2"}, &fakeChain{})
	for name, op := range map[string]func() error{
		"pause":  func() error { _, err := service.Pause(context.Background(), "w-1", "0xowner", "7"); return err },
		"resume": func() error { _, err := service.Resume(context.Background(), "w-1", "0xowner", "7"); return err },
		"cancel": func() error { _, err := service.Cancel(context.Background(), "w-1", "0xowner", "7"); return err },
	} {
		err := op()
		typed, ok := cerr.As(err)
		if !ok || typed.Code != cerr.CodeBlocked {
			t.Errorf("%s on completed strategy: got %v, want blocked", name, err)
		}
	}
}
