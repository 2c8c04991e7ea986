package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nmorales/custos/internal/cache"
	cerr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/execution"
	"github.com/nmorales/custos/internal/model"
	"github.com/nmorales/custos/internal/registry"
)

// Status mirrors the on-chain strategy state. Active and Paused convert
// freely into each other; Completed and Cancelled are terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition validates a lifecycle move before any transaction is built.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case StatusActive:
		return from == StatusPaused
	case StatusPaused:
		return from == StatusActive
	case StatusCancelled:
		return from == StatusActive || from == StatusPaused
	default:
		return false
	}
}

// statusFromCode decodes the registry's u8 status encoding.
func statusFromCode(code string) (Status, error) {
	switch code {
	case "0":
		return StatusActive, nil
	case "1":
		return StatusPaused, nil
	case "2":
		return StatusCompleted, nil
	case "3":
		return StatusCancelled, nil
	default:
		return "", cerr.New(cerr.CodeInternal, fmt.Sprintf("unknown on-chain strategy status %q", code))
	}
}

// ViewCaller reads Move view functions; the Aptos fullnode client satisfies
// it.
type ViewCaller interface {
	View(ctx context.Context, function string, typeArgs []string, args []any) ([]json.RawMessage, error)
}

// Service mirrors and mutates strategies in the on-chain registry. All
// mutations run through the standard execution pipeline. Reads are served
// from the mirror cache when one is configured; transitions always re-read
// the chain before validating.
type Service struct {
	view      ViewCaller
	submitter *execution.Submitter
	mirror    *cache.Store
	mirrorTTL time.Duration
}

func NewService(view ViewCaller, submitter *execution.Submitter, mirror *cache.Store, mirrorTTL time.Duration) *Service {
	return &Service{view: view, submitter: submitter, mirror: mirror, mirrorTTL: mirrorTTL}
}

type onChainStrategy struct {
	ID            string `json:"id"`
	Owner         string `json:"owner"`
	StrategyType  string `json:"strategy_type"`
	Status        string `json:"status"`
	IntervalSecs  string `json:"interval_secs"`
	Executions    string `json:"executions"`
	MaxExecutions string `json:"max_executions"`
	Params        string `json:"params"`
}

type mirrorEntry struct {
	View   model.StrategyView
	Status Status
}

// Get reads one strategy, serving the mirror cache when it is live.
func (s *Service) Get(ctx context.Context, owner, strategyID string) (model.StrategyView, Status, error) {
	return s.load(ctx, owner, strategyID, false)
}

func (s *Service) load(ctx context.Context, owner, strategyID string, force bool) (model.StrategyView, Status, error) {
	if s.mirror == nil {
		return s.fetch(ctx, owner, strategyID)
	}

	key := cache.Key("strategy", struct{ Owner, ID string }{owner, strategyID})
	value, _, err := s.mirror.GetOrFetch(ctx, key, s.mirrorTTL, force, func(ctx context.Context) (any, error) {
		view, status, err := s.fetch(ctx, owner, strategyID)
		if err != nil {
			return nil, err
		}
		return mirrorEntry{View: view, Status: status}, nil
	})
	if err != nil {
		return model.StrategyView{}, "", err
	}
	entry, ok := value.(mirrorEntry)
	if !ok {
		return model.StrategyView{}, "", cerr.New(cerr.CodeInternal, "strategy mirror cache holds unexpected value")
	}
	return entry.View, entry.Status, nil
}

// fetch reads one strategy from the on-chain registry.
func (s *Service) fetch(ctx context.Context, owner, strategyID string) (model.StrategyView, Status, error) {
	values, err := s.view.View(ctx, registry.ViewStrategyGet, nil, []any{owner, strategyID})
	if err != nil {
		return model.StrategyView{}, "", err
	}
	if len(values) == 0 {
		return model.StrategyView{}, "", cerr.New(cerr.CodeUsage, fmt.Sprintf("strategy %s not found for %s", strategyID, owner))
	}

	var raw onChainStrategy
	if err := json.Unmarshal(values[0], &raw); err != nil {
		return model.StrategyView{}, "", cerr.Wrap(cerr.CodeInternal, "decode strategy view", err)
	}

	status, err := statusFromCode(raw.Status)
	if err != nil {
		return model.StrategyView{}, "", err
	}

	view := model.StrategyView{
		ID:            raw.ID,
		Owner:         raw.Owner,
		Type:          raw.StrategyType,
		Status:        string(status),
		IntervalSecs:  parseInt(raw.IntervalSecs),
		Executions:    parseInt(raw.Executions),
		MaxExecutions: parseInt(raw.MaxExecutions),
		Params:        raw.Params,
	}
	return view, status, nil
}

func parseInt(v string) int64 {
	n, _ := strconv.ParseInt(v, 10, 64)
	return n
}

func (s *Service) transition(ctx context.Context, walletID, sender, strategyID string, to Status, function string) (*execution.Submission, error) {
	// A cached mirror is fine for reads but not for gating a transition.
	_, current, err := s.load(ctx, sender, strategyID, true)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current, to) {
		return nil, cerr.New(cerr.CodeBlocked, fmt.Sprintf("strategy %s is %s and cannot become %s", strategyID, current, to))
	}

	tx := &execution.UnsignedTransaction{
		ChainSlug: "aptos",
		Sender:    sender,
		Function:  function,
		Args:      []any{strategyID},
	}
	return s.submitter.Execute(ctx, walletID, tx)
}

// Pause suspends an active strategy.
func (s *Service) Pause(ctx context.Context, walletID, sender, strategyID string) (*execution.Submission, error) {
	return s.transition(ctx, walletID, sender, strategyID, StatusPaused, registry.FnStrategyPause)
}

// Resume reactivates a paused strategy.
func (s *Service) Resume(ctx context.Context, walletID, sender, strategyID string) (*execution.Submission, error) {
	return s.transition(ctx, walletID, sender, strategyID, StatusActive, registry.FnStrategyResume)
}

// Cancel terminates a strategy permanently.
func (s *Service) Cancel(ctx context.Context, walletID, sender, strategyID string) (*execution.Submission, error) {
	return s.transition(ctx, walletID, sender, strategyID, StatusCancelled, registry.FnStrategyCancel)
}
