package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmorales/custos/internal/execution"
)

func (s *runtimeState) newStrategyCommand() *cobra.Command {
	root := &cobra.Command{Use: "strategy", Short: "Manage on-chain strategy lifecycle"}
	root.AddCommand(s.newStrategyShowCommand())
	root.AddCommand(s.newStrategyTransitionCommand("pause", "Pause an active strategy", s.pauseStrategy))
	root.AddCommand(s.newStrategyTransitionCommand("resume", "Resume a paused strategy", s.resumeStrategy))
	root.AddCommand(s.newStrategyTransitionCommand("cancel", "Cancel a strategy permanently", s.cancelStrategy))
	return root
}

func (s *runtimeState) pauseStrategy(ctx context.Context, walletID, owner, strategyID string) (*execution.Submission, error) {
	return s.strategies.Pause(ctx, walletID, owner, strategyID)
}

func (s *runtimeState) resumeStrategy(ctx context.Context, walletID, owner, strategyID string) (*execution.Submission, error) {
	return s.strategies.Resume(ctx, walletID, owner, strategyID)
}

func (s *runtimeState) cancelStrategy(ctx context.Context, walletID, owner, strategyID string) (*execution.Submission, error) {
	return s.strategies.Cancel(ctx, walletID, owner, strategyID)
}

func (s *runtimeState) newStrategyShowCommand() *cobra.Command {
	var userID, strategyID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a strategy's on-chain state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			_, owner, err := s.executionIdentity(ctx, userID, "", "aptos")
			if err != nil {
				return err
			}

			start := time.Now()
			view, _, err := s.strategies.Get(ctx, owner, strategyID)
			upstreams := upstreamFor("aptos", err, start)
			s.captureDiagnostics(nil, upstreams, false)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), view, nil, cacheMetaBypass(), upstreams, false)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Custody user id")
	cmd.Flags().StringVar(&strategyID, "id", "", "Strategy id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

type transitionFunc func(ctx context.Context, walletID, owner, strategyID string) (*execution.Submission, error)

func (s *runtimeState) newStrategyTransitionCommand(use, short string, transition transitionFunc) *cobra.Command {
	var userID, walletFlag, strategyID string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			budget := s.settings.Timeout + s.settings.ConfirmTimeout
			ctx, cancel := context.WithTimeout(context.Background(), budget)
			defer cancel()

			walletID, owner, err := s.executionIdentity(ctx, userID, walletFlag, "aptos")
			if err != nil {
				return err
			}

			start := time.Now()
			sub, err := transition(ctx, walletID, owner, strategyID)
			upstreams := upstreamFor("aptos", err, start)
			s.captureDiagnostics(nil, upstreams, false)
			if err != nil && (sub == nil || sub.State != execution.StateFailed) {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), executionResult(sub), nil, cacheMetaBypass(), upstreams, false)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Custody user id")
	cmd.Flags().StringVar(&walletFlag, "wallet", "", "Custody wallet id (defaults to the user's first wallet)")
	cmd.Flags().StringVar(&strategyID, "id", "", "Strategy id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
