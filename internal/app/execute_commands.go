package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/execution"
	"github.com/nmorales/custos/internal/id"
	"github.com/nmorales/custos/internal/intent"
	"github.com/nmorales/custos/internal/model"
)

// executionIdentity picks the signing wallet and the sender address for one
// chain. The wallet defaults to the user's first custody wallet.
func (s *runtimeState) executionIdentity(ctx context.Context, userID, walletFlag, chainSlug string) (string, string, error) {
	walletID := walletFlag
	if walletID == "" {
		wallets, err := s.custody.ListWallets(ctx, userID)
		if err != nil {
			return "", "", err
		}
		if len(wallets) == 0 {
			return "", "", clierr.New(clierr.CodeResolution, fmt.Sprintf("no custody wallets found for user %s", userID))
		}
		walletID = wallets[0].ID
	}

	set, _, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", "", err
	}
	chain, err := id.ParseChain(chainSlug)
	if err != nil {
		return "", "", err
	}
	sender := set.AddressFor(chain.Slug, chain.IsEVM())
	if sender == "" {
		return "", "", clierr.New(clierr.CodeResolution, fmt.Sprintf("user %s has no address on %s", userID, chain.Slug))
	}
	return walletID, sender, nil
}

func executionResult(sub *execution.Submission) model.ExecutionResult {
	switch sub.State {
	case execution.StateConfirmed:
		return model.ExecutionResult{Success: true, Status: "confirmed", TransactionHash: sub.TransactionHash}
	case execution.StateTimedOut:
		return model.ExecutionResult{Success: true, Status: "pending", TransactionHash: sub.TransactionHash}
	default:
		return model.ExecutionResult{
			Success:         false,
			Status:          "failed",
			TransactionHash: sub.TransactionHash,
			Error:           sub.Error,
		}
	}
}

// runExecution drives one built transaction through the pipeline and emits
// the outcome. The context budget covers signing, submission, and the full
// confirmation wait.
func (s *runtimeState) runExecution(cmd *cobra.Command, walletID string, tx *execution.UnsignedTransaction) error {
	budget := s.settings.Timeout + s.settings.ConfirmTimeout
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	start := time.Now()
	sub, err := s.submitter.Execute(ctx, walletID, tx)
	upstreams := []model.UpstreamStatus{{
		Name:      tx.ChainSlug,
		Status:    statusFromErr(err),
		LatencyMS: time.Since(start).Milliseconds(),
	}}
	s.captureDiagnostics(nil, upstreams, false)
	// A failed submission is still a reported outcome: the result carries the
	// failure reason and whatever hash the chain handed back. Only errors
	// without a terminal submission escape as error envelopes.
	if err != nil && (sub == nil || sub.State != execution.StateFailed) {
		return err
	}

	result := executionResult(sub)
	var warnings []string
	if result.Status == "pending" {
		warnings = append(warnings, fmt.Sprintf("confirmation timed out after %s; transaction %s may still land, re-check with: submissions show --id %s --repoll", s.settings.ConfirmTimeout, sub.TransactionHash, sub.ID))
	}
	s.captureDiagnostics(warnings, upstreams, false)
	return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, warnings, cacheMetaBypass(), upstreams, false)
}

func (s *runtimeState) newExecuteCommand() *cobra.Command {
	root := &cobra.Command{Use: "execute", Short: "Build, sign, and submit transactions"}
	root.AddCommand(s.newExecuteSwapCommand())
	root.AddCommand(s.newExecuteDCACommand())
	root.AddCommand(s.newExecuteYieldCommand())
	return root
}

func (s *runtimeState) newExecuteSwapCommand() *cobra.Command {
	var userID, walletFlag, chainArg, fromArg, toArg, amountArg string
	var slippage float64
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap a fixed input amount",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			walletID, sender, err := s.executionIdentity(ctx, userID, walletFlag, chainArg)
			cancel()
			if err != nil {
				return err
			}

			tx, err := s.builder.BuildSwap(sender, intent.Swap{
				Chain:       chainArg,
				FromSymbol:  fromArg,
				ToSymbol:    toArg,
				Amount:      amountArg,
				SlippagePct: slippage,
			})
			if err != nil {
				return err
			}
			return s.runExecution(cmd, walletID, tx)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Custody user id")
	cmd.Flags().StringVar(&walletFlag, "wallet", "", "Custody wallet id (defaults to the user's first wallet)")
	cmd.Flags().StringVar(&chainArg, "chain", "aptos", "Execution chain")
	cmd.Flags().StringVar(&fromArg, "from", "", "Input token symbol")
	cmd.Flags().StringVar(&toArg, "to", "", "Output token symbol")
	cmd.Flags().StringVar(&amountArg, "amount", "", "Input amount in decimal units")
	cmd.Flags().Float64Var(&slippage, "slippage", 0, "Slippage tolerance percent (default 1)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newExecuteDCACommand() *cobra.Command {
	var userID, walletFlag, chainArg, fromArg, toArg, amountArg, frequencyArg string
	var maxExecutions int64
	cmd := &cobra.Command{
		Use:   "dca",
		Short: "Register a recurring swap strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			frequency, err := intent.ParseFrequency(frequencyArg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			walletID, sender, err := s.executionIdentity(ctx, userID, walletFlag, chainArg)
			cancel()
			if err != nil {
				return err
			}

			tx, err := s.builder.BuildDCA(sender, intent.DCA{
				Chain:         chainArg,
				FromSymbol:    fromArg,
				ToSymbol:      toArg,
				AmountPerRun:  amountArg,
				Frequency:     frequency,
				MaxExecutions: maxExecutions,
			})
			if err != nil {
				return err
			}
			return s.runExecution(cmd, walletID, tx)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Custody user id")
	cmd.Flags().StringVar(&walletFlag, "wallet", "", "Custody wallet id (defaults to the user's first wallet)")
	cmd.Flags().StringVar(&chainArg, "chain", "aptos", "Execution chain")
	cmd.Flags().StringVar(&fromArg, "from", "", "Input token symbol")
	cmd.Flags().StringVar(&toArg, "to", "", "Output token symbol")
	cmd.Flags().StringVar(&amountArg, "amount", "", "Amount per run in decimal units")
	cmd.Flags().StringVar(&frequencyArg, "frequency", "", "Run cadence: hourly, daily, weekly, monthly (default daily)")
	cmd.Flags().Int64Var(&maxExecutions, "max-executions", 0, "Total runs before the strategy completes (0 = unlimited)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (s *runtimeState) newExecuteYieldCommand() *cobra.Command {
	var userID, walletFlag, chainArg, tokenArg, amountArg, riskArg string
	cmd := &cobra.Command{
		Use:   "yield",
		Short: "Deposit into the best vault for a risk tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			risk, err := intent.ParseRiskTier(riskArg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			walletID, sender, err := s.executionIdentity(ctx, userID, walletFlag, chainArg)
			cancel()
			if err != nil {
				return err
			}

			tx, err := s.builder.BuildYield(sender, intent.Yield{
				Chain:  chainArg,
				Symbol: tokenArg,
				Amount: amountArg,
				Risk:   risk,
			})
			if err != nil {
				return err
			}
			return s.runExecution(cmd, walletID, tx)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Custody user id")
	cmd.Flags().StringVar(&walletFlag, "wallet", "", "Custody wallet id (defaults to the user's first wallet)")
	cmd.Flags().StringVar(&chainArg, "chain", "aptos", "Execution chain")
	cmd.Flags().StringVar(&tokenArg, "token", "", "Token symbol to deposit")
	cmd.Flags().StringVar(&amountArg, "amount", "", "Deposit amount in decimal units")
	cmd.Flags().StringVar(&riskArg, "risk", "", "Risk tier: low, medium, high (default medium)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
