package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/nmorales/custos/internal/execution"
	"github.com/nmorales/custos/internal/model"
)

func submissionRecord(sub *execution.Submission) model.SubmissionRecord {
	return model.SubmissionRecord{
		ID:              sub.ID,
		ChainID:         sub.ChainSlug,
		Function:        sub.Function,
		Sender:          sub.Sender,
		TransactionHash: sub.TransactionHash,
		State:           string(sub.State),
		SubmittedAt:     sub.CreatedAt,
		Error:           sub.Error,
	}
}

func (s *runtimeState) newSubmissionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "submissions", Short: "Inspect the local submission journal"}
	root.AddCommand(s.newSubmissionsListCommand())
	root.AddCommand(s.newSubmissionsShowCommand())
	return root
}

func (s *runtimeState) newSubmissionsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded submissions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			subs, err := s.journal.List(ctx, limit)
			if err != nil {
				return err
			}
			records := make([]model.SubmissionRecord, 0, len(subs))
			for _, sub := range subs {
				records = append(records, submissionRecord(sub))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), records, nil, cacheMetaBypass(), nil, false)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum submissions to return")
	return cmd
}

func (s *runtimeState) newSubmissionsShowCommand() *cobra.Command {
	var submissionID string
	var repoll bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one submission, optionally re-polling its receipt",
		RunE: func(cmd *cobra.Command, args []string) error {
			budget := s.settings.Timeout
			if repoll {
				budget += s.settings.Timeout
			}
			ctx, cancel := context.WithTimeout(context.Background(), budget)
			defer cancel()

			sub, err := s.journal.Get(ctx, submissionID)
			if err != nil {
				return err
			}

			var upstreams []model.UpstreamStatus
			if repoll && sub.State != execution.StateConfirmed && sub.State != execution.StateFailed {
				chainSlug := sub.ChainSlug
				start := time.Now()
				sub, err = s.submitter.Repoll(ctx, sub)
				upstreams = upstreamFor(chainSlug, err, start)
				s.captureDiagnostics(nil, upstreams, false)
				if err != nil {
					return err
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), submissionRecord(sub), nil, cacheMetaBypass(), upstreams, false)
		},
	}
	cmd.Flags().StringVar(&submissionID, "id", "", "Submission id")
	cmd.Flags().BoolVar(&repoll, "repoll", false, "Re-check the receipt for a pending submission")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
