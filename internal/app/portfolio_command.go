package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/model"
)

func (s *runtimeState) newPortfolioCommand() *cobra.Command {
	var userID string
	var refresh bool
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Aggregate balances across all supported chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			resolveStart := time.Now()
			set, warnings, err := s.resolver.Resolve(ctx, userID)
			upstreams := []model.UpstreamStatus{{
				Name:      "custody",
				Status:    statusFromErr(err),
				LatencyMS: time.Since(resolveStart).Milliseconds(),
			}}
			s.captureDiagnostics(warnings, upstreams, len(warnings) > 0)
			if err != nil {
				return err
			}

			fetchStart := time.Now()
			snapshot, fetchWarnings, err := s.aggregator.Snapshot(ctx, set, refresh)
			upstreams = append(upstreams, model.UpstreamStatus{
				Name:      "chains",
				Status:    statusFromErr(err),
				LatencyMS: time.Since(fetchStart).Milliseconds(),
			})
			warnings = append(warnings, fetchWarnings...)
			s.captureDiagnostics(warnings, upstreams, snapshot.PartialFailure)
			if err != nil {
				return err
			}
			if snapshot.PartialFailure && s.settings.Strict {
				return clierr.New(clierr.CodePartialStrict, "partial portfolio in strict mode")
			}

			cacheStatus := cacheMetaMiss()
			if snapshot.FromCache {
				cacheStatus = cacheMetaHit(time.Since(snapshot.FetchedAt))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), snapshot, warnings, cacheStatus, upstreams, snapshot.PartialFailure)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Custody user id")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the freshness cache and refetch")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
