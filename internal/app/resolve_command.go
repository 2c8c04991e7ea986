package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/model"
)

func (s *runtimeState) newResolveCommand() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a user's per-chain addresses from custody",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()

			start := time.Now()
			set, warnings, err := s.resolver.Resolve(ctx, userID)
			upstreams := []model.UpstreamStatus{{
				Name:      "custody",
				Status:    statusFromErr(err),
				LatencyMS: time.Since(start).Milliseconds(),
			}}
			s.captureDiagnostics(warnings, upstreams, len(warnings) > 0)
			if err != nil {
				return err
			}
			if len(warnings) > 0 && s.settings.Strict {
				return clierr.New(clierr.CodePartialStrict, "partial resolution in strict mode")
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), set, warnings, cacheMetaBypass(), upstreams, len(warnings) > 0)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Custody user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
