package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nmorales/custos/internal/cache"
	"github.com/nmorales/custos/internal/chains"
	"github.com/nmorales/custos/internal/chains/aptos"
	"github.com/nmorales/custos/internal/chains/evm"
	"github.com/nmorales/custos/internal/chains/solana"
	"github.com/nmorales/custos/internal/chains/sui"
	"github.com/nmorales/custos/internal/config"
	"github.com/nmorales/custos/internal/custody"
	clierr "github.com/nmorales/custos/internal/errors"
	"github.com/nmorales/custos/internal/execution"
	"github.com/nmorales/custos/internal/httpx"
	"github.com/nmorales/custos/internal/id"
	"github.com/nmorales/custos/internal/intent"
	"github.com/nmorales/custos/internal/model"
	"github.com/nmorales/custos/internal/out"
	"github.com/nmorales/custos/internal/policy"
	"github.com/nmorales/custos/internal/portfolio"
	"github.com/nmorales/custos/internal/prices"
	"github.com/nmorales/custos/internal/registry"
	"github.com/nmorales/custos/internal/schema"
	"github.com/nmorales/custos/internal/strategy"
	"github.com/nmorales/custos/internal/version"
	"github.com/nmorales/custos/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout: stdout,
		stderr: stderr,
		now:    time.Now,
	}
}

type runtimeState struct {
	runner        *Runner
	flags         config.GlobalFlags
	settings      config.Settings
	root          *cobra.Command
	lastCommand   string
	lastWarnings  []string
	lastUpstreams []model.UpstreamStatus
	lastPartial   bool

	memcache   *cache.Store
	journal    *execution.Store
	custody    *custody.Client
	resolver   *wallet.Resolver
	aptos      *aptos.Client
	aggregator *portfolio.Aggregator
	builder    *intent.Builder
	submitter  *execution.Submitter
	strategies *strategy.Service
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := normalizeRunError(root.Execute())
	if state.journal != nil {
		_ = state.journal.Close()
	}
	if err == nil {
		return 0
	}
	state.renderError("", err, state.lastWarnings, state.lastUpstreams, state.lastPartial)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Custodial wallet execution and portfolio CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}
			return s.wireServices(path)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	cmd.PersistentFlags().BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	cmd.PersistentFlags().BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	cmd.PersistentFlags().StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	cmd.PersistentFlags().StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	cmd.PersistentFlags().BoolVar(&s.flags.Strict, "strict", false, "Fail on partial results")
	cmd.PersistentFlags().StringVar(&s.flags.Timeout, "timeout", "", "Upstream request timeout")
	cmd.PersistentFlags().IntVar(&s.flags.Retries, "retries", -1, "Retries per upstream request")
	cmd.PersistentFlags().BoolVar(&s.flags.NoCache, "no-cache", false, "Disable the freshness cache")
	cmd.PersistentFlags().StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")

	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newResolveCommand())
	cmd.AddCommand(s.newPortfolioCommand())
	cmd.AddCommand(s.newExecuteCommand())
	cmd.AddCommand(s.newStrategyCommand())
	cmd.AddCommand(s.newSubmissionsCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// wireServices builds the upstream clients once per process. The submission
// journal opens only for commands that execute transactions.
func (s *runtimeState) wireServices(commandPath string) error {
	if s.custody == nil {
		httpClient := httpx.New(s.settings.Timeout, s.settings.Retries)

		custodyBase := s.settings.CustodyAPIBase
		if custodyBase == "" {
			custodyBase = registry.DefaultCustodyAPIBase
		}
		s.custody = custody.NewClient(httpClient, custodyBase, s.settings.CustodyAppID, s.settings.CustodyAPIKey)
		s.resolver = wallet.NewResolver(s.custody)

		s.aptos = aptos.NewClient(httpClient, s.rpcFor("aptos"))
		ethereum, _ := id.ParseChain("ethereum")
		base, _ := id.ParseChain("base")
		fetchers := map[string]chains.BalanceFetcher{
			"aptos":    s.aptos,
			"ethereum": evm.NewClient(ethereum, s.rpcFor("ethereum")),
			"base":     evm.NewClient(base, s.rpcFor("base")),
			"solana":   solana.NewClient(httpClient, s.rpcFor("solana")),
			"sui":      sui.NewClient(httpClient, s.rpcFor("sui")),
		}

		priceBase := s.settings.PriceAPIBase
		if priceBase == "" {
			priceBase = registry.DefaultPriceAPIBase
		}
		priceClient := prices.NewClient(httpClient, priceBase, s.settings.PriceAPIKey)

		s.memcache = cache.New(s.runner.now)
		s.aggregator = portfolio.NewAggregator(fetchers, priceClient, s.memcache, s.settings.BalancesTTL, s.settings.CacheEnabled, s.runner.now)
		s.builder = intent.NewBuilder()
	}

	if needsJournal(commandPath) && s.journal == nil {
		journal, err := execution.OpenStore(s.settings.SubmissionStorePath, s.settings.SubmissionLockPath)
		if err != nil {
			return err
		}
		s.journal = journal
	}

	if s.submitter == nil {
		s.submitter = execution.NewSubmitter(
			map[string]execution.ChainClient{"aptos": s.aptos},
			execution.NewCustodySigner(s.custody),
			journalOrNil(s.journal),
			s.settings.ConfirmTimeout,
			s.settings.PollInterval,
		)
		s.submitter.OnConfirmed = func(*execution.Submission) {
			// Balances moved; everything cached is now suspect.
			s.memcache.InvalidateAll()
		}
		s.strategies = strategy.NewService(s.aptos, s.submitter, s.memcache, s.settings.ReferenceTTL)
	}
	return nil
}

func journalOrNil(store *execution.Store) execution.Journal {
	if store == nil {
		return nil
	}
	return store
}

func (s *runtimeState) rpcFor(slug string) string {
	if rpc, ok := s.settings.RPCEndpoints[slug]; ok && rpc != "" {
		return rpc
	}
	rpc, _ := registry.DefaultRPCBySlug(slug)
	return rpc
}

func needsJournal(commandPath string) bool {
	norm := normalizeCommandPath(commandPath)
	switch {
	case strings.HasPrefix(norm, "execute"),
		strings.HasPrefix(norm, "strategy"),
		strings.HasPrefix(norm, "submissions"):
		return true
	default:
		return false
	}
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, cacheMetaBypass(), nil, false)
		},
	}
}

func (s *runtimeState) newChainsCommand() *cobra.Command {
	root := &cobra.Command{Use: "chains", Short: "Chain registry"}
	list := &cobra.Command{
		Use:   "list",
		Short: "List supported chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			supported := id.Supported()
			infos := make([]model.ChainInfo, 0, len(supported))
			for _, chain := range supported {
				infos = append(infos, model.ChainInfo{
					Name:    chain.Name,
					Slug:    chain.Slug,
					ChainID: chain.CAIP2,
					Kind:    string(chain.Kind),
				})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), infos, nil, cacheMetaBypass(), nil, false)
		},
	}
	root.AddCommand(list)
	return root
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, cacheStatus model.CacheStatus, upstreams []model.UpstreamStatus, partial bool) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Upstreams: upstreams,
			Cache:     cacheStatus,
			Partial:   partial,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string, upstreams []model.UpstreamStatus, partial bool) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		typ = errorType(cErr.Code)
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: uuid.NewString(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			Upstreams: upstreams,
			Cache:     cacheMetaBypass(),
			Partial:   partial,
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func errorType(code clierr.Code) string {
	switch code {
	case clierr.CodeUsage:
		return "usage_error"
	case clierr.CodeAuth:
		return "auth_error"
	case clierr.CodeRateLimited:
		return "rate_limited"
	case clierr.CodeUnavailable:
		return "upstream_unavailable"
	case clierr.CodeUnsupported:
		return "unsupported"
	case clierr.CodePartialStrict:
		return "partial_results"
	case clierr.CodeBlocked:
		return "command_blocked"
	case clierr.CodeResolution:
		return "resolution_error"
	case clierr.CodeSigner:
		return "signer_unavailable"
	case clierr.CodeSignerRejected:
		return "signer_rejected"
	case clierr.CodeSubmission:
		return "submission_error"
	case clierr.CodePending:
		return "confirmation_pending"
	default:
		return "internal_error"
	}
}

func (s *runtimeState) captureDiagnostics(warnings []string, upstreams []model.UpstreamStatus, partial bool) {
	if len(warnings) == 0 {
		s.lastWarnings = nil
	} else {
		s.lastWarnings = append([]string(nil), warnings...)
	}
	if len(upstreams) == 0 {
		s.lastUpstreams = nil
	} else {
		s.lastUpstreams = append([]model.UpstreamStatus(nil), upstreams...)
	}
	s.lastPartial = partial
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func statusFromErr(err error) string {
	if err == nil {
		return "ok"
	}
	if cErr, ok := clierr.As(err); ok {
		switch cErr.Code {
		case clierr.CodeAuth:
			return "auth_error"
		case clierr.CodeRateLimited:
			return "rate_limited"
		case clierr.CodeUnavailable:
			return "unavailable"
		default:
			return "error"
		}
	}
	return "error"
}

func upstreamFor(name string, err error, start time.Time) []model.UpstreamStatus {
	return []model.UpstreamStatus{{
		Name:      name,
		Status:    statusFromErr(err),
		LatencyMS: time.Since(start).Milliseconds(),
	}}
}

func cacheMetaBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass", AgeMS: 0, Stale: false}
}

func cacheMetaHit(age time.Duration) model.CacheStatus {
	return model.CacheStatus{Status: "hit", AgeMS: age.Milliseconds(), Stale: false}
}

func cacheMetaMiss() model.CacheStatus {
	return model.CacheStatus{Status: "miss", AgeMS: 0, Stale: false}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
