package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Strict         bool
	Timeout        string
	Retries        int
	NoCache        bool
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Strict         bool
	Timeout        time.Duration
	Retries        int
	CacheEnabled   bool

	BalancesTTL    time.Duration
	ReferenceTTL   time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	CustodyAPIBase string
	CustodyAppID   string
	CustodyAPIKey  string
	PriceAPIBase   string
	PriceAPIKey    string
	RPCEndpoints   map[string]string

	SubmissionStorePath string
	SubmissionLockPath  string
}

type fileConfig struct {
	Output  string `yaml:"output"`
	Strict  *bool  `yaml:"strict"`
	Timeout string `yaml:"timeout"`
	Retries *int   `yaml:"retries"`
	Cache   struct {
		Enabled      *bool  `yaml:"enabled"`
		BalancesTTL  string `yaml:"balances_ttl"`
		ReferenceTTL string `yaml:"reference_ttl"`
	} `yaml:"cache"`
	Execution struct {
		ConfirmTimeout  string `yaml:"confirm_timeout"`
		PollInterval    string `yaml:"poll_interval"`
		SubmissionsPath string `yaml:"submissions_path"`
		SubmissionsLock string `yaml:"submissions_lock_path"`
	} `yaml:"execution"`
	Custody struct {
		APIBase   string `yaml:"api_base"`
		AppID     string `yaml:"app_id"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"custody"`
	Prices struct {
		APIBase   string `yaml:"api_base"`
		APIKey    string `yaml:"api_key"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"prices"`
	Chains map[string]struct {
		RPC string `yaml:"rpc"`
	} `yaml:"chains"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	applyEnv(&settings)

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.BalancesTTL <= 0 {
		settings.BalancesTTL = time.Minute
	}
	if settings.ReferenceTTL <= 0 {
		settings.ReferenceTTL = 5 * time.Minute
	}
	if settings.ConfirmTimeout <= 0 {
		settings.ConfirmTimeout = 30 * time.Second
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = 2 * time.Second
	}

	return settings, nil
}

func defaultSettings() (Settings, error) {
	storePath, lockPath, err := defaultSubmissionPaths()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:          "json",
		Timeout:             10 * time.Second,
		Retries:             2,
		CacheEnabled:        true,
		BalancesTTL:         time.Minute,
		ReferenceTTL:        5 * time.Minute,
		ConfirmTimeout:      30 * time.Second,
		PollInterval:        2 * time.Second,
		RPCEndpoints:        map[string]string{},
		SubmissionStorePath: storePath,
		SubmissionLockPath:  lockPath,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "custos", "config.yaml"), nil
}

func defaultSubmissionPaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "custos")
	return filepath.Join(dir, "submissions.db"), filepath.Join(dir, "submissions.lock"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Strict != nil {
		settings.Strict = *cfg.Strict
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.BalancesTTL != "" {
		d, err := time.ParseDuration(cfg.Cache.BalancesTTL)
		if err != nil {
			return fmt.Errorf("config cache.balances_ttl: %w", err)
		}
		settings.BalancesTTL = d
	}
	if cfg.Cache.ReferenceTTL != "" {
		d, err := time.ParseDuration(cfg.Cache.ReferenceTTL)
		if err != nil {
			return fmt.Errorf("config cache.reference_ttl: %w", err)
		}
		settings.ReferenceTTL = d
	}
	if cfg.Execution.ConfirmTimeout != "" {
		d, err := time.ParseDuration(cfg.Execution.ConfirmTimeout)
		if err != nil {
			return fmt.Errorf("config execution.confirm_timeout: %w", err)
		}
		settings.ConfirmTimeout = d
	}
	if cfg.Execution.PollInterval != "" {
		d, err := time.ParseDuration(cfg.Execution.PollInterval)
		if err != nil {
			return fmt.Errorf("config execution.poll_interval: %w", err)
		}
		settings.PollInterval = d
	}
	if cfg.Execution.SubmissionsPath != "" {
		settings.SubmissionStorePath = cfg.Execution.SubmissionsPath
	}
	if cfg.Execution.SubmissionsLock != "" {
		settings.SubmissionLockPath = cfg.Execution.SubmissionsLock
	}
	if cfg.Custody.APIBase != "" {
		settings.CustodyAPIBase = cfg.Custody.APIBase
	}
	if cfg.Custody.AppID != "" {
		settings.CustodyAppID = cfg.Custody.AppID
	}
	if cfg.Custody.APIKey != "" {
		settings.CustodyAPIKey = cfg.Custody.APIKey
	}
	if cfg.Custody.APIKeyEnv != "" {
		settings.CustodyAPIKey = os.Getenv(cfg.Custody.APIKeyEnv)
	}
	if cfg.Prices.APIBase != "" {
		settings.PriceAPIBase = cfg.Prices.APIBase
	}
	if cfg.Prices.APIKey != "" {
		settings.PriceAPIKey = cfg.Prices.APIKey
	}
	if cfg.Prices.APIKeyEnv != "" {
		settings.PriceAPIKey = os.Getenv(cfg.Prices.APIKeyEnv)
	}
	for slug, chain := range cfg.Chains {
		if strings.TrimSpace(chain.RPC) == "" {
			continue
		}
		if settings.RPCEndpoints == nil {
			settings.RPCEndpoints = map[string]string{}
		}
		settings.RPCEndpoints[strings.ToLower(strings.TrimSpace(slug))] = chain.RPC
	}

	return nil
}

func applyEnv(settings *Settings) {
	if v := os.Getenv("CUSTOS_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("CUSTOS_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Strict = b
		}
	}
	if v := os.Getenv("CUSTOS_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("CUSTOS_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("CUSTOS_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("CUSTOS_CUSTODY_API_BASE"); v != "" {
		settings.CustodyAPIBase = v
	}
	if v := os.Getenv("CUSTOS_CUSTODY_APP_ID"); v != "" {
		settings.CustodyAppID = v
	}
	if v := os.Getenv("CUSTOS_CUSTODY_API_KEY"); v != "" {
		settings.CustodyAPIKey = v
	}
	if v := os.Getenv("CUSTOS_PRICE_API_BASE"); v != "" {
		settings.PriceAPIBase = v
	}
	if v := os.Getenv("CUSTOS_PRICE_API_KEY"); v != "" {
		settings.PriceAPIKey = v
	}
	if v := os.Getenv("CUSTOS_SUBMISSIONS_PATH"); v != "" {
		settings.SubmissionStorePath = v
	}
	if v := os.Getenv("CUSTOS_SUBMISSIONS_LOCK_PATH"); v != "" {
		settings.SubmissionLockPath = v
	}
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}

	if flags.Strict {
		settings.Strict = true
	}
	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
