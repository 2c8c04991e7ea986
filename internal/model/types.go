package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
	Command   string           `json:"command"`
	Upstreams []UpstreamStatus `json:"upstreams,omitempty"`
	Cache     CacheStatus      `json:"cache"`
	Partial   bool             `json:"partial"`
}

type UpstreamStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

// ChainAddressSet maps chain slugs to the user's resolved address on that
// chain. A missing or empty entry means the user holds no account there; the
// fallback address is used only when no chain-specific address exists.
type ChainAddressSet struct {
	UserID    string            `json:"user_id,omitempty"`
	Addresses map[string]string `json:"addresses"`
	Fallback  string            `json:"fallback,omitempty"`
}

// AddressFor prefers the chain-specific address over the generic fallback.
func (s ChainAddressSet) AddressFor(chainSlug string, fallbackKindMatches bool) string {
	if addr, ok := s.Addresses[chainSlug]; ok && addr != "" {
		return addr
	}
	if fallbackKindMatches {
		return s.Fallback
	}
	return ""
}

type TokenHolding struct {
	Symbol       string  `json:"symbol"`
	Address      string  `json:"address,omitempty"`
	Amount       string  `json:"amount"`
	AmountBase   string  `json:"amount_base_units"`
	Decimals     int     `json:"decimals"`
	PriceUSD     float64 `json:"price_usd"`
	ValueUSD     float64 `json:"value_usd"`
	Change24hPct float64 `json:"change_24h_pct"`
}

type ChainPortfolio struct {
	Chain        string         `json:"chain"`
	ChainID      string         `json:"chain_id"`
	Address      string         `json:"address,omitempty"`
	Tokens       []TokenHolding `json:"tokens"`
	ValueUSD     float64        `json:"value_usd"`
	Percentage   float64        `json:"percentage"`
	Change24hPct float64        `json:"change_24h_pct"`
	Failed       bool           `json:"failed,omitempty"`
}

type PortfolioSnapshot struct {
	TotalValueUSD  float64          `json:"total_value_usd"`
	Change24hPct   float64          `json:"change_24h_pct"`
	Yield24hPct    float64          `json:"yield_24h_pct"`
	Chains         []ChainPortfolio `json:"chains"`
	ActiveChains   []string         `json:"active_chains"`
	FetchedAt      time.Time        `json:"fetched_at"`
	FromCache      bool             `json:"from_cache"`
	PartialFailure bool             `json:"partial_failure,omitempty"`
}

// ExecutionResult is the structured outcome of the build-sign-submit-confirm
// pipeline. Status "pending" means the confirmation wait timed out with the
// transaction still in flight; the hash remains valid for re-polling.
type ExecutionResult struct {
	Success         bool   `json:"success"`
	Status          string `json:"status"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Error           string `json:"error,omitempty"`
}

type StrategyView struct {
	ID            string `json:"id"`
	Owner         string `json:"owner"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	IntervalSecs  int64  `json:"interval_secs"`
	Executions    int64  `json:"executions"`
	MaxExecutions int64  `json:"max_executions"`
	Params        string `json:"params,omitempty"`
}

type SubmissionRecord struct {
	ID              string    `json:"id"`
	ChainID         string    `json:"chain_id"`
	Function        string    `json:"function"`
	Sender          string    `json:"sender"`
	TransactionHash string    `json:"transaction_hash"`
	State           string    `json:"state"`
	SubmittedAt     time.Time `json:"submitted_at"`
	Error           string    `json:"error,omitempty"`
}

type ChainInfo struct {
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	ChainID string `json:"chain_id"`
	Kind    string `json:"kind"`
}
