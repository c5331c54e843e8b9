package domain

import "time"

// FailureCategory routes a failed attempt to the retry queue whose backoff
// economics match the failure mode.
type FailureCategory string

const (
	CategoryReadError     FailureCategory = "file_read_error"
	CategoryTransport     FailureCategory = "transport_error"
	CategoryTimeout       FailureCategory = "timeout"
	CategoryFormatting    FailureCategory = "formatting_failure"
	CategoryInvalidResult FailureCategory = "invalid_result"
)

// RetryEntry tracks one candidate across failed attempts. For formatting
// failures it retains the rejected profile and the reason so the reviewer can
// inspect what the generator produced.
type RetryEntry struct {
	Candidate       Candidate       `json:"candidate"`
	LastError       string          `json:"last_error"`
	Category        FailureCategory `json:"category"`
	Attempts        int             `json:"attempts"`
	LastAttempt     time.Time       `json:"last_attempt"`
	RejectedProfile *Profile        `json:"rejected_profile,omitempty"`
	RejectReason    string          `json:"reject_reason,omitempty"`
}

// RunConfig holds the per-run processing knobs. Immutable during a cycle;
// operator updates apply from the next cycle.
type RunConfig struct {
	QuickTimeout time.Duration
	LongTimeout  time.Duration
	MaxRetries   int
	BackoffBase  time.Duration
	BatchSize    int
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		QuickTimeout: 90 * time.Second,
		LongTimeout:  5 * time.Minute,
		MaxRetries:   4,
		BackoffBase:  time.Minute,
		BatchSize:    5,
	}
}

// Normalize clamps nonsensical values back to defaults.
func (c RunConfig) Normalize() RunConfig {
	def := DefaultRunConfig()
	out := c
	if out.QuickTimeout <= 0 {
		out.QuickTimeout = def.QuickTimeout
	}
	if out.LongTimeout < out.QuickTimeout {
		out.LongTimeout = def.LongTimeout
	}
	if out.MaxRetries <= 0 {
		out.MaxRetries = def.MaxRetries
	}
	if out.BackoffBase <= 0 {
		out.BackoffBase = def.BackoffBase
	}
	if out.BatchSize <= 0 {
		out.BatchSize = def.BatchSize
	}
	return out
}
