package ports

import (
	"context"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

// CycleStatus is the polling snapshot of the orchestrator.
type CycleStatus struct {
	Active     bool             `json:"active"`
	Status     string           `json:"status"`
	Processed  int              `json:"processed"`
	Total      int              `json:"total"`
	QueueSizes QueueSizes       `json:"queue_sizes"`
	Config     domain.RunConfig `json:"config"`
}

type QueueSizes struct {
	Processing int `json:"processing"`
	Quick      int `json:"quick"`
	Long       int `json:"long"`
	Format     int `json:"format"`
	Failed     int `json:"failed"`
}

// ConfigPatch carries partial Run Configuration updates; nil fields keep the
// current value. Applied at the start of the next cycle.
type ConfigPatch struct {
	QuickTimeoutSeconds *int `json:"quick_timeout_seconds,omitempty"`
	LongTimeoutSeconds  *int `json:"long_timeout_seconds,omitempty"`
	MaxRetries          *int `json:"max_retries,omitempty"`
	BackoffBaseSeconds  *int `json:"backoff_base_seconds,omitempty"`
	BatchSize           *int `json:"batch_size,omitempty"`
}

// ProcessingOrchestrator is the inbound contract consumed by the HTTP layer.
type ProcessingOrchestrator interface {
	StartCycle()
	Stop()
	Status() CycleStatus
	DrainNewlyCompleted() []string
	FailedItems() []domain.RetryEntry
	ManualRetry(candidateID string) bool
	ForceProcess(ctx context.Context, candidateIDs []string) (map[string]domain.Profile, error)
	UpdateConfig(patch ConfigPatch) domain.RunConfig
}
