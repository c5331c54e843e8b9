package ports

import (
	"context"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

// DocumentSource enumerates candidate resumes and reads their plain text.
type DocumentSource interface {
	ListCandidates(ctx context.Context) ([]domain.Candidate, error)
	ReadText(ctx context.Context, candidate domain.Candidate) (string, error)
}

// Generator is the black-box text-generation call. It may be slow, may fail
// and may return malformed content; it has no native cancellation beyond the
// context deadline of the underlying transport.
type Generator interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ProfileStore persists accepted extraction results.
type ProfileStore interface {
	Has(ctx context.Context, candidateID string) (bool, error)
	Put(ctx context.Context, candidateID string, profile domain.Profile) error
	Get(ctx context.Context, candidateID string) (*domain.Profile, error)
	CompletedIDs(ctx context.Context) ([]string, error)
	// DeleteAll clears cached profiles when the job description changes.
	DeleteAll(ctx context.Context) error
}

// DecisionStore persists reviewer decisions and the saved-candidate ordering.
type DecisionStore interface {
	Record(ctx context.Context, rec domain.DecisionRecord) error
	Remove(ctx context.Context, candidateID string, decision domain.Decision) error
	List(ctx context.Context, decision domain.Decision) ([]domain.DecisionRecord, error)
	Clear(ctx context.Context) error
	SetOrder(ctx context.Context, orderedIDs []string) error
	Order(ctx context.Context) ([]string, error)
}

// JobContext supplies and updates the active job description.
type JobContext interface {
	JobDescription(ctx context.Context) (string, error)
	UpdateJobDescription(ctx context.Context, description string) error
}

// EventPublisher notifies external consumers that a candidate finished
// processing. Implementations must be safe to call from the orchestrator
// goroutine; publish failures are logged, never fatal to the cycle.
type EventPublisher interface {
	PublishCandidateProcessed(ctx context.Context, candidateID string) error
}
