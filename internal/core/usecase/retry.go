package usecase

import (
	"sync"
	"time"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

type retryQueue int

const (
	queueQuick retryQueue = iota
	queueLong
	queueFormat
	queueFailed
)

// RetryScheduler owns the quick/long/format/failed queues and the per-item
// attempt counters. Three backoff scales reflect three failure economics:
// transient transport errors recover in seconds to minutes, generator
// timeouts need longer, and formatting failures are a prompting problem that
// is nearly free to retry.
type RetryScheduler struct {
	mu sync.Mutex

	maxRetries  int
	backoffBase time.Duration

	queues   map[retryQueue][]domain.RetryEntry
	attempts map[string]int

	now func() time.Time
}

func NewRetryScheduler(maxRetries int, backoffBase time.Duration) *RetryScheduler {
	if maxRetries <= 0 {
		maxRetries = domain.DefaultRunConfig().MaxRetries
	}
	if backoffBase <= 0 {
		backoffBase = domain.DefaultRunConfig().BackoffBase
	}
	return &RetryScheduler{
		maxRetries:  maxRetries,
		backoffBase: backoffBase,
		queues:      make(map[retryQueue][]domain.RetryEntry),
		attempts:    make(map[string]int),
		now:         time.Now,
	}
}

// Reconfigure applies new retry knobs; takes effect for subsequent failures
// and eligibility checks, never retroactively moving queued items.
func (s *RetryScheduler) Reconfigure(maxRetries int, backoffBase time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxRetries > 0 {
		s.maxRetries = maxRetries
	}
	if backoffBase > 0 {
		s.backoffBase = backoffBase
	}
}

// RecordFailure increments the candidate's attempt counter and routes it to
// the queue matching the failure category, or to the terminal failed queue
// once the retry ceiling is reached.
func (s *RetryScheduler) RecordFailure(candidate domain.Candidate, failure error, category domain.FailureCategory) {
	s.recordFailure(candidate, failure, category, nil, "")
}

// RecordFormattingFailure additionally retains the rejected profile and the
// assessment reason on the retry record.
func (s *RetryScheduler) RecordFormattingFailure(candidate domain.Candidate, failure error, rejected domain.Profile, reason string) {
	s.recordFailure(candidate, failure, domain.CategoryFormatting, &rejected, reason)
}

func (s *RetryScheduler) recordFailure(candidate domain.Candidate, failure error, category domain.FailureCategory, rejected *domain.Profile, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked(candidate.ID)
	s.attempts[candidate.ID]++

	entry := domain.RetryEntry{
		Candidate:       candidate,
		Category:        category,
		Attempts:        s.attempts[candidate.ID],
		LastAttempt:     s.now(),
		RejectedProfile: rejected,
		RejectReason:    reason,
	}
	if failure != nil {
		entry.LastError = failure.Error()
	}

	if entry.Attempts >= s.maxRetries {
		s.queues[queueFailed] = append(s.queues[queueFailed], entry)
		return
	}

	target := queueQuick
	switch category {
	case domain.CategoryTimeout:
		target = queueLong
	case domain.CategoryFormatting, domain.CategoryInvalidResult:
		target = queueFormat
	}
	s.queues[target] = append(s.queues[target], entry)
}

// EligibleNow dequeues and returns every entry whose backoff window has
// elapsed, quick before long before format. The failed queue is terminal and
// never drained here.
func (s *RetryScheduler) EligibleNow() []domain.RetryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var eligible []domain.RetryEntry
	for _, q := range []retryQueue{queueQuick, queueLong, queueFormat} {
		var remaining []domain.RetryEntry
		for _, entry := range s.queues[q] {
			if now.Sub(entry.LastAttempt) >= s.backoffWindow(q, entry.Attempts) {
				eligible = append(eligible, entry)
			} else {
				remaining = append(remaining, entry)
			}
		}
		s.queues[q] = remaining
	}
	return eligible
}

// backoffWindow computes the wait for one entry. With the default one-minute
// base this yields 2^k minutes for quick, 5·2^k minutes for long and 30·2^k
// seconds for format retries.
func (s *RetryScheduler) backoffWindow(q retryQueue, attempts int) time.Duration {
	factor := time.Duration(1) << uint(min(attempts, 20))
	switch q {
	case queueLong:
		return 5 * s.backoffBase * factor
	case queueFormat:
		return s.backoffBase / 2 * factor
	default:
		return s.backoffBase * factor
	}
}

// ManualRetry resets a terminally failed candidate and re-queues it for a
// quick retry. Returns false when the id is not in the failed queue.
func (s *RetryScheduler) ManualRetry(candidateID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, entry := range s.queues[queueFailed] {
		if entry.Candidate.ID != candidateID {
			continue
		}
		s.queues[queueFailed] = append(s.queues[queueFailed][:i], s.queues[queueFailed][i+1:]...)
		s.attempts[candidateID] = 0

		entry.Attempts = 0
		entry.LastAttempt = time.Time{}
		entry.Category = domain.CategoryTransport
		s.queues[queueQuick] = append(s.queues[queueQuick], entry)
		return true
	}
	return false
}

// MarkSucceeded forgets a candidate entirely after a successful extraction.
func (s *RetryScheduler) MarkSucceeded(candidateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(candidateID)
	delete(s.attempts, candidateID)
}

// FailedItems returns a copy of the terminal failed queue.
func (s *RetryScheduler) FailedItems() []domain.RetryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RetryEntry, len(s.queues[queueFailed]))
	copy(out, s.queues[queueFailed])
	return out
}

// PendingIDs reports every candidate currently waiting in any queue.
func (s *RetryScheduler) PendingIDs() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]bool)
	for _, entries := range s.queues {
		for _, entry := range entries {
			ids[entry.Candidate.ID] = true
		}
	}
	return ids
}

// Sizes reports queue lengths for status polling.
func (s *RetryScheduler) Sizes() (quick, long, format, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[queueQuick]), len(s.queues[queueLong]), len(s.queues[queueFormat]), len(s.queues[queueFailed])
}

func (s *RetryScheduler) dropLocked(candidateID string) {
	for q, entries := range s.queues {
		for i, entry := range entries {
			if entry.Candidate.ID == candidateID {
				s.queues[q] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
	}
}
