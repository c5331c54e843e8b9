package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/resume-screener/internal/core/domain"
	"github.com/kirillkom/resume-screener/internal/core/ports"
)

// MetricsRecorder receives orchestrator observations. Implemented by the
// prometheus recorder in observability; a nil-safe noop is used in tests.
type MetricsRecorder interface {
	BatchStarted(size int)
	BatchFinished(size int, duration time.Duration, err error)
	CandidateFinished(status string)
	QueueSizes(processing, quick, long, format, failed int)
}

// Orchestrator runs the processing cycle: discover unprocessed candidates,
// form batches, dispatch them under a computed timeout, store accepted
// profiles and route every failure through the retry scheduler. One cycle
// runs at a time on its own goroutine; polling callers only touch the
// mutex-guarded session and scheduler.
type Orchestrator struct {
	source    ports.DocumentSource
	composer  *Composer
	scheduler *RetryScheduler
	store     ports.ProfileStore
	jobCtx    ports.JobContext
	publisher ports.EventPublisher
	metrics   MetricsRecorder
	logger    *slog.Logger

	session *session
	limiter *rate.Limiter

	cfgMu  sync.Mutex
	config domain.RunConfig

	procMu     sync.Mutex
	processing map[string]bool

	runMu    sync.Mutex
	stopFlag atomic.Bool

	baseCtx context.Context
	cancel  context.CancelFunc

	// abandonGrace is how much longer than the computed timeout the
	// orchestrator waits for a worker before walking away from it.
	abandonGrace time.Duration
}

func NewOrchestrator(
	source ports.DocumentSource,
	composer *Composer,
	scheduler *RetryScheduler,
	store ports.ProfileStore,
	jobCtx ports.JobContext,
	publisher ports.EventPublisher,
	metrics MetricsRecorder,
	logger *slog.Logger,
	config domain.RunConfig,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		source:       source,
		composer:     composer,
		scheduler:    scheduler,
		store:        store,
		jobCtx:       jobCtx,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		session:      newSession(),
		limiter:      rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		config:       config.Normalize(),
		processing:   make(map[string]bool),
		baseCtx:      ctx,
		cancel:       cancel,
		abandonGrace: 2 * time.Second,
	}
}

// StartCycle launches a processing cycle in the background. No-op when a
// cycle is already active.
func (o *Orchestrator) StartCycle() {
	if !o.session.beginRun() {
		return
	}
	o.stopFlag.Store(false)
	go o.runCycle()
}

// Stop signals the active cycle to end after the current batch. In-flight
// workers past their timeout are abandoned, not interrupted.
func (o *Orchestrator) Stop() {
	o.stopFlag.Store(true)
}

// Close stops background work for process shutdown.
func (o *Orchestrator) Close() {
	o.Stop()
	o.cancel()
}

func (o *Orchestrator) Status() ports.CycleStatus {
	active, status, processed, total := o.session.snapshot()
	quick, long, format, failed := o.scheduler.Sizes()
	return ports.CycleStatus{
		Active:    active,
		Status:    status,
		Processed: processed,
		Total:     total,
		QueueSizes: ports.QueueSizes{
			Processing: o.processingCount(),
			Quick:      quick,
			Long:       long,
			Format:     format,
			Failed:     failed,
		},
		Config: o.currentConfig(),
	}
}

func (o *Orchestrator) DrainNewlyCompleted() []string {
	return o.session.drainNewlyCompleted()
}

func (o *Orchestrator) FailedItems() []domain.RetryEntry {
	return o.scheduler.FailedItems()
}

func (o *Orchestrator) ManualRetry(candidateID string) bool {
	return o.scheduler.ManualRetry(candidateID)
}

// UpdateConfig merges a partial configuration; the result applies from the
// next cycle.
func (o *Orchestrator) UpdateConfig(patch ports.ConfigPatch) domain.RunConfig {
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()
	if patch.QuickTimeoutSeconds != nil {
		o.config.QuickTimeout = time.Duration(*patch.QuickTimeoutSeconds) * time.Second
	}
	if patch.LongTimeoutSeconds != nil {
		o.config.LongTimeout = time.Duration(*patch.LongTimeoutSeconds) * time.Second
	}
	if patch.MaxRetries != nil {
		o.config.MaxRetries = *patch.MaxRetries
	}
	if patch.BackoffBaseSeconds != nil {
		o.config.BackoffBase = time.Duration(*patch.BackoffBaseSeconds) * time.Second
	}
	if patch.BatchSize != nil {
		o.config.BatchSize = *patch.BatchSize
	}
	o.config = o.config.Normalize()
	return o.config
}

func (o *Orchestrator) currentConfig() domain.RunConfig {
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()
	return o.config
}

func (o *Orchestrator) runCycle() {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	cfg := o.currentConfig()
	o.scheduler.Reconfigure(cfg.MaxRetries, cfg.BackoffBase)

	status := runCompleted
	if err := o.cycle(cfg); err != nil {
		o.logger.Error("processing_cycle_failed", "error", err)
		status = runError
	}
	o.session.endRun(status)
	o.publishQueueSizes()
}

func (o *Orchestrator) cycle(cfg domain.RunConfig) error {
	work, err := o.discover()
	if err != nil {
		return err
	}

	if len(work) == 0 {
		for _, entry := range o.scheduler.EligibleNow() {
			work = append(work, entry.Candidate)
		}
	}
	if len(work) == 0 {
		return nil
	}
	o.session.setTotal(len(work))

	jobDescription, err := o.jobCtx.JobDescription(o.baseCtx)
	if err != nil {
		return fmt.Errorf("load job description: %w", err)
	}

	for start := 0; start < len(work); start += cfg.BatchSize {
		if o.stopFlag.Load() {
			return nil
		}
		end := min(start+cfg.BatchSize, len(work))
		o.processBatch(work[start:end], jobDescription, cfg, cfg.QuickTimeout)

		if err := o.limiter.Wait(o.baseCtx); err != nil {
			return nil // shutdown
		}
	}

	// Retry items that became eligible while the main set was draining are
	// handled one at a time before the cycle ends.
	for _, entry := range o.scheduler.EligibleNow() {
		if o.stopFlag.Load() {
			return nil
		}
		o.session.addTotal(1)
		o.processBatch([]domain.Candidate{entry.Candidate}, jobDescription, cfg, cfg.QuickTimeout)
		if err := o.limiter.Wait(o.baseCtx); err != nil {
			return nil
		}
	}
	return nil
}

// discover lists every known candidate minus those completed, in flight,
// terminally failed or already waiting in a retry queue.
func (o *Orchestrator) discover() ([]domain.Candidate, error) {
	candidates, err := o.source.ListCandidates(o.baseCtx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	completed, err := o.store.CompletedIDs(o.baseCtx)
	if err != nil {
		return nil, fmt.Errorf("list completed: %w", err)
	}
	done := make(map[string]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}

	queued := o.scheduler.PendingIDs()
	failed := make(map[string]bool)
	for _, entry := range o.scheduler.FailedItems() {
		failed[entry.Candidate.ID] = true
	}

	var work []domain.Candidate
	for _, candidate := range candidates {
		if done[candidate.ID] || queued[candidate.ID] || failed[candidate.ID] || o.isProcessing(candidate.ID) {
			continue
		}
		work = append(work, candidate)
	}
	return work, nil
}

// processBatch reads resume texts, dispatches the batch under its computed
// timeout and routes each outcome. Never returns an error: every failure is
// absorbed by the retry scheduler.
func (o *Orchestrator) processBatch(batch []domain.Candidate, jobDescription string, cfg domain.RunConfig, baseTimeout time.Duration) {
	items := o.readTexts(batch)
	if len(items) == 0 {
		return
	}

	timeout := computeTimeout(baseTimeout, len(items), averageLength(items))
	o.dispatch(items, jobDescription, timeout, true)
	o.publishQueueSizes()
}

// dispatch runs the batch call on a worker goroutine and waits at most the
// computed timeout plus a small grace. A worker that misses the deadline is
// abandoned; its context is cancelled so the transport can give up, and any
// late result is discarded.
func (o *Orchestrator) dispatch(items []BatchItem, jobDescription string, timeout time.Duration, allowSplit bool) {
	o.markProcessing(items)
	if o.metrics != nil {
		o.metrics.BatchStarted(len(items))
	}
	started := time.Now()

	ctx, cancel := context.WithTimeout(o.baseCtx, timeout)

	type outcome struct {
		results []ItemResult
		err     error
	}
	resultCh := make(chan outcome, 1)
	go func() {
		results, err := o.composer.ProcessBatch(ctx, items, jobDescription)
		resultCh <- outcome{results: results, err: err}
	}()

	var out outcome
	select {
	case out = <-resultCh:
		cancel()
	case <-time.After(timeout + o.abandonGrace):
		cancel()
		out = outcome{err: domain.WrapError(domain.ErrTimeout, "batch dispatch", context.DeadlineExceeded)}
		o.logger.Warn("batch_worker_abandoned", "batch_size", len(items), "timeout", timeout.String())
	}

	if o.metrics != nil {
		o.metrics.BatchFinished(len(items), time.Since(started), out.err)
	}

	if out.err != nil {
		o.handleBatchError(items, jobDescription, out.err, allowSplit)
		return
	}
	for _, result := range out.results {
		o.handleResult(result)
	}
}

func (o *Orchestrator) handleBatchError(items []BatchItem, jobDescription string, batchErr error, allowSplit bool) {
	// An unmappable batch response is a prompting problem, not an outage:
	// re-run the same resumes one call each before charging anyone a retry.
	if allowSplit && len(items) > 1 && errors.Is(batchErr, ErrBatchDecode) {
		o.logger.Warn("batch_decode_failed_splitting", "batch_size", len(items), "error", batchErr)
		cfg := o.currentConfig()
		for i := range items {
			single := items[i : i+1]
			timeout := computeTimeout(cfg.QuickTimeout, 1, len(single[0].Text))
			o.dispatch(single, jobDescription, timeout, false)
		}
		return
	}

	category := domain.CategoryFor(batchErr)
	for _, item := range items {
		o.clearProcessing(item.Candidate.ID)
		o.scheduler.RecordFailure(item.Candidate, batchErr, category)
		if o.metrics != nil {
			o.metrics.CandidateFinished(string(category))
		}
	}
	o.logger.Warn("batch_failed",
		"batch_size", len(items),
		"category", string(category),
		"error", batchErr,
	)
}

func (o *Orchestrator) handleResult(result ItemResult) {
	o.clearProcessing(result.Candidate.ID)

	if !result.Accepted {
		reason := result.Assessment.Reason()
		err := domain.WrapError(domain.ErrFormatting, "assess profile", fmt.Errorf("%s", reason))
		o.scheduler.RecordFormattingFailure(result.Candidate, err, result.Profile, reason)
		if o.metrics != nil {
			o.metrics.CandidateFinished(string(domain.CategoryFormatting))
		}
		o.logger.Warn("profile_rejected",
			"candidate_id", result.Candidate.ID,
			"score", result.Assessment.Score,
			"issues", reason,
		)
		return
	}

	if err := o.store.Put(o.baseCtx, result.Candidate.ID, result.Profile); err != nil {
		o.scheduler.RecordFailure(result.Candidate, err, domain.CategoryTransport)
		o.logger.Error("store_profile_failed", "candidate_id", result.Candidate.ID, "error", err)
		return
	}

	o.scheduler.MarkSucceeded(result.Candidate.ID)
	o.session.markCompleted(result.Candidate.ID)
	if o.metrics != nil {
		o.metrics.CandidateFinished("completed")
	}
	if o.publisher != nil {
		if err := o.publisher.PublishCandidateProcessed(o.baseCtx, result.Candidate.ID); err != nil {
			o.logger.Warn("publish_completion_failed", "candidate_id", result.Candidate.ID, "error", err)
		}
	}
	o.logger.Info("candidate_completed",
		"candidate_id", result.Candidate.ID,
		"score", result.Assessment.Score,
	)
}

// readTexts extracts resume text for each batch member. Unreadable files are
// routed straight to the retry scheduler as read errors and excluded from
// dispatch.
func (o *Orchestrator) readTexts(batch []domain.Candidate) []BatchItem {
	items := make([]BatchItem, 0, len(batch))
	for _, candidate := range batch {
		text, err := o.source.ReadText(o.baseCtx, candidate)
		if err != nil {
			wrapped := domain.WrapError(domain.ErrReadFailed, "read resume", err)
			o.scheduler.RecordFailure(candidate, wrapped, domain.CategoryReadError)
			if o.metrics != nil {
				o.metrics.CandidateFinished(string(domain.CategoryReadError))
			}
			o.logger.Warn("resume_read_failed", "candidate_id", candidate.ID, "error", err)
			continue
		}
		items = append(items, BatchItem{Candidate: candidate, Text: text})
	}
	return items
}

// ForceProcess analyzes an explicit id list synchronously under the long
// timeout, bypassing discovery and backoff. It refuses to run while a cycle
// is active because the stores and queues are owned by the cycle goroutine.
func (o *Orchestrator) ForceProcess(ctx context.Context, candidateIDs []string) (map[string]domain.Profile, error) {
	if len(candidateIDs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "force process", errors.New("no candidate ids"))
	}
	if o.session.isActive() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "force process", errors.New("processing cycle active"))
	}
	o.runMu.Lock()
	defer o.runMu.Unlock()

	candidates, err := o.source.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	wanted := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		wanted[id] = true
	}

	var items []BatchItem
	for _, candidate := range candidates {
		if !wanted[candidate.ID] {
			continue
		}
		text, err := o.source.ReadText(ctx, candidate)
		if err != nil {
			o.logger.Warn("resume_read_failed", "candidate_id", candidate.ID, "error", err)
			continue
		}
		items = append(items, BatchItem{Candidate: candidate, Text: text})
	}
	if len(items) == 0 {
		return map[string]domain.Profile{}, nil
	}

	jobDescription, err := o.jobCtx.JobDescription(ctx)
	if err != nil {
		return nil, fmt.Errorf("load job description: %w", err)
	}

	cfg := o.currentConfig()
	callCtx, cancel := context.WithTimeout(ctx, cfg.LongTimeout)
	defer cancel()

	results, err := o.composer.ProcessBatch(callCtx, items, jobDescription)
	if err != nil && errors.Is(err, ErrBatchDecode) && len(items) > 1 {
		results = results[:0]
		for _, item := range items {
			result, singleErr := o.composer.ProcessSingle(callCtx, item, jobDescription)
			if singleErr != nil {
				return nil, singleErr
			}
			results = append(results, result)
		}
	} else if err != nil {
		return nil, err
	}

	out := make(map[string]domain.Profile, len(results))
	for _, result := range results {
		out[result.Candidate.ID] = result.Profile
		if !result.Accepted {
			continue
		}
		if err := o.store.Put(ctx, result.Candidate.ID, result.Profile); err != nil {
			return nil, fmt.Errorf("store profile: %w", err)
		}
		o.scheduler.MarkSucceeded(result.Candidate.ID)
	}
	return out, nil
}

func (o *Orchestrator) markProcessing(items []BatchItem) {
	o.procMu.Lock()
	defer o.procMu.Unlock()
	for _, item := range items {
		o.processing[item.Candidate.ID] = true
	}
}

func (o *Orchestrator) clearProcessing(candidateID string) {
	o.procMu.Lock()
	defer o.procMu.Unlock()
	delete(o.processing, candidateID)
}

func (o *Orchestrator) isProcessing(candidateID string) bool {
	o.procMu.Lock()
	defer o.procMu.Unlock()
	return o.processing[candidateID]
}

func (o *Orchestrator) processingCount() int {
	o.procMu.Lock()
	defer o.procMu.Unlock()
	return len(o.processing)
}

func (o *Orchestrator) publishQueueSizes() {
	if o.metrics == nil {
		return
	}
	quick, long, format, failed := o.scheduler.Sizes()
	o.metrics.QueueSizes(o.processingCount(), quick, long, format, failed)
}

// computeTimeout scales the base timeout by batch size, roughly 0.7 extra per
// item beyond the first, then stretches it for long resumes.
func computeTimeout(base time.Duration, batchSize, avgLength int) time.Duration {
	scale := 1.0 + 0.7*float64(batchSize-1)
	switch {
	case avgLength >= 8000:
		scale *= 1.5
	case avgLength >= 4000:
		scale *= 1.2
	}
	return time.Duration(float64(base) * scale)
}

func averageLength(items []BatchItem) int {
	if len(items) == 0 {
		return 0
	}
	total := 0
	for _, item := range items {
		total += len(item.Text)
	}
	return total / len(items)
}
