package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/resume-screener/internal/core/domain"
	"github.com/kirillkom/resume-screener/internal/core/ports"
)

type sourceFake struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	texts      map[string]string
	readErrs   map[string]error
}

func (f *sourceFake) ListCandidates(context.Context) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Candidate, len(f.candidates))
	copy(out, f.candidates)
	return out, nil
}

func (f *sourceFake) ReadText(_ context.Context, candidate domain.Candidate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErrs[candidate.ID]; err != nil {
		return "", err
	}
	return f.texts[candidate.ID], nil
}

type storeFake struct {
	mu       sync.Mutex
	profiles map[string]domain.Profile
	putErr   error
}

func newStoreFake() *storeFake {
	return &storeFake{profiles: make(map[string]domain.Profile)}
}

func (f *storeFake) Has(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.profiles[id]
	return ok, nil
}

func (f *storeFake) Put(_ context.Context, id string, profile domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.profiles[id] = profile
	return nil
}

func (f *storeFake) Get(_ context.Context, id string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[id]
	if !ok {
		return nil, domain.ErrCandidateNotFound
	}
	return &profile, nil
}

func (f *storeFake) CompletedIDs(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.profiles))
	for id := range f.profiles {
		out = append(out, id)
	}
	return out, nil
}

func (f *storeFake) DeleteAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = make(map[string]domain.Profile)
	return nil
}

type jobCtxFake struct{ description string }

func (f *jobCtxFake) JobDescription(context.Context) (string, error) { return f.description, nil }
func (f *jobCtxFake) UpdateJobDescription(_ context.Context, d string) error {
	f.description = d
	return nil
}

type publisherFake struct {
	mu  sync.Mutex
	ids []string
}

func (f *publisherFake) PublishCandidateProcessed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	return nil
}

func (f *publisherFake) published() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}

// scriptedGenerator answers each call through the respond callback; call
// numbering starts at 1.
type scriptedGenerator struct {
	mu      sync.Mutex
	calls   int
	respond func(call int, ctx context.Context, prompt string) (string, error)
}

func (f *scriptedGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.respond(call, ctx, prompt)
}

func (f *scriptedGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func goodProfileJSON(nickname string) string {
	return fmt.Sprintf(`{"nickname": %q, "summary": "built specific things",
		"differentiators": [{"claim": "owns the on-call rotation", "evidence": "ran on-call"}],
		"relevant_achievements": [{"achievement": "cut latency 30%%", "evidence": "30%% faster"}],
		"work_history": [{"title": "Engineer", "company": "Initech", "years": "2020-2024"}]}`, nickname)
}

func goodProfileArrayJSON(n int) string {
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		parts = append(parts, goodProfileJSON(fmt.Sprintf("Distinct Profile %d", i)))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	source       *sourceFake
	store        *storeFake
	scheduler    *RetryScheduler
	publisher    *publisherFake
}

func newOrchestratorFixture(t *testing.T, gen *scriptedGenerator, cfg domain.RunConfig, docs int) *orchestratorFixture {
	t.Helper()

	source := &sourceFake{texts: make(map[string]string), readErrs: make(map[string]error)}
	for i := 0; i < docs; i++ {
		id := fmt.Sprintf("cand_%d", i)
		source.candidates = append(source.candidates, testCandidate(id))
		source.texts[id] = "worked at Initech as an engineer, responsibilities included CI"
	}

	store := newStoreFake()
	scheduler := NewRetryScheduler(cfg.MaxRetries, cfg.BackoffBase)
	publisher := &publisherFake{}
	orchestrator := NewOrchestrator(source, NewComposer(gen), scheduler, store, &jobCtxFake{}, publisher, nil, nil, cfg)
	orchestrator.limiter = rate.NewLimiter(rate.Inf, 1)
	t.Cleanup(orchestrator.Close)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		source:       source,
		store:        store,
		scheduler:    scheduler,
		publisher:    publisher,
	}
}

func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if status := o.Status(); !status.Active {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("cycle did not finish in time")
}

func TestCycleBatchesAndCompletesAllCandidates(t *testing.T) {
	gen := &scriptedGenerator{respond: func(call int, _ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return goodProfileArrayJSON(5), nil
		}
		return goodProfileJSON("Solo Result"), nil
	}}
	fx := newOrchestratorFixture(t, gen, domain.DefaultRunConfig(), 6)

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	if got := gen.callCount(); got != 2 {
		t.Fatalf("expected 2 generator calls for 6 docs at batch size 5, got %d", got)
	}

	status := fx.orchestrator.Status()
	if status.Status != "completed" {
		t.Fatalf("expected completed status, got %q", status.Status)
	}
	if status.Processed != 6 || status.Total != 6 {
		t.Fatalf("expected 6/6 processed, got %d/%d", status.Processed, status.Total)
	}

	ids, err := fx.store.CompletedIDs(context.Background())
	if err != nil || len(ids) != 6 {
		t.Fatalf("expected 6 stored profiles, got %d (%v)", len(ids), err)
	}
	if published := fx.publisher.published(); len(published) != 6 {
		t.Fatalf("expected 6 completion events, got %d", len(published))
	}
}

func TestStartCycleIsIdempotent(t *testing.T) {
	release := make(chan struct{})
	gen := &scriptedGenerator{respond: func(int, context.Context, string) (string, error) {
		<-release
		return goodProfileJSON("Late Result"), nil
	}}
	fx := newOrchestratorFixture(t, gen, domain.DefaultRunConfig(), 1)

	fx.orchestrator.StartCycle()
	fx.orchestrator.StartCycle()
	fx.orchestrator.StartCycle()
	close(release)
	waitIdle(t, fx.orchestrator)

	if got := gen.callCount(); got != 1 {
		t.Fatalf("duplicate StartCycle must not double-process, got %d calls", got)
	}
}

func TestTimeoutRoutesToLongQueue(t *testing.T) {
	cfg := domain.DefaultRunConfig()
	cfg.QuickTimeout = 30 * time.Millisecond

	gen := &scriptedGenerator{respond: func(_ int, ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	fx := newOrchestratorFixture(t, gen, cfg, 1)

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	_, long, _, failed := fx.scheduler.Sizes()
	if long != 1 || failed != 0 {
		t.Fatalf("timeout must land in the long queue, long=%d failed=%d", long, failed)
	}

	// One attempt charged; not yet eligible inside its backoff window.
	if eligible := fx.scheduler.EligibleNow(); len(eligible) != 0 {
		t.Fatalf("entry must still be inside its backoff window, got %+v", eligible)
	}
	pending := fx.scheduler.PendingIDs()
	if !pending["cand_0"] {
		t.Fatalf("candidate must remain pending for retry")
	}
}

func TestAbandonedWorkerCountsAsTimeout(t *testing.T) {
	cfg := domain.DefaultRunConfig()
	cfg.QuickTimeout = 20 * time.Millisecond

	gen := &scriptedGenerator{respond: func(_ int, _ context.Context, _ string) (string, error) {
		// Ignores cancellation entirely.
		time.Sleep(300 * time.Millisecond)
		return goodProfileJSON("Too Late"), nil
	}}
	fx := newOrchestratorFixture(t, gen, cfg, 1)
	fx.orchestrator.abandonGrace = 20 * time.Millisecond

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	_, long, _, _ := fx.scheduler.Sizes()
	if long != 1 {
		t.Fatalf("abandoned worker must count as a timeout, long=%d", long)
	}
	if ids, _ := fx.store.CompletedIDs(context.Background()); len(ids) != 0 {
		t.Fatalf("late result must be discarded, got stored profiles %v", ids)
	}
}

func TestBatchDecodeFailureSplitsWithoutChargingRetry(t *testing.T) {
	gen := &scriptedGenerator{respond: func(call int, _ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return "here are the results you wanted", nil
		}
		return goodProfileJSON(fmt.Sprintf("Split Result %d", call)), nil
	}}
	cfg := domain.DefaultRunConfig()
	cfg.BatchSize = 3
	fx := newOrchestratorFixture(t, gen, cfg, 3)

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	// One failed batch call plus three single calls.
	if got := gen.callCount(); got != 4 {
		t.Fatalf("expected batch + 3 singles, got %d calls", got)
	}
	if ids, _ := fx.store.CompletedIDs(context.Background()); len(ids) != 3 {
		t.Fatalf("expected all candidates completed after split, got %v", ids)
	}
	quick, long, format, failed := fx.scheduler.Sizes()
	if quick+long+format+failed != 0 {
		t.Fatalf("split recovery must not charge retries, sizes=%d/%d/%d/%d", quick, long, format, failed)
	}
}

func TestRejectedProfileGoesToFormatQueueWithProfile(t *testing.T) {
	gen := &scriptedGenerator{respond: func(int, context.Context, string) (string, error) {
		return `{"nickname": "Tech Expert", "summary": "Manual review needed"}`, nil
	}}
	fx := newOrchestratorFixture(t, gen, domain.DefaultRunConfig(), 1)

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	_, _, format, _ := fx.scheduler.Sizes()
	if format != 1 {
		t.Fatalf("rejected profile must land in format queue, format=%d", format)
	}

	base := fx.scheduler.now()
	fx.scheduler.now = func() time.Time { return base.Add(time.Hour) }
	eligible := fx.scheduler.EligibleNow()
	if len(eligible) != 1 {
		t.Fatalf("expected one eligible entry, got %d", len(eligible))
	}
	entry := eligible[0]
	if entry.RejectedProfile == nil || entry.RejectedProfile.Nickname != "Tech Expert" {
		t.Fatalf("rejected profile must be retained on the entry, got %+v", entry.RejectedProfile)
	}
	if entry.RejectReason == "" {
		t.Fatalf("reject reason must be recorded")
	}
}

func TestReadErrorExcludedFromDispatch(t *testing.T) {
	gen := &scriptedGenerator{respond: func(int, context.Context, string) (string, error) {
		return goodProfileJSON("Readable One"), nil
	}}
	cfg := domain.DefaultRunConfig()
	cfg.BatchSize = 2
	fx := newOrchestratorFixture(t, gen, cfg, 2)
	fx.source.readErrs["cand_0"] = errors.New("pdf is encrypted")

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	quick, _, _, _ := fx.scheduler.Sizes()
	if quick != 1 {
		t.Fatalf("unreadable resume must be queued quick, quick=%d", quick)
	}
	if ids, _ := fx.store.CompletedIDs(context.Background()); len(ids) != 1 {
		t.Fatalf("readable candidate must still complete, got %v", ids)
	}
}

func TestRetryCeilingThenManualRetryCompletes(t *testing.T) {
	cfg := domain.DefaultRunConfig()
	cfg.MaxRetries = 1

	var failing sync.Map
	failing.Store("on", true)
	gen := &scriptedGenerator{respond: func(int, context.Context, string) (string, error) {
		if _, bad := failing.Load("on"); bad {
			return "", errors.New("upstream 502")
		}
		return goodProfileJSON("Second Chance"), nil
	}}
	fx := newOrchestratorFixture(t, gen, cfg, 1)

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	failedItems := fx.orchestrator.FailedItems()
	if len(failedItems) != 1 {
		t.Fatalf("expected one terminally failed item, got %d", len(failedItems))
	}
	if failedItems[0].Category != domain.CategoryTransport {
		t.Fatalf("expected transport category, got %s", failedItems[0].Category)
	}

	// A new cycle must not touch the terminally failed candidate.
	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)
	if got := gen.callCount(); got != 1 {
		t.Fatalf("failed candidate must not be re-dispatched, got %d calls", got)
	}

	failing.Delete("on")
	if !fx.orchestrator.ManualRetry("cand_0") {
		t.Fatalf("manual retry must accept a failed candidate")
	}

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	if ids, _ := fx.store.CompletedIDs(context.Background()); len(ids) != 1 {
		t.Fatalf("candidate must complete after manual retry, got %v", ids)
	}
	if items := fx.orchestrator.FailedItems(); len(items) != 0 {
		t.Fatalf("failed queue must be empty after recovery, got %+v", items)
	}
}

func TestDrainNewlyCompletedClearsOnRead(t *testing.T) {
	gen := &scriptedGenerator{respond: func(int, context.Context, string) (string, error) {
		return goodProfileJSON("Drained Once"), nil
	}}
	fx := newOrchestratorFixture(t, gen, domain.DefaultRunConfig(), 1)

	fx.orchestrator.StartCycle()
	waitIdle(t, fx.orchestrator)

	first := fx.orchestrator.DrainNewlyCompleted()
	if len(first) != 1 || first[0] != "cand_0" {
		t.Fatalf("expected one newly completed id, got %v", first)
	}
	if second := fx.orchestrator.DrainNewlyCompleted(); len(second) != 0 {
		t.Fatalf("drain must clear on read, got %v", second)
	}
}

func TestForceProcessRequiresIDs(t *testing.T) {
	gen := &scriptedGenerator{respond: func(int, context.Context, string) (string, error) {
		return goodProfileJSON("Unused"), nil
	}}
	fx := newOrchestratorFixture(t, gen, domain.DefaultRunConfig(), 1)

	_, err := fx.orchestrator.ForceProcess(context.Background(), nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestForceProcessStoresAcceptedProfiles(t *testing.T) {
	gen := &scriptedGenerator{respond: func(_ int, _ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "JSON array") {
			return goodProfileArrayJSON(2), nil
		}
		return goodProfileJSON("Forced"), nil
	}}
	fx := newOrchestratorFixture(t, gen, domain.DefaultRunConfig(), 3)

	profiles, err := fx.orchestrator.ForceProcess(context.Background(), []string{"cand_0", "cand_2"})
	if err != nil {
		t.Fatalf("force process: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if _, ok := profiles["cand_1"]; ok {
		t.Fatalf("unrequested candidate must not be processed")
	}
	if ids, _ := fx.store.CompletedIDs(context.Background()); len(ids) != 2 {
		t.Fatalf("accepted forced profiles must be stored, got %v", ids)
	}
}

func TestUpdateConfigAppliesNextCycle(t *testing.T) {
	gen := &scriptedGenerator{respond: func(int, context.Context, string) (string, error) {
		return goodProfileJSON("Config Probe"), nil
	}}
	fx := newOrchestratorFixture(t, gen, domain.DefaultRunConfig(), 0)

	batch := 2
	retries := 7
	applied := fx.orchestrator.UpdateConfig(ports.ConfigPatch{BatchSize: &batch, MaxRetries: &retries})
	if applied.BatchSize != 2 || applied.MaxRetries != 7 {
		t.Fatalf("unexpected applied config %+v", applied)
	}
	if got := fx.orchestrator.Status().Config.BatchSize; got != 2 {
		t.Fatalf("status must report the new batch size, got %d", got)
	}
}

func TestComputeTimeoutScaling(t *testing.T) {
	base := 100 * time.Second

	if got := computeTimeout(base, 1, 100); got != base {
		t.Fatalf("single short item must keep the base timeout, got %s", got)
	}
	if got := computeTimeout(base, 5, 100); got != 380*time.Second {
		t.Fatalf("batch of 5 must scale 3.8x, got %s", got)
	}
	if got := computeTimeout(base, 1, 9000); got != 150*time.Second {
		t.Fatalf("very long resumes must scale 1.5x, got %s", got)
	}
	if got := computeTimeout(base, 1, 5000); got != 120*time.Second {
		t.Fatalf("long resumes must scale 1.2x, got %s", got)
	}
}
