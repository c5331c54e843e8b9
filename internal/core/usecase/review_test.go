package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

type decisionStoreFake struct {
	mu      sync.Mutex
	records []domain.DecisionRecord
	order   []string
}

func (f *decisionStoreFake) Record(_ context.Context, rec domain.DecisionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.records {
		if existing.CandidateID == rec.CandidateID && existing.Decision == rec.Decision {
			return nil
		}
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *decisionStoreFake) Remove(_ context.Context, candidateID string, decision domain.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, rec := range f.records {
		if rec.CandidateID == candidateID && rec.Decision == decision {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *decisionStoreFake) List(_ context.Context, decision domain.Decision) ([]domain.DecisionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DecisionRecord
	for _, rec := range f.records {
		if rec.Decision == decision {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *decisionStoreFake) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = nil
	f.order = nil
	return nil
}

func (f *decisionStoreFake) SetOrder(_ context.Context, orderedIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append([]string(nil), orderedIDs...)
	return nil
}

func (f *decisionStoreFake) Order(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...), nil
}

type reviewFixture struct {
	review    *ReviewService
	source    *sourceFake
	store     *storeFake
	decisions *decisionStoreFake
	jobCtx    *jobCtxFake
}

func newReviewFixture(ids ...string) *reviewFixture {
	source := &sourceFake{texts: make(map[string]string), readErrs: make(map[string]error)}
	store := newStoreFake()
	for _, id := range ids {
		source.candidates = append(source.candidates, testCandidate(id))
		profile := domain.Profile{Nickname: "Nickname " + id, Summary: "summary"}
		profile.Normalize()
		store.profiles[id] = profile
	}
	decisions := &decisionStoreFake{}
	jobCtx := &jobCtxFake{description: "original role"}
	return &reviewFixture{
		review:    NewReviewService(source, store, decisions, jobCtx),
		source:    source,
		store:     store,
		decisions: decisions,
		jobCtx:    jobCtx,
	}
}

func TestListCandidatesHidesDecided(t *testing.T) {
	fx := newReviewFixture("a", "b", "c")
	ctx := context.Background()

	if err := fx.review.Decide(ctx, "b", domain.DecisionPass); err != nil {
		t.Fatalf("decide: %v", err)
	}

	views, err := fx.review.ListCandidates(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 undecided candidates, got %d", len(views))
	}
	for _, view := range views {
		if view.ID == "b" {
			t.Fatalf("decided candidate must be hidden")
		}
		if view.Name != "Nickname "+view.ID {
			t.Fatalf("view must show the nickname, got %q", view.Name)
		}
	}
}

func TestListCandidatesMarksUnprocessed(t *testing.T) {
	fx := newReviewFixture("a")
	fx.source.candidates = append(fx.source.candidates, testCandidate("pending"))

	views, err := fx.review.ListCandidates(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	var pending *CandidateView
	for i := range views {
		if views[i].ID == "pending" {
			pending = &views[i]
		}
	}
	if pending == nil || !pending.Processing {
		t.Fatalf("unprocessed candidate must be marked processing, got %+v", pending)
	}
	if pending.Name != "Processing..." {
		t.Fatalf("unexpected placeholder name %q", pending.Name)
	}
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	fx := newReviewFixture("a")
	err := fx.review.Decide(context.Background(), "a", domain.Decision("maybe"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUndoLastRevertsMostRecent(t *testing.T) {
	fx := newReviewFixture("a", "b")
	ctx := context.Background()

	if err := fx.review.Decide(ctx, "a", domain.DecisionSave); err != nil {
		t.Fatalf("decide a: %v", err)
	}
	if err := fx.review.Decide(ctx, "b", domain.DecisionPass); err != nil {
		t.Fatalf("decide b: %v", err)
	}

	undone, err := fx.review.UndoLast(ctx)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone != "b" {
		t.Fatalf("expected most recent decision undone, got %q", undone)
	}

	views, err := fx.review.ListCandidates(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].ID != "b" {
		t.Fatalf("undone candidate must reappear, got %+v", views)
	}
}

func TestUndoLastWithoutHistory(t *testing.T) {
	fx := newReviewFixture("a")
	if _, err := fx.review.UndoLast(context.Background()); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty history, got %v", err)
	}
}

func TestRestartClearsDecisions(t *testing.T) {
	fx := newReviewFixture("a", "b")
	ctx := context.Background()

	_ = fx.review.Decide(ctx, "a", domain.DecisionSave)
	_ = fx.review.Decide(ctx, "b", domain.DecisionPass)

	if err := fx.review.Restart(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}

	views, err := fx.review.ListCandidates(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("all candidates must reappear after restart, got %d", len(views))
	}
	if _, err := fx.review.UndoLast(ctx); err == nil {
		t.Fatalf("undo history must be cleared by restart")
	}
}

func TestSavedCandidatesIncludesStarred(t *testing.T) {
	fx := newReviewFixture("a", "b", "c")
	ctx := context.Background()

	_ = fx.review.Decide(ctx, "a", domain.DecisionSave)
	_ = fx.review.Decide(ctx, "b", domain.DecisionStar)
	_ = fx.review.Decide(ctx, "c", domain.DecisionPass)

	views, err := fx.review.SavedCandidates(ctx)
	if err != nil {
		t.Fatalf("saved: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected saved and starred only, got %d", len(views))
	}
	starredSeen := false
	for _, view := range views {
		if view.ID == "c" {
			t.Fatalf("passed candidate must not appear in shortlist")
		}
		if view.ID == "b" {
			if !view.Starred {
				t.Fatalf("starred candidate must be flagged")
			}
			starredSeen = true
		}
	}
	if !starredSeen {
		t.Fatalf("starred candidate missing from shortlist")
	}
}

func TestSavedCandidatesAppliesCustomOrder(t *testing.T) {
	fx := newReviewFixture("a", "b", "c")
	ctx := context.Background()

	_ = fx.review.Decide(ctx, "a", domain.DecisionSave)
	_ = fx.review.Decide(ctx, "b", domain.DecisionSave)
	_ = fx.review.Decide(ctx, "c", domain.DecisionSave)

	kept, err := fx.review.UpdateOrder(ctx, []string{"c", "a", "ghost"})
	if err != nil {
		t.Fatalf("update order: %v", err)
	}
	if kept != 2 {
		t.Fatalf("unsaved ids must be dropped from the order, kept=%d", kept)
	}

	views, err := fx.review.SavedCandidates(ctx)
	if err != nil {
		t.Fatalf("saved: %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("expected 3 shortlisted, got %d", len(views))
	}
	if views[0].ID != "c" || views[1].ID != "a" {
		t.Fatalf("custom order must lead, got %s, %s", views[0].ID, views[1].ID)
	}
	if views[2].ID != "b" {
		t.Fatalf("unordered saves must follow, got %s", views[2].ID)
	}
}

func TestSavedCandidatesDefaultOrderMostRecentFirst(t *testing.T) {
	fx := newReviewFixture("a", "b")
	ctx := context.Background()

	now := time.Now().UTC()
	_ = fx.decisions.Record(ctx, domain.DecisionRecord{CandidateID: "a", Decision: domain.DecisionSave, DecidedAt: now.Add(-time.Hour)})
	_ = fx.decisions.Record(ctx, domain.DecisionRecord{CandidateID: "b", Decision: domain.DecisionSave, DecidedAt: now})

	views, err := fx.review.SavedCandidates(ctx)
	if err != nil {
		t.Fatalf("saved: %v", err)
	}
	if len(views) != 2 || views[0].ID != "b" {
		t.Fatalf("most recent save must come first, got %+v", views)
	}
}

func TestUpdateJobDescriptionClearsProfiles(t *testing.T) {
	fx := newReviewFixture("a", "b")
	ctx := context.Background()

	if err := fx.review.UpdateJobDescription(ctx, "new role"); err != nil {
		t.Fatalf("update job description: %v", err)
	}
	if fx.jobCtx.description != "new role" {
		t.Fatalf("job description not updated, got %q", fx.jobCtx.description)
	}
	ids, _ := fx.store.CompletedIDs(ctx)
	if len(ids) != 0 {
		t.Fatalf("cached profiles must be cleared, got %v", ids)
	}
}

func TestGetCandidateNotFound(t *testing.T) {
	fx := newReviewFixture("a")
	if _, err := fx.review.GetCandidate(context.Background(), "missing"); !domain.IsKind(err, domain.ErrCandidateNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
