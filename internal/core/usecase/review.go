package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kirillkom/resume-screener/internal/core/domain"
	"github.com/kirillkom/resume-screener/internal/core/ports"
)

// CandidateView is what the reviewing UI renders: the anonymized profile,
// never the candidate's real name.
type CandidateView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Filename   string         `json:"filename"`
	Profile    domain.Profile `json:"profile"`
	Processing bool           `json:"processing,omitempty"`
	SavedAt    time.Time      `json:"saved_at,omitzero"`
	Starred    bool           `json:"is_starred,omitempty"`
}

// ReviewService implements the reviewer-facing flow: browse candidates,
// record save/pass/star decisions, undo the last one, restart the session
// and list the shortlist in its custom order.
type ReviewService struct {
	source    ports.DocumentSource
	store     ports.ProfileStore
	decisions ports.DecisionStore
	jobCtx    ports.JobContext

	mu      sync.Mutex
	history []domain.DecisionRecord
}

func NewReviewService(
	source ports.DocumentSource,
	store ports.ProfileStore,
	decisions ports.DecisionStore,
	jobCtx ports.JobContext,
) *ReviewService {
	return &ReviewService{
		source:    source,
		store:     store,
		decisions: decisions,
		jobCtx:    jobCtx,
	}
}

// ListCandidates returns every undecided candidate. Processed ones carry
// their profile; unprocessed ones carry a placeholder with Processing set.
func (s *ReviewService) ListCandidates(ctx context.Context) ([]CandidateView, error) {
	candidates, err := s.source.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	decided, err := s.decidedIDs(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]CandidateView, 0, len(candidates))
	for _, candidate := range candidates {
		if decided[candidate.ID] {
			continue
		}
		profile, err := s.store.Get(ctx, candidate.ID)
		if err != nil && !domain.IsKind(err, domain.ErrCandidateNotFound) {
			return nil, fmt.Errorf("load profile: %w", err)
		}
		view := CandidateView{ID: candidate.ID, Filename: candidate.Filename}
		if profile != nil {
			view.Name = profile.Nickname
			view.Profile = *profile
		} else {
			view.Name = "Processing..."
			placeholder := domain.Profile{Nickname: "Processing...", Summary: "Processing..."}
			placeholder.Normalize()
			view.Profile = placeholder
			view.Processing = true
		}
		views = append(views, view)
	}
	return views, nil
}

// GetCandidate returns one candidate with its profile, or ErrCandidateNotFound.
func (s *ReviewService) GetCandidate(ctx context.Context, candidateID string) (*CandidateView, error) {
	candidates, err := s.source.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	for _, candidate := range candidates {
		if candidate.ID != candidateID {
			continue
		}
		profile, err := s.store.Get(ctx, candidateID)
		if err != nil {
			return nil, err
		}
		return &CandidateView{
			ID:       candidate.ID,
			Name:     profile.Nickname,
			Filename: candidate.Filename,
			Profile:  *profile,
		}, nil
	}
	return nil, domain.WrapError(domain.ErrCandidateNotFound, "get candidate", errors.New(candidateID))
}

// Decide records a save/pass/star decision and remembers it for undo.
func (s *ReviewService) Decide(ctx context.Context, candidateID string, decision domain.Decision) error {
	switch decision {
	case domain.DecisionSave, domain.DecisionPass, domain.DecisionStar:
	default:
		return domain.WrapError(domain.ErrInvalidInput, "decide", fmt.Errorf("unknown decision %q", decision))
	}

	rec := domain.DecisionRecord{
		CandidateID: candidateID,
		Decision:    decision,
		DecidedAt:   time.Now().UTC(),
	}
	if err := s.decisions.Record(ctx, rec); err != nil {
		return fmt.Errorf("record decision: %w", err)
	}

	s.mu.Lock()
	s.history = append(s.history, rec)
	s.mu.Unlock()
	return nil
}

// UndoLast reverts the most recent decision of this session. Returns the
// candidate id that was undone, or ErrInvalidInput when there is no history.
func (s *ReviewService) UndoLast(ctx context.Context) (string, error) {
	s.mu.Lock()
	if len(s.history) == 0 {
		s.mu.Unlock()
		return "", domain.WrapError(domain.ErrInvalidInput, "undo", errors.New("no history to undo"))
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.mu.Unlock()

	if err := s.decisions.Remove(ctx, last.CandidateID, last.Decision); err != nil {
		return "", fmt.Errorf("remove decision: %w", err)
	}
	return last.CandidateID, nil
}

// Restart clears every decision and the undo history.
func (s *ReviewService) Restart(ctx context.Context) error {
	if err := s.decisions.Clear(ctx); err != nil {
		return fmt.Errorf("clear decisions: %w", err)
	}
	s.mu.Lock()
	s.history = nil
	s.mu.Unlock()
	return nil
}

// SavedCandidates lists saved and starred candidates, custom order first,
// then remaining saves most recent first.
func (s *ReviewService) SavedCandidates(ctx context.Context) ([]CandidateView, error) {
	candidates, err := s.source.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	byID := make(map[string]domain.Candidate, len(candidates))
	for _, candidate := range candidates {
		byID[candidate.ID] = candidate
	}

	var views []CandidateView
	appendDecided := func(records []domain.DecisionRecord, starred bool) error {
		for _, rec := range records {
			candidate, ok := byID[rec.CandidateID]
			if !ok {
				continue
			}
			profile, err := s.store.Get(ctx, rec.CandidateID)
			if err != nil {
				if domain.IsKind(err, domain.ErrCandidateNotFound) {
					continue
				}
				return fmt.Errorf("load profile: %w", err)
			}
			views = append(views, CandidateView{
				ID:       candidate.ID,
				Name:     profile.Nickname,
				Filename: candidate.Filename,
				Profile:  *profile,
				SavedAt:  rec.DecidedAt,
				Starred:  starred,
			})
		}
		return nil
	}

	saved, err := s.decisions.List(ctx, domain.DecisionSave)
	if err != nil {
		return nil, fmt.Errorf("list saved: %w", err)
	}
	if err := appendDecided(saved, false); err != nil {
		return nil, err
	}
	starred, err := s.decisions.List(ctx, domain.DecisionStar)
	if err != nil {
		return nil, fmt.Errorf("list starred: %w", err)
	}
	if err := appendDecided(starred, true); err != nil {
		return nil, err
	}

	order, err := s.decisions.Order(ctx)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return applyCustomOrder(views, order), nil
}

// UpdateOrder stores a custom ordering, dropping ids that are not actually
// saved or starred. Returns how many ids were kept.
func (s *ReviewService) UpdateOrder(ctx context.Context, orderedIDs []string) (int, error) {
	valid := make(map[string]bool)
	for _, decision := range []domain.Decision{domain.DecisionSave, domain.DecisionStar} {
		records, err := s.decisions.List(ctx, decision)
		if err != nil {
			return 0, fmt.Errorf("list decisions: %w", err)
		}
		for _, rec := range records {
			valid[rec.CandidateID] = true
		}
	}

	kept := make([]string, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		if valid[id] {
			kept = append(kept, id)
		}
	}
	if err := s.decisions.SetOrder(ctx, kept); err != nil {
		return 0, fmt.Errorf("store order: %w", err)
	}
	return len(kept), nil
}

// UpdateJobDescription saves a new job description and clears every cached
// profile so the next cycle re-extracts against it.
func (s *ReviewService) UpdateJobDescription(ctx context.Context, description string) error {
	if err := s.jobCtx.UpdateJobDescription(ctx, description); err != nil {
		return fmt.Errorf("update job description: %w", err)
	}
	if err := s.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear profiles: %w", err)
	}
	return nil
}

func (s *ReviewService) decidedIDs(ctx context.Context) (map[string]bool, error) {
	decided := make(map[string]bool)
	for _, decision := range []domain.Decision{domain.DecisionSave, domain.DecisionPass, domain.DecisionStar} {
		records, err := s.decisions.List(ctx, decision)
		if err != nil {
			return nil, fmt.Errorf("list decisions: %w", err)
		}
		for _, rec := range records {
			decided[rec.CandidateID] = true
		}
	}
	return decided, nil
}

func applyCustomOrder(views []CandidateView, order []string) []CandidateView {
	if len(order) == 0 {
		sort.SliceStable(views, func(i, j int) bool {
			return views[i].SavedAt.After(views[j].SavedAt)
		})
		return views
	}

	byID := make(map[string]CandidateView, len(views))
	for _, view := range views {
		byID[view.ID] = view
	}

	ordered := make([]CandidateView, 0, len(views))
	for _, id := range order {
		if view, ok := byID[id]; ok {
			ordered = append(ordered, view)
			delete(byID, id)
		}
	}
	rest := make([]CandidateView, 0, len(byID))
	for _, view := range byID {
		rest = append(rest, view)
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].SavedAt.After(rest[j].SavedAt)
	})
	return append(ordered, rest...)
}
