package usecase

import "sync"

type runStatus string

const (
	runIdle       runStatus = "idle"
	runProcessing runStatus = "processing"
	runCompleted  runStatus = "completed"
	runError      runStatus = "error"
)

// session holds the process-wide mutable run state. The orchestrator
// goroutine writes it while polling callers read it, so every access goes
// through the one mutex; DrainNewlyCompleted must be atomic with respect to
// concurrent appends because it clears on read.
type session struct {
	mu sync.Mutex

	active         bool
	status         runStatus
	processed      int
	total          int
	newlyCompleted []string
}

func newSession() *session {
	return &session{status: runIdle}
}

// beginRun flips the session into an active run; returns false when a run is
// already in flight so StartCycle stays idempotent.
func (s *session) beginRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	s.status = runProcessing
	s.processed = 0
	s.total = 0
	return true
}

func (s *session) endRun(status runStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.status = status
}

func (s *session) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *session) setTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
}

func (s *session) addTotal(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total += n
}

func (s *session) markCompleted(candidateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.newlyCompleted = append(s.newlyCompleted, candidateID)
}

func (s *session) snapshot() (active bool, status string, processed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, string(s.status), s.processed, s.total
}

// drainNewlyCompleted returns and clears the ids completed since the last
// call. Consumed by the polling UI.
func (s *session) drainNewlyCompleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.newlyCompleted
	s.newlyCompleted = nil
	return out
}
