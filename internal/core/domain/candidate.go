package domain

import "time"

type CandidateStatus string

const (
	StatusUnseen     CandidateStatus = "unseen"
	StatusProcessing CandidateStatus = "processing"
	StatusCompleted  CandidateStatus = "completed"
	StatusFailed     CandidateStatus = "failed"
)

// Candidate identifies one resume file in the candidates folder.
// Produced by the document source and never mutated afterwards.
type Candidate struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

type Decision string

const (
	DecisionSave Decision = "save"
	DecisionPass Decision = "pass"
	DecisionStar Decision = "star"
)

// DecisionRecord is one reviewer action on a candidate.
type DecisionRecord struct {
	CandidateID string    `json:"candidate_id"`
	Decision    Decision  `json:"decision"`
	DecidedAt   time.Time `json:"decided_at"`
}
