package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/resume-screener/internal/core/domain"
	"github.com/kirillkom/resume-screener/internal/core/ports"
)

// ErrBatchDecode signals that a multi-candidate response could not be mapped
// back onto the batch, so the caller should fall back to per-candidate calls.
var ErrBatchDecode = errors.New("batch response unmappable")

// BatchItem pairs a candidate with its already extracted resume text.
type BatchItem struct {
	Candidate domain.Candidate
	Text      string
}

// ItemResult is the per-candidate outcome of one generator call after
// quality assessment. A rejected result keeps the profile and the reason so
// it can be attached to the retry record instead of being discarded.
type ItemResult struct {
	Candidate   domain.Candidate
	Profile     domain.Profile
	Accepted    bool
	Assessment  Assessment
	RawResponse string
}

// Composer builds prompts for one or several resumes and maps generator
// responses back to candidates. Results in a batch response map positionally:
// index j belongs to the j-th candidate of the batch.
type Composer struct {
	generator ports.Generator
}

func NewComposer(generator ports.Generator) *Composer {
	return &Composer{generator: generator}
}

const (
	singleSnippetLimit = 12000
	batchSnippetLimit  = 8000
)

// ProcessBatch runs one generator call for the whole batch. A single-item
// batch uses the single-candidate prompt and expects one object back.
func (c *Composer) ProcessBatch(ctx context.Context, items []BatchItem, jobDescription string) ([]ItemResult, error) {
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) == 1 {
		result, err := c.ProcessSingle(ctx, items[0], jobDescription)
		if err != nil {
			return nil, err
		}
		return []ItemResult{result}, nil
	}

	response, err := c.complete(ctx, BuildBatchPrompt(items, jobDescription))
	if err != nil {
		return nil, err
	}

	profiles, err := DecodeProfileBatch(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBatchDecode, err)
	}
	if len(profiles) < len(items) {
		return nil, fmt.Errorf("%w: %d results for %d candidates", ErrBatchDecode, len(profiles), len(items))
	}

	results := make([]ItemResult, 0, len(items))
	for i, item := range items {
		results = append(results, c.assess(item, profiles[i], response))
	}
	return results, nil
}

// ProcessSingle runs one generator call for one candidate. An unparseable
// response degrades to the heuristic fallback profile, which the assessor
// then rejects as a formatting failure rather than a generator outage.
func (c *Composer) ProcessSingle(ctx context.Context, item BatchItem, jobDescription string) (ItemResult, error) {
	response, err := c.complete(ctx, BuildSinglePrompt(item, jobDescription))
	if err != nil {
		return ItemResult{}, err
	}

	profile, decodeErr := DecodeProfile(response)
	if decodeErr != nil {
		profile = FallbackProfile(response)
	}
	return c.assess(item, profile, response), nil
}

func (c *Composer) assess(item BatchItem, profile domain.Profile, response string) ItemResult {
	assessment := AssessProfile(profile, response, item.Text)
	return ItemResult{
		Candidate:   item.Candidate,
		Profile:     profile,
		Accepted:    assessment.Accepted,
		Assessment:  assessment,
		RawResponse: response,
	}
}

func (c *Composer) complete(ctx context.Context, prompt string) (string, error) {
	response, err := c.generator.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.WrapError(domain.ErrTimeout, "generator complete", err)
		}
		return "", domain.WrapError(domain.ErrTransport, "generator complete", err)
	}
	return response, nil
}

const extractionInstructions = `Analyze the resume content against the job description.

CRITICAL INSTRUCTIONS:
1. Do NOT use generic phrases like "seasoned expert", "proven track record", "perfect fit" or any statement that could apply to most applicants.
2. CITE EVIDENCE: for every claim include the exact verbatim quote from the resume that supports it. Do not paraphrase.
3. Start with what makes the candidate DIFFERENT from typical applicants.
4. If no direct quote supports a claim, do not make the claim.
5. Focus on achievements with concrete numbers, measurable impact or significant scope.
6. Extract ALL work experiences present in the resume, up to 5, most recent first.

Each result must be a JSON object with these exact keys:
- "differentiators": array of 3 objects {"claim": ..., "evidence": exact verbatim quote}
- "nickname": a 2-3 word nickname based on the unique profile, never generic terms
- "summary": 1-2 lines on specific experiences and achievements
- "reservations": array of 2-3 specific concerns or gaps for this role
- "relevant_achievements": array of 4 quantified objects {"achievement": ..., "evidence": exact verbatim quote}
- "wildcard": object {"fact": a unique aspect unlikely to appear in other resumes, "evidence": exact verbatim quote}
- "work_history": array of up to 5 objects {"title", "company", "years"}, most recent first
- "experience_distribution": object with years per sector {"corporate": X, "startup": Y, "nonprofit": Z, "government": W, "education": V, "other": U}
`

// BuildSinglePrompt renders the one-candidate extraction prompt.
func BuildSinglePrompt(item BatchItem, jobDescription string) string {
	var b strings.Builder
	b.WriteString(extractionInstructions)
	b.WriteString("\nReturn a single JSON object. No markdown, no extra keys.\n")
	writeJobDescription(&b, jobDescription)
	b.WriteString("\nResume to analyze:\n")
	b.WriteString(snippet(item.Text, singleSnippetLimit))
	b.WriteString("\n")
	return b.String()
}

// BuildBatchPrompt renders the multi-candidate prompt. The response must be a
// JSON array with one object per resume in the order given here.
func BuildBatchPrompt(items []BatchItem, jobDescription string) string {
	var b strings.Builder
	b.WriteString(extractionInstructions)
	fmt.Fprintf(&b, "\nReturn a JSON array of exactly %d objects, one per resume, in the order the resumes appear below. No markdown, no extra keys.\n", len(items))
	writeJobDescription(&b, jobDescription)
	b.WriteString("\nResumes to analyze:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "\nRESUME %d (ID: %s):\n%s\n---\n", i+1, item.Candidate.ID, snippet(item.Text, batchSnippetLimit))
	}
	return b.String()
}

func writeJobDescription(b *strings.Builder, jobDescription string) {
	b.WriteString("\nJob Description:\n")
	if strings.TrimSpace(jobDescription) == "" {
		b.WriteString("Not provided.\n")
		return
	}
	b.WriteString(jobDescription)
	b.WriteString("\n")
}

func snippet(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
