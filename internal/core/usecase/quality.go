package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

// Assessment is the verdict on a decoded profile. A profile with two or more
// issues is rejected for retry: one imperfect field is tolerated, compounding
// generic signals mean the generator did not engage with the resume.
type Assessment struct {
	Accepted bool
	Issues   []string
	Score    int
}

const rejectIssueThreshold = 2

var genericNicknames = map[string]bool{
	strings.ToLower(domain.NicknameDefault): true,
	strings.ToLower(domain.NicknamePending): true,
	"processing error":                      true,
	"error processing":                      true,
	"tech expert":                           true,
}

var fallbackSummaries = []string{
	"error processing resume",
	"error generating summary",
	"manual review needed",
	"unable to analyze",
}

var placeholderPhrases = []string{
	"manual review needed",
	"error in processing",
	"processing error occurred",
	"pending analysis",
	"unable to analyze",
}

var employmentKeywords = []string{
	"experience", "employment", "worked at", "work history",
	"engineer at", "manager at", "position", "responsibilities",
}

// AssessProfile inspects a decoded profile together with the raw generator
// response and the source resume text, and counts independent signals that
// the extraction is generic or empty.
func AssessProfile(profile domain.Profile, rawResponse, resumeText string) Assessment {
	var issues []string

	if genericNicknames[strings.ToLower(strings.TrimSpace(profile.Nickname))] {
		issues = append(issues, fmt.Sprintf("generic nickname %q", profile.Nickname))
	}
	if summaryLooksLikeFallback(profile.Summary) {
		issues = append(issues, "summary matches a fallback template")
	}
	if differentiatorsArePlaceholders(profile.Differentiators) {
		issues = append(issues, "no substantive differentiators")
	}
	if achievementsArePlaceholders(profile.Achievements) {
		issues = append(issues, "no substantive achievements")
	}
	if len(profile.WorkHistory) == 0 && mentionsEmployment(resumeText) {
		issues = append(issues, "resume shows employment but no work history was extracted")
	}
	if responseDisproportionatelyShort(rawResponse, resumeText) {
		issues = append(issues, "response is disproportionately short for the resume")
	}
	if hasFormattingArtifacts(profile.Summary) {
		issues = append(issues, "summary contains formatting artifacts")
	}

	score := 10 - len(issues)
	if score < 0 {
		score = 0
	}
	return Assessment{
		Accepted: len(issues) < rejectIssueThreshold,
		Issues:   issues,
		Score:    score,
	}
}

func (a Assessment) Reason() string {
	return strings.Join(a.Issues, "; ")
}

func summaryLooksLikeFallback(summary string) bool {
	lower := strings.ToLower(summary)
	for _, tpl := range fallbackSummaries {
		if strings.Contains(lower, tpl) {
			return true
		}
	}
	return false
}

func differentiatorsArePlaceholders(diffs []domain.Differentiator) bool {
	if len(diffs) == 0 {
		return true
	}
	for _, d := range diffs {
		if !containsPlaceholder(d.Claim) {
			return false
		}
	}
	return true
}

func achievementsArePlaceholders(achievements []domain.Achievement) bool {
	if len(achievements) == 0 {
		return true
	}
	return containsPlaceholder(achievements[0].Achievement)
}

func containsPlaceholder(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range placeholderPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func mentionsEmployment(resumeText string) bool {
	lower := strings.ToLower(resumeText)
	for _, kw := range employmentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// responseDisproportionatelyShort flags responses under ~2% of the resume
// length; a long resume answered in a few dozen characters means the model
// produced filler rather than extraction.
func responseDisproportionatelyShort(rawResponse, resumeText string) bool {
	if len(resumeText) < 2000 {
		return false
	}
	return len(strings.TrimSpace(rawResponse))*50 < len(resumeText)
}

func hasFormattingArtifacts(summary string) bool {
	if strings.Contains(summary, "```") {
		return true
	}
	lower := strings.ToLower(summary)
	return strings.Contains(lower, "json")
}
