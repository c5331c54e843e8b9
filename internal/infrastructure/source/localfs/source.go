package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

// TextExtractor converts one resume file into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Source scans a local candidates folder for resume files named
// "<Name> <id> RESUME.<ext>". Candidate ids are derived from the filename so
// they stay stable across process restarts.
type Source struct {
	dir       string
	extractor TextExtractor
}

func New(dir string, extractor TextExtractor) (*Source, error) {
	if dir == "" {
		dir = "./candidates"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create candidates dir: %w", err)
	}
	return &Source{dir: dir, extractor: extractor}, nil
}

var resumeSuffixes = []string{"RESUME.PDF", "RESUME.TXT"}

var namePattern = regexp.MustCompile(`(?i)^(.+?)\s+\w+\s+RESUME\.(pdf|txt)$`)

func (s *Source) ListCandidates(ctx context.Context) ([]domain.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read candidates dir: %w", err)
	}

	var candidates []domain.Candidate
	for _, entry := range entries {
		if entry.IsDir() || !isResumeFile(entry.Name()) {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			ID:       candidateID(entry.Name()),
			Name:     candidateName(entry.Name()),
			Filename: entry.Name(),
			Path:     filepath.Join(s.dir, entry.Name()),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Filename < candidates[j].Filename
	})
	return candidates, nil
}

func (s *Source) ReadText(ctx context.Context, candidate domain.Candidate) (string, error) {
	text, err := s.extractor.Extract(ctx, candidate.Path)
	if err != nil {
		if domain.IsKind(err, domain.ErrReadFailed) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrReadFailed, "read resume", err)
	}
	return text, nil
}

func isResumeFile(filename string) bool {
	upper := strings.ToUpper(filename)
	for _, suffix := range resumeSuffixes {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}

// candidateID replaces separators so the id is filesystem- and URL-safe.
func candidateID(filename string) string {
	id := strings.ReplaceAll(filename, " ", "_")
	return strings.ReplaceAll(id, ".", "_")
}

func candidateName(filename string) string {
	if m := namePattern.FindStringSubmatch(filename); m != nil {
		return strings.TrimSpace(m[1])
	}
	return "Unknown Candidate"
}
