package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/resume-screener/internal/core/usecase"
)

// ShortlistSource provides the saved candidates to export.
type ShortlistSource interface {
	SavedCandidates(ctx context.Context) ([]usecase.CandidateView, error)
}

// Service renders the saved shortlist as an XLSX workbook.
type Service struct {
	shortlist ShortlistSource
	logger    *slog.Logger
}

func NewService(shortlist ShortlistSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{shortlist: shortlist, logger: logger}
}

const sheet = "Shortlisted Candidates"

var headers = []string{
	"First Name", "Last Name", "Resume Filename", "Nickname",
	"Summary", "Reservations", "Differentiators", "Achievements",
	"Work History", "Experience Distribution", "Starred?",
}

// ExportShortlistXLSX returns the workbook as bytes.
func (s *Service) ExportShortlistXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	candidates, err := s.shortlist.SavedCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load shortlist: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defaultIndex, _ := f.GetSheetIndex("Sheet1"); defaultIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, candidate := range candidates {
		first, last := splitName(candidate.Filename)

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, first)
		write(2, last)
		write(3, candidate.Filename)
		write(4, candidate.Profile.Nickname)
		write(5, candidate.Profile.Summary)
		write(6, strings.Join(candidate.Profile.Reservations, ", "))

		diffs := make([]string, 0, len(candidate.Profile.Differentiators))
		for _, d := range candidate.Profile.Differentiators {
			diffs = append(diffs, d.Claim)
		}
		write(7, strings.Join(diffs, ", "))

		achievements := make([]string, 0, len(candidate.Profile.Achievements))
		for _, a := range candidate.Profile.Achievements {
			achievements = append(achievements, a.Achievement)
		}
		write(8, strings.Join(achievements, ", "))

		history := make([]string, 0, len(candidate.Profile.WorkHistory))
		for _, entry := range candidate.Profile.WorkHistory {
			history = append(history, fmt.Sprintf("%s @ %s (%s)", entry.Title, entry.Company, entry.Years))
		}
		write(9, strings.Join(history, "; "))

		write(10, experienceText(candidate.Profile.Experience))

		starred := ""
		if candidate.Starred {
			starred = "TRUE"
		}
		write(11, starred)

		row++
	}

	_ = f.SetColWidth(sheet, "A", "B", 14)
	_ = f.SetColWidth(sheet, "C", "C", 30)
	_ = f.SetColWidth(sheet, "D", "D", 18)
	_ = f.SetColWidth(sheet, "E", "H", 42)
	_ = f.SetColWidth(sheet, "I", "J", 36)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("shortlist_exported",
		"candidates", len(candidates),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// experienceText joins non-zero sectors as "Corporate: 4y, Startup: 2y",
// stable order for diffable exports.
func experienceText(experience map[string]int) string {
	sectors := make([]string, 0, len(experience))
	for sector, years := range experience {
		if years > 0 {
			sectors = append(sectors, fmt.Sprintf("%s: %dy", titleCase(sector), years))
		}
	}
	sort.Strings(sectors)
	return strings.Join(sectors, ", ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// splitName recovers first/last name from the "<Name> <id> RESUME.<ext>"
// filename convention; the trailing id token is dropped.
func splitName(filename string) (string, string) {
	base := filename
	if dot := strings.LastIndex(base, "."); dot >= 0 {
		base = base[:dot]
	}
	fields := strings.Fields(base)
	// drop the literal RESUME suffix and the id token before it
	if len(fields) > 0 && strings.EqualFold(fields[len(fields)-1], "RESUME") {
		fields = fields[:len(fields)-1]
	}
	if len(fields) > 1 {
		fields = fields[:len(fields)-1]
	}
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
