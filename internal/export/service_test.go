package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/resume-screener/internal/core/domain"
	"github.com/kirillkom/resume-screener/internal/core/usecase"
)

type shortlistFake struct {
	candidates []usecase.CandidateView
	err        error
}

func (f *shortlistFake) SavedCandidates(_ context.Context) ([]usecase.CandidateView, error) {
	return f.candidates, f.err
}

func TestExportShortlistXLSXWritesRows(t *testing.T) {
	fake := &shortlistFake{candidates: []usecase.CandidateView{
		{
			ID:       "cand_a",
			Name:     "Jane Doe",
			Filename: "Jane Doe 123 RESUME.pdf",
			Starred:  true,
			Profile: domain.Profile{
				Nickname:     "Stream Tamer",
				Summary:      "Ten years building data pipelines.",
				Reservations: []string{"No Go experience listed"},
				Differentiators: []domain.Differentiator{
					{Claim: "Scaled ingest 10x", Evidence: "annual report"},
				},
				Achievements: []domain.Achievement{
					{Achievement: "Cut batch latency in half", Evidence: "team retro"},
				},
				WorkHistory: []domain.WorkEntry{
					{Title: "Staff Engineer", Company: "Initech", Years: "2019-2024"},
				},
				Experience: map[string]int{"corporate": 7, "startup": 3, "nonprofit": 0},
			},
		},
		{
			ID:       "cand_b",
			Name:     "Ada",
			Filename: "Ada 007 RESUME.txt",
			Profile:  domain.Profile{Nickname: "Anonymous Pro"},
		},
	}}

	svc := NewService(fake, nil)
	payload, err := svc.ExportShortlistXLSX(context.Background())
	if err != nil {
		t.Fatalf("ExportShortlistXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "First Name" || rows[0][10] != "Starred?" {
		t.Fatalf("unexpected header row %v", rows[0])
	}
	first := rows[1]
	if first[0] != "Jane" || first[1] != "Doe" {
		t.Fatalf("unexpected name split %q %q", first[0], first[1])
	}
	if first[3] != "Stream Tamer" {
		t.Fatalf("unexpected nickname %q", first[3])
	}
	if first[8] != "Staff Engineer @ Initech (2019-2024)" {
		t.Fatalf("unexpected work history %q", first[8])
	}
	if first[9] != "Corporate: 7y, Startup: 3y" {
		t.Fatalf("unexpected experience %q", first[9])
	}
	if first[10] != "TRUE" {
		t.Fatalf("expected starred marker, got %q", first[10])
	}
	second := rows[2]
	if second[0] != "Ada" || second[1] != "" {
		t.Fatalf("unexpected single-token name split %q %q", second[0], second[1])
	}
}

func TestExportShortlistXLSXPropagatesSourceError(t *testing.T) {
	svc := NewService(&shortlistFake{err: errors.New("db down")}, nil)
	if _, err := svc.ExportShortlistXLSX(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSplitName(t *testing.T) {
	cases := []struct {
		filename string
		first    string
		last     string
	}{
		{"Jane Doe 123 RESUME.pdf", "Jane", "Doe"},
		{"Ada 007 RESUME.txt", "Ada", ""},
		{"Grace Brewster Hopper 9 RESUME.pdf", "Grace", "Brewster Hopper"},
		{"RESUME.pdf", "", ""},
	}
	for _, tc := range cases {
		first, last := splitName(tc.filename)
		if first != tc.first || last != tc.last {
			t.Fatalf("splitName(%q) = %q %q, want %q %q", tc.filename, first, last, tc.first, tc.last)
		}
	}
}

func TestExperienceTextSkipsZeroSectors(t *testing.T) {
	got := experienceText(map[string]int{"corporate": 4, "startup": 0, "other": 1})
	if got != "Corporate: 4y, Other: 1y" {
		t.Fatalf("unexpected experience text %q", got)
	}
}
