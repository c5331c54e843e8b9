package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Generator output does not honor the schema reliably: evidence pairs come
// back as bare strings, the wildcard as a sentence, years as numbers. The
// unmarshalers below accept those shapes instead of failing the whole profile.

func (a *Achievement) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Achievement = s
		a.Evidence = ""
		return nil
	}
	type plain Achievement
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Achievement(p)
	return nil
}

func (d *Differentiator) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Claim = s
		d.Evidence = ""
		return nil
	}
	type plain Differentiator
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*d = Differentiator(p)
	return nil
}

func (w *Wildcard) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		w.Fact = s
		w.Evidence = ""
		return nil
	}
	type plain Wildcard
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*w = Wildcard(p)
	return nil
}

func (e *WorkEntry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Title   string          `json:"title"`
		Company string          `json:"company"`
		Years   json.RawMessage `json:"years"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Title = raw.Title
	e.Company = raw.Company
	e.Years = flexibleString(raw.Years)
	return nil
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw struct {
		Nickname        string                     `json:"nickname"`
		Summary         string                     `json:"summary"`
		Reservations    []string                   `json:"reservations"`
		Achievements    []Achievement              `json:"relevant_achievements"`
		LegacyAchieves  []Achievement              `json:"achievements"`
		Differentiators []Differentiator           `json:"differentiators"`
		Wildcard        Wildcard                   `json:"wildcard"`
		WorkHistory     []WorkEntry                `json:"work_history"`
		Experience      map[string]json.RawMessage `json:"experience_distribution"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Nickname = raw.Nickname
	p.Summary = raw.Summary
	p.Reservations = raw.Reservations
	p.Achievements = raw.Achievements
	if len(p.Achievements) == 0 {
		p.Achievements = raw.LegacyAchieves
	}
	p.Differentiators = raw.Differentiators
	p.Wildcard = raw.Wildcard
	p.WorkHistory = raw.WorkHistory

	p.Experience = nil
	if raw.Experience != nil {
		p.Experience = make(map[string]int, len(raw.Experience))
		for sector, v := range raw.Experience {
			p.Experience[sector] = flexibleInt(v)
		}
	}
	p.Normalize()
	return nil
}

func flexibleString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func flexibleInt(raw json.RawMessage) int {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, convErr := strconv.Atoi(strings.TrimSpace(s)); convErr == nil {
			return v
		}
	}
	return 0
}
