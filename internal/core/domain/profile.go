package domain

// Profile is the structured extraction result for one candidate against the
// active job description. Every field has a defined zero-safe default so a
// profile is always structurally complete even when extraction was sparse;
// Normalize enforces that after decoding generator output.
type Profile struct {
	Nickname        string           `json:"nickname"`
	Summary         string           `json:"summary"`
	Reservations    []string         `json:"reservations"`
	Achievements    []Achievement    `json:"relevant_achievements"`
	Differentiators []Differentiator `json:"differentiators"`
	Wildcard        Wildcard         `json:"wildcard"`
	WorkHistory     []WorkEntry      `json:"work_history"`
	Experience      map[string]int   `json:"experience_distribution"`
}

type Achievement struct {
	Achievement string `json:"achievement"`
	Evidence    string `json:"evidence"`
}

type Differentiator struct {
	Claim    string `json:"claim"`
	Evidence string `json:"evidence"`
}

type Wildcard struct {
	Fact     string `json:"fact"`
	Evidence string `json:"evidence"`
}

type WorkEntry struct {
	Title   string `json:"title"`
	Company string `json:"company"`
	Years   string `json:"years"`
}

const (
	// NicknamePending labels a profile that was built from an unparseable
	// response and still needs a successful extraction.
	NicknamePending = "Review Pending"
	// NicknameDefault fills a decoded profile that came back without one.
	NicknameDefault = "Anonymous Pro"

	// WildcardPendingFact fills a missing wildcard.
	WildcardPendingFact = "Unique profile details pending analysis"

	// MaxWorkHistory caps extracted work history entries, most recent first.
	MaxWorkHistory = 5
)

// ExperienceSectors are the recognized sector keys of the experience
// distribution. Unknown sectors are kept as-is; missing ones default to zero.
var ExperienceSectors = []string{"corporate", "startup", "nonprofit", "government", "education", "other"}

// Normalize fills defaults for every absent field and clamps work history so
// downstream consumers never see a structurally incomplete profile.
func (p *Profile) Normalize() {
	if p.Nickname == "" {
		p.Nickname = NicknameDefault
	}
	if p.Reservations == nil {
		p.Reservations = []string{}
	}
	if p.Achievements == nil {
		p.Achievements = []Achievement{}
	}
	if p.Differentiators == nil {
		p.Differentiators = []Differentiator{}
	}
	if p.Wildcard.Fact == "" {
		p.Wildcard.Fact = WildcardPendingFact
	}
	if p.WorkHistory == nil {
		p.WorkHistory = []WorkEntry{}
	}
	if len(p.WorkHistory) > MaxWorkHistory {
		p.WorkHistory = p.WorkHistory[:MaxWorkHistory]
	}
	if p.Experience == nil {
		p.Experience = map[string]int{}
	}
	for _, sector := range ExperienceSectors {
		if _, ok := p.Experience[sector]; !ok {
			p.Experience[sector] = 0
		}
	}
	for sector, years := range p.Experience {
		if years < 0 {
			p.Experience[sector] = 0
		}
	}
}
