package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/resume-screener/internal/core/domain"
)

// DecodeError reports that no parse strategy could recover structured data
// from a generator response. It carries the original response for diagnostics
// and for the heuristic fallback profile.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode generator response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeProfile turns a raw single-candidate response into a normalized
// profile, trying each recovery strategy in order.
func DecodeProfile(raw string) (domain.Profile, error) {
	var profile domain.Profile
	if err := decodeLenient(raw, &profile); err != nil {
		return domain.Profile{}, err
	}
	profile.Normalize()
	return profile, nil
}

// DecodeProfileBatch turns a raw multi-candidate response into the ordered
// profile array the batch prompt asked for.
func DecodeProfileBatch(raw string) ([]domain.Profile, error) {
	var profiles []domain.Profile
	if err := decodeLenient(raw, &profiles); err != nil {
		return nil, err
	}
	for i := range profiles {
		profiles[i].Normalize()
	}
	return profiles, nil
}

// decodeLenient applies the escalating parse strategies: the trimmed response
// as-is, with code fences stripped, the outermost object slice, the outermost
// array slice, and finally the fence-stripped text after syntax repair.
func decodeLenient(raw string, out any) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return &DecodeError{Raw: raw, Err: fmt.Errorf("empty response")}
	}

	candidates := []string{
		trimmed,
		stripCodeFences(trimmed),
		sliceBetween(trimmed, '{', '}'),
		sliceBetween(trimmed, '[', ']'),
		repairJSON(stripCodeFences(trimmed)),
	}

	var lastErr error
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), out); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return &DecodeError{Raw: raw, Err: lastErr}
}

// stripCodeFences removes markdown fence markers and a leading "json"
// language tag, which chat models routinely wrap around structured output.
func stripCodeFences(s string) string {
	out := strings.TrimSpace(s)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)
	out = strings.TrimPrefix(out, "json")
	return strings.TrimSpace(out)
}

func sliceBetween(s string, open, close byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// repairJSON fixes the two malformations seen most in generator output:
// trailing commas before a closing bracket and a missing comma between
// adjacent objects or arrays. String contents are left untouched.
func repairJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			b.WriteByte(c)
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			b.WriteByte(c)
		case ',':
			if next := nextNonSpace(s, i+1); next == '}' || next == ']' {
				continue // trailing comma
			}
			b.WriteByte(c)
		case '}', ']':
			b.WriteByte(c)
			if next := nextNonSpace(s, i+1); next == '{' || next == '[' {
				b.WriteByte(',')
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func nextNonSpace(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return s[i]
		}
	}
	return 0
}

// FallbackProfile builds the placeholder profile used when no strategy could
// decode the response at all. The reviewer sees the leading response text and
// a request for manual review instead of a silent drop.
func FallbackProfile(raw string) domain.Profile {
	snippet := strings.TrimSpace(raw)
	if len(snippet) > 200 {
		snippet = snippet[:200] + "..."
	}
	profile := domain.Profile{
		Nickname:     domain.NicknamePending,
		Summary:      snippet,
		Reservations: []string{"Unable to analyze automatically"},
		Achievements: []domain.Achievement{{Achievement: "Manual review needed"}},
		Wildcard:     domain.Wildcard{Fact: "Manual review needed"},
	}
	profile.Normalize()
	return profile
}
