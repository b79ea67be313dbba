package application

import (
	"strings"

	"meetmic/internal/domain"
)

// DefaultFragments are the label fragments of the VB-Audio Virtual Cable
// capture endpoint.
var DefaultFragments = []string{"cable output", "vb-audio virtual cable"}

// Matcher recognises virtual microphones by case-insensitive substring match.
type Matcher struct {
	fragments []string
}

// NewMatcher builds a matcher from the given fragments, falling back to
// DefaultFragments when none are usable.
func NewMatcher(fragments []string) *Matcher {
	var normalized []string
	for _, f := range fragments {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			normalized = append(normalized, f)
		}
	}
	if len(normalized) == 0 {
		normalized = append(normalized, DefaultFragments...)
	}
	return &Matcher{fragments: normalized}
}

func (m *Matcher) Fragments() []string {
	result := make([]string, len(m.fragments))
	copy(result, m.fragments)
	return result
}

func (m *Matcher) Match(label string) bool {
	key := strings.ToLower(label)
	for _, f := range m.fragments {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

// First returns the first matching device in enumeration order.
func (m *Matcher) First(devices []domain.AudioInputDescriptor) (domain.AudioInputDescriptor, bool) {
	for _, d := range devices {
		if m.Match(d.Label) {
			return d, true
		}
	}
	return domain.AudioInputDescriptor{}, false
}
