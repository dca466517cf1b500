// Package judge decides whether a submitted answer matches a board card and
// applies the scoring effects of one attempt.
package judge

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/feud/go/internal/models"
)

// Policy controls how loosely submissions match card text.
type Policy struct {
	Name string
	// Bidirectional also accepts a submission that is a fragment of the card.
	Bidirectional bool
	// MinFragmentRunes is the shortest fragment accepted in the card-contains-
	// submission direction. Zero accepts any non-empty fragment.
	MinFragmentRunes int
}

var (
	// Lenient accepts containment in either direction.
	Lenient = Policy{Name: "lenient", Bidirectional: true}
	// Strict only accepts fragments of three or more runes.
	Strict = Policy{Name: "strict", Bidirectional: true, MinFragmentRunes: 3}
	// Exact requires the submission to contain the whole card text.
	Exact = Policy{Name: "exact"}
)

// ParsePolicy resolves a policy by name. The empty name is Lenient.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", Lenient.Name:
		return Lenient, nil
	case Strict.Name:
		return Strict, nil
	case Exact.Name:
		return Exact, nil
	default:
		return Policy{}, fmt.Errorf("unknown match policy %q", name)
	}
}

// Normalize lowercases and trims s.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsMatch compares a submission with one card's text.
func (p Policy) IsMatch(submission, answer string) bool {
	sub, ans := Normalize(submission), Normalize(answer)
	if sub == "" || ans == "" {
		return false
	}
	if sub == ans || strings.Contains(sub, ans) {
		return true
	}
	if !p.Bidirectional {
		return false
	}
	return strings.Contains(ans, sub) && utf8.RuneCountInString(sub) >= p.MinFragmentRunes
}

// Match returns the index of the first hidden card the submission matches.
func (p Policy) Match(text string, answers []models.Answer) (int, bool) {
	for i := range answers {
		if answers[i].Revealed {
			continue
		}
		if p.IsMatch(text, answers[i].Text) {
			return i, true
		}
	}
	return -1, false
}
