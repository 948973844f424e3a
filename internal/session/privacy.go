package session

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"unicode"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\(?\d[\d\s().\-]{7,}\d`)
)

const (
	emailPlaceholder = "[email]"
	phonePlaceholder = "[phone]"
)

// PrivacyFilter masks personal data in session state before it is broadcast
// to clients or sent to a model provider. The zero value is a no-op filter.
type PrivacyFilter struct {
	MaskCandidateNames bool
	MaskSessionIDs     bool
	RedactContactInfo  bool
}

// RedactAnswer replaces e-mail addresses and phone numbers in text.
func (f *PrivacyFilter) RedactAnswer(text string) string {
	if !f.RedactContactInfo {
		return text
	}
	text = emailPattern.ReplaceAllString(text, emailPlaceholder)
	return phonePattern.ReplaceAllStringFunc(text, func(m string) string {
		// Year ranges and short numbers are not phone numbers.
		if n := countDigits(m); n < 9 || n > 15 {
			return m
		}
		return phonePlaceholder
	})
}

// MaskID returns the opaque form of a session ID when IDs are masked.
func (f *PrivacyFilter) MaskID(id string) string {
	if !f.MaskSessionIDs || id == "" {
		return id
	}
	return shortHash(id)
}

// Apply returns a copy of the session state with sensitive fields masked
// according to the filter configuration. The original state is never modified.
func (f *PrivacyFilter) Apply(s *SessionState) *SessionState {
	masked := s.Clone()

	if f.MaskCandidateNames && masked.Candidate != "" {
		masked.Candidate = "candidate-" + shortHash(masked.Candidate)[:4]
	}

	masked.ID = f.MaskID(masked.ID)

	if f.RedactContactInfo {
		for i := range masked.Turns {
			masked.Turns[i].Answer = f.RedactAnswer(masked.Turns[i].Answer)
		}
	}

	return masked
}

// FilterSlice returns a new slice with privacy masking applied to each
// session. The original slice is not modified.
func (f *PrivacyFilter) FilterSlice(sessions []*SessionState) []*SessionState {
	result := make([]*SessionState, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, f.Apply(s))
	}
	return result
}

// IsNoop reports whether the filter does nothing.
func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskCandidateNames && !f.MaskSessionIDs && !f.RedactContactInfo
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// shortHash returns a truncated SHA-256 hex digest for an opaque identifier.
func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
