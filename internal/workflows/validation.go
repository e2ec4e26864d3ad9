package workflows

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation limits
const (
	maxReferenceLength = 2048
	maxContextLength   = 16 * 1024
	maxChallengeLength = 8 * 1024
)

var specialistNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,31}$`)

// Validate checks a start request before a session is created.
func (r *ReviewRequest) Validate() error {
	if r.SessionID == "" {
		return fmt.Errorf("%w: session_id", ErrEmptyField)
	}
	if strings.TrimSpace(r.Reference) == "" {
		return fmt.Errorf("%w: reference", ErrEmptyField)
	}
	if len(r.Reference) > maxReferenceLength {
		return fmt.Errorf("%w: reference exceeds %d bytes", ErrInvalidInput, maxReferenceLength)
	}
	if strings.ContainsAny(r.Reference, "\x00\n\r") {
		return fmt.Errorf("%w: reference contains control characters", ErrInvalidInput)
	}
	if len(r.Context) > maxContextLength {
		return fmt.Errorf("%w: context exceeds %d bytes", ErrInvalidInput, maxContextLength)
	}
	return r.Policy.Validate()
}

// Validate rejects malformed submissions. Unknown finding IDs are allowed and
// ignored by the workflow; a submission is never rejected for arriving late.
func (r SubmitChallengesRequest) Validate() error {
	for id, text := range r.Challenges {
		if id == "" {
			return fmt.Errorf("%w: finding id", ErrEmptyField)
		}
		if len(text) > maxChallengeLength {
			return fmt.Errorf("%w: challenge for %s exceeds %d bytes", ErrInvalidInput, id, maxChallengeLength)
		}
		if !utf8.ValidString(text) {
			return fmt.Errorf("%w: challenge for %s is not valid UTF-8", ErrInvalidInput, id)
		}
	}
	return nil
}
