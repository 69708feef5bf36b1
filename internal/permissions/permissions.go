// Package permissions implements the scoped permission grammar used for
// agent capability grants: three colon-separated segments of the form
// service:resource:action, where any segment may be the wildcard "*".
package permissions

import (
	"errors"
	"fmt"
	"strings"
)

// Wildcard grants every capability.
const Wildcard = "*:*:*"

const segmentCount = 3

var (
	ErrSegmentCount = errors.New("permission must have exactly three segments")
	ErrEmptySegment = errors.New("permission segment must not be empty")
	ErrBadCharacter = errors.New("permission segment contains invalid characters")
)

// Validate checks a permission string against the grammar. Malformed strings
// are rejected here so that the matcher can assume well-formed input.
func Validate(perm string) error {
	segments := strings.Split(perm, ":")
	if len(segments) != segmentCount {
		return fmt.Errorf("%w: %q", ErrSegmentCount, perm)
	}
	for _, seg := range segments {
		if seg == "" {
			return fmt.Errorf("%w: %q", ErrEmptySegment, perm)
		}
		for _, r := range seg {
			if r == '*' {
				continue
			}
			if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
				return fmt.Errorf("%w: %q", ErrBadCharacter, perm)
			}
		}
	}
	return nil
}

// ValidateAll validates every permission in the slice and returns the first
// violation.
func ValidateAll(perms []string) error {
	for _, p := range perms {
		if err := Validate(p); err != nil {
			return err
		}
	}
	return nil
}

// Matches reports whether the granted permission covers the required one.
// Both inputs must already be validated; segments match when equal
// (case-insensitive) or when the granted segment is the wildcard. Partial
// wildcards within a segment are deliberately unsupported.
func Matches(granted, required string) bool {
	g := strings.Split(granted, ":")
	r := strings.Split(required, ":")
	for i := 0; i < segmentCount; i++ {
		if g[i] == "*" {
			continue
		}
		if !strings.EqualFold(g[i], r[i]) {
			return false
		}
	}
	return true
}

// Authorized reports whether any granted permission matches the required
// one. First match wins; there is no deny concept.
func Authorized(granted []string, required string) bool {
	for _, g := range granted {
		if Matches(g, required) {
			return true
		}
	}
	return false
}
