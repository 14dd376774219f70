// Package chatid derives stable identifiers for 1:1 direct chats.
package chatid

import (
	"errors"
	"strings"
)

// Separator joins the two participant ids. Ids containing it are rejected so the join stays unambiguous.
const Separator = "_"

var (
	// ErrEmptyParticipant indicates one of the ids was blank.
	ErrEmptyParticipant = errors.New("participant id must not be empty")
	// ErrSameParticipant indicates both ids refer to the same user.
	ErrSameParticipant = errors.New("direct chat requires two distinct participants")
	// ErrInvalidParticipant indicates an id contains the separator.
	ErrInvalidParticipant = errors.New("participant id must not contain the separator")
)

// Direct returns the identifier of the direct chat between a and b.
// Direct(a, b) == Direct(b, a) for every pair.
func Direct(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// Resolve validates the pair and returns its direct chat identifier.
func Resolve(a, b string) (string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", ErrEmptyParticipant
	}
	if a == b {
		return "", ErrSameParticipant
	}
	if strings.Contains(a, Separator) || strings.Contains(b, Separator) {
		return "", ErrInvalidParticipant
	}
	return Direct(a, b), nil
}

// Participants splits a direct chat identifier back into its two ids.
func Participants(id string) (string, string, bool) {
	first, second, ok := strings.Cut(id, Separator)
	if !ok || first == "" || second == "" || strings.Contains(second, Separator) {
		return "", "", false
	}
	return first, second, true
}

// IsDirect reports whether id is the direct chat identifier for a and b.
func IsDirect(id, a, b string) bool {
	return id == Direct(a, b)
}
