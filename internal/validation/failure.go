// Package validation holds the password policy and the rules for turning a
// list of input problems into the single message returned to the client.
package validation

import (
	"strings"
)

// Kind identifies which check produced a Failure.
type Kind int

const (
	// Field is a structural problem with a request field, such as a missing username.
	Field Kind = iota
	DuplicateUsername
	Similarity
	TooShort
	Common
	Numeric
	TooLong
)

func (k Kind) String() string {
	switch k {
	case Field:
		return "field"
	case DuplicateUsername:
		return "duplicate_username"
	case Similarity:
		return "similarity"
	case TooShort:
		return "too_short"
	case Common:
		return "common"
	case Numeric:
		return "numeric"
	case TooLong:
		return "too_long"
	default:
		return "unknown"
	}
}

// Failure is one problem found while validating a registration.
type Failure struct {
	Kind    Kind
	Message string
}

// Messages for the fixed failure kinds.
const (
	DuplicateUsernameMessage = "User with username already exists."
	SimilarityMessage        = "The password is too similar to the username."
	CommonMessage            = "This password is too common."
	NumericMessage           = "This password is entirely numeric."
	TooLongMessage           = "This password is too long. It must contain at most 72 bytes."
)

// Combine joins failure messages into one sentence: trailing punctuation is
// dropped from every message, messages after the first non-empty one are
// lower-cased, and the parts are joined with ", and ". No closing period is
// added.
//
//	[TooShort]             -> "This password is too short. It must contain at least 6 characters"
//	[Similarity, TooShort] -> "The password is too similar to the username, and this password is too short. it must ..."
func Combine(failures []Failure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		msg := strings.TrimRight(f.Message, ".!? \t\r\n")
		if msg == "" {
			continue
		}
		if len(parts) > 0 {
			msg = strings.ToLower(msg)
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, ", and ")
}
