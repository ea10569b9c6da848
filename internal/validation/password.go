package validation

import (
	"fmt"
	"unicode"

	"github.com/yes-simulation/accounts/internal/domain"
)

// Defaults for NewPasswordValidator.
const (
	DefaultMinLength     = 6
	DefaultMaxSimilarity = 0.7
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// PasswordValidator checks a candidate password against the account policy.
// It is safe for concurrent use.
type PasswordValidator struct {
	minLength     int
	maxSimilarity float64
	common        *CommonList
}

// Option configures a PasswordValidator.
type Option func(*PasswordValidator)

// WithCommonList replaces the embedded common password list. A nil list
// keeps the embedded one.
func WithCommonList(l *CommonList) Option {
	return func(v *PasswordValidator) {
		if l != nil {
			v.common = l
		}
	}
}

// NewPasswordValidator returns a validator requiring at least minLength
// characters. A non-positive minLength selects DefaultMinLength.
func NewPasswordValidator(minLength int, opts ...Option) *PasswordValidator {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	v := &PasswordValidator{minLength: minLength, maxSimilarity: DefaultMaxSimilarity}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MinLength returns the configured minimum length.
func (v *PasswordValidator) MinLength() int {
	return v.minLength
}

// Validate runs every check and returns the failures in this order:
// similarity to the user's username, minimum length, maximum byte length,
// common password, entirely numeric. A nil user skips the similarity check.
func (v *PasswordValidator) Validate(password string, user *domain.User) []Failure {
	var failures []Failure

	if user != nil && tooSimilar(password, user.Username, v.maxSimilarity) {
		failures = append(failures, Failure{Kind: Similarity, Message: SimilarityMessage})
	}

	if n := len([]rune(password)); n < v.minLength {
		failures = append(failures, Failure{Kind: TooShort, Message: tooShortMessage(v.minLength)})
	}

	if len(password) > MaxPasswordBytes {
		failures = append(failures, Failure{Kind: TooLong, Message: TooLongMessage})
	}

	if v.common.Contains(password) {
		failures = append(failures, Failure{Kind: Common, Message: CommonMessage})
	}

	if isNumeric(password) {
		failures = append(failures, Failure{Kind: Numeric, Message: NumericMessage})
	}

	return failures
}

func tooShortMessage(minLength int) string {
	unit := "characters"
	if minLength == 1 {
		unit = "character"
	}
	return fmt.Sprintf("This password is too short. It must contain at least %d %s.", minLength, unit)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
