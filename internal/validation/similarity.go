package validation

import (
	"regexp"
	"strings"
)

// nonWord splits an attribute into the parts compared individually, so that
// "first.last" is checked as "first" and "last" as well as the whole.
var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// quickRatio returns 2*M/T where M is the size of the multiset intersection of
// the runes of a and b and T is their combined length. It is an upper bound on
// the longest-matching-blocks ratio and ignores character order.
func quickRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}

	avail := make(map[rune]int, len(rb))
	for _, r := range rb {
		avail[r]++
	}
	matches := 0
	for _, r := range ra {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2.0 * float64(matches) / float64(total)
}

// tooSimilar reports whether password is at least maxSimilarity alike to
// attribute or to any of its word parts. Comparison is case-insensitive.
func tooSimilar(password, attribute string, maxSimilarity float64) bool {
	if attribute == "" {
		return false
	}
	password = strings.ToLower(password)
	attribute = strings.ToLower(attribute)

	parts := append([]string{attribute}, nonWord.Split(attribute, -1)...)
	for _, part := range parts {
		if part == "" {
			continue
		}
		if quickRatio(password, part) >= maxSimilarity {
			return true
		}
	}
	return false
}
