// Package normalize canonicalizes employee identities, display names and
// monetary cell values so that records from the five payroll source files can
// be matched against each other.
package normalize

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/castrometro/SGM-sub005/pkg/errors"
)

// RUT canonicalizes a Chilean national ID. Separators, punctuation and
// whitespace are stripped and a trailing check character is uppercased, so
// "12.345.678-k", "12345678-K" and "12 345 678 K" all normalize to
// "12345678K". Returns InvalidIdentity when nothing remains after stripping.
func RUT(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}

	id := b.String()
	if id == "" {
		return "", errors.InvalidIdentity(raw)
	}

	// Only the check character can be alphabetic; uppercase it.
	last := id[len(id)-1]
	if last >= 'a' && last <= 'z' {
		id = id[:len(id)-1] + strings.ToUpper(string(last))
	}

	return id, nil
}

// SameIdentity reports whether two raw ID strings refer to the same person.
// ID equality is authoritative: two IDs match iff their normalized forms are
// equal. Empty strings are equal only to each other.
func SameIdentity(rawA, rawB string) bool {
	a, errA := RUT(rawA)
	b, errB := RUT(rawB)
	if errA != nil || errB != nil {
		return errA != nil && errB != nil && strings.TrimSpace(rawA) == "" && strings.TrimSpace(rawB) == ""
	}
	return a == b
}

var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Name canonicalizes a display name for cross-source matching: lower-case,
// diacritics stripped via canonical decomposition, punctuation and hyphens
// replaced by a single space, repeated whitespace collapsed, trimmed.
func Name(raw string) string {
	lowered := strings.ToLower(raw)

	stripped, _, err := transform.String(diacriticStripper, lowered)
	if err != nil {
		// The transform chain cannot fail on valid UTF-8; fall back to the
		// lowered input for anything else.
		stripped = lowered
	}

	var b strings.Builder
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// nameDistanceTolerance is the maximum Levenshtein distance between two
// normalized names still considered the same person.
const nameDistanceTolerance = 2

// CompatibleNames reports whether two raw names plausibly belong to the same
// person. Exact normalized equality, containment (middle-name omissions) and
// small edit distances all count; anything beyond raises an identity-conflict
// incident for manual adjudication.
func CompatibleNames(rawA, rawB string) bool {
	a := Name(rawA)
	b := Name(rawB)

	if a == b {
		return true
	}
	if a == "" || b == "" {
		// A source that carries the ID but no name is not a conflict.
		return true
	}
	if tokensContained(a, b) || tokensContained(b, a) {
		return true
	}

	return levenshtein.ComputeDistance(a, b) <= nameDistanceTolerance
}

// tokensContained reports whether every word of a appears in b, which covers
// sources that drop middle names.
func tokensContained(a, b string) bool {
	have := make(map[string]struct{})
	for _, tok := range strings.Fields(b) {
		have[tok] = struct{}{}
	}
	for _, tok := range strings.Fields(a) {
		if _, ok := have[tok]; !ok {
			return false
		}
	}
	return true
}
