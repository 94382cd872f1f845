package redsift

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// affixSep separates the word from the entity id inside affix structure
// members: "word\x01id". Part of the on-disk interop contract.
const affixSep = "\x01"

// Tokenize lowercases a text value and splits it on non-alphanumeric
// boundaries into a sorted set of distinct words. Indexing the same value
// twice always yields the same tokens.
func Tokenize(value string) []string {
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// reverseString reverses a string rune-wise. Suffix index members store the
// reversed word so suffix matching reduces to a prefix scan.
func reverseString(s string) string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes)
}

// nextPrefix returns the smallest string greater than every string that has
// p as a prefix, by incrementing p's last non-0xff byte. Returns "" when no
// such bound exists (p is empty or all 0xff).
func nextPrefix(p string) string {
	b := []byte(p)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

// formatScore renders a numeric bound for ZRANGEBYSCORE-style arguments,
// with the "(" prefix marking an exclusive bound.
func formatScore(v float64, exclusive bool) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if exclusive {
		return "(" + s
	}
	return s
}

// scoreBound renders an optional range endpoint, nil meaning unbounded.
func scoreBound(v *float64, exclusive bool, unbounded string) string {
	if v == nil {
		return unbounded
	}
	return formatScore(*v, exclusive)
}
