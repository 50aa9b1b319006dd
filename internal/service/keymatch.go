package service

import (
	"regexp"
	"strings"
)

// Payment allocation keys, billing descriptions, and configured fee names are
// free text that grew apart over the years ("Tuition", "Billed: Tuition Fees",
// "service: transport"). NormalizeKey is the single place that folds that
// noise away; every fuzzy comparison in the module goes through KeysMatch.

var keyNoisePattern = regexp.MustCompile(`(?i)\b(service|billed)\s*:\s*|\bfees?\b`)

var spacePattern = regexp.MustCompile(`\s+`)

// NormalizeKey lowercases a free-text key and strips labelling noise.
func NormalizeKey(s string) string {
	s = keyNoisePattern.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// KeysMatch reports whether two free-text keys refer to the same item.
// Match order: exact normalized equality first, then case-insensitive
// substring containment in either direction.
func KeysMatch(a, b string) bool {
	na, nb := NormalizeKey(a), NormalizeKey(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// clearanceKeys are the normalized allocation keys that count toward the
// clearance target: tuition itself plus carried arrears in their various
// historical spellings.
var clearanceKeys = map[string]struct{}{
	"tuition":          {},
	"brought forward":  {},
	"bf":               {},
	"b/f":              {},
	"prev balance":     {},
	"previous balance": {},
	"arrears":          {},
}

func isClearanceKey(key string) bool {
	_, ok := clearanceKeys[NormalizeKey(key)]
	return ok
}
