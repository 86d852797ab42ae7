package util

import (
	"regexp"
	"sort"
	"strings"
)

var (
	reQuotes     = regexp.MustCompile(`["'` + "`" + `«»]`)
	reNonAllowed = regexp.MustCompile(`[^A-ZА-Я0-9\-/\s.]`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Normalize uppercases the input and strips everything but letters, digits
// and a few separators, so scoring is case- and punctuation-insensitive.
func Normalize(input string) string {
	s := strings.ToUpper(input)
	s = strings.ReplaceAll(s, "Ё", "Е")
	s = reQuotes.ReplaceAllString(s, " ")
	s = reNonAllowed.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func Tokenize(input string) []string {
	norm := Normalize(input)
	parts := strings.Split(norm, " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SortedTokens returns the normalized tokens joined in lexical order, used
// for token-order-insensitive comparison.
func SortedTokens(input string) string {
	tokens := Tokenize(input)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
