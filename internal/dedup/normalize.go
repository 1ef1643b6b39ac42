package dedup

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var tagPattern = regexp.MustCompile(`<[^<>]*>`)

// markupChars are formatting characters generators like to sprinkle into captions
const markupChars = "*_~`#>|<[]{}\\"

// Normalize reduces text to the form used for duplicate comparison.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func Normalize(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(markupChars, r) {
			return -1
		}
		return r
	}, s)
	s = cases.Fold().String(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	})
}

// Tokens splits normalized text into its set of words
func Tokens(s string) map[string]struct{} {
	words := strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Overlap returns |a∩b| / min(|a|,|b|), or 0 when either set is empty
func Overlap(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}
	if len(small) == 0 {
		return 0
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}

// Signature is a stable fingerprint of the normalized text
func Signature(s string) string {
	sum := sha1.Sum([]byte(Normalize(s)))
	return hex.EncodeToString(sum[:])
}
