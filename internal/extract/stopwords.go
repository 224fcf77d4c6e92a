package extract

import (
	"strings"
	"unicode/utf8"
)

// #region stopwords
// stopwords are dropped from case descriptions before they become keywords.
var stopwords = map[string]bool{
	"the": true, "and": true, "was": true, "for": true,
	"with": true, "this": true, "that": true, "from": true,
}

// punctuation is stripped from descriptions before splitting.
const punctuation = ".,/#!$%^&*;:{}=-_`~()"

// minTokenLen is exclusive: tokens must be longer than this to survive.
const minTokenLen = 3

// tokenize lower-cases text, strips punctuation and returns the surviving description tokens
// in order of appearance. Duplicates are left to the caller's set.
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(punctuation, r) {
			return -1
		}
		return r
	}, strings.ToLower(text))

	var tokens []string
	for _, w := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(w) <= minTokenLen || stopwords[w] {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// #endregion stopwords

// #region sentinels
// amountSentinels mark an amount field that carries no value.
var amountSentinels = map[string]bool{
	"n/a": true, "na": true, "-": true, "none": true,
}

func isSentinelAmount(amount string) bool {
	return amountSentinels[strings.ToLower(strings.TrimSpace(amount))]
}

// #endregion sentinels
