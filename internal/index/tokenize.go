package index

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "we": {}, "our": {}, "you": {},
	"your": {}, "i": {}, "me": {}, "my": {}, "us": {}, "them": {}, "they": {}, "their": {}, "do": {},
	"does": {}, "did": {}, "what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "which": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "may": {}, "might": {}, "will": {}, "shall": {},
}

// foldToken strips trailing plural forms so "forecasts" and "forecast"
// land on the same posting key. Possessives are already split apart by
// tokenization. The es-rule only fires after sibilant stems to keep
// "pages" folding to "page" rather than "pag".
func foldToken(tok string) string {
	if n := len(tok); n > 4 && strings.HasSuffix(tok, "ies") {
		return tok[:n-3] + "y"
	}
	if n := len(tok); n > 3 && strings.HasSuffix(tok, "es") {
		switch tok[n-3] {
		case 's', 'x', 'z', 'h':
			return tok[:n-2]
		}
	}
	if n := len(tok); n > 3 && strings.HasSuffix(tok, "s") && !strings.HasSuffix(tok, "ss") {
		return tok[:n-1]
	}
	return tok
}

// significantTokens lowercases text, splits on non-alphanumeric runes,
// drops stop words and single letters, and folds plurals. Order is
// preserved and duplicates are kept so callers can build bigrams.
func significantTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, foldToken(f))
	}
	return tokens
}

// uniqueTokens returns the distinct values of tokens, order preserved.
func uniqueTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// bigramTokens joins consecutive significant tokens into phrase keys.
func bigramTokens(tokens []string) []string {
	if len(tokens) < 2 {
		return nil
	}
	out := make([]string, 0, len(tokens)-1)
	for i := 1; i < len(tokens); i++ {
		out = append(out, tokens[i-1]+" "+tokens[i])
	}
	return out
}

// postingKeys produces the full inverted-index key set for a piece of
// text: distinct significant single tokens plus distinct bigrams.
func postingKeys(text string) []string {
	singles := significantTokens(text)
	keys := append(uniqueTokens(singles), uniqueTokens(bigramTokens(singles))...)
	return keys
}
