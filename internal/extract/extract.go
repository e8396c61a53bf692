package extract

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"circularscan/internal/domain"
	"circularscan/internal/ports"
)

// hsCodeExpr matches the dotted HS notation used in circulars, e.g. 6204.62.20.
var hsCodeExpr = regexp.MustCompile(`\b\d{4}\.\d{2}\.\d{2}\b`)

// productLexicon lists category keywords used to spot product-name phrases.
// Stored diacritic-free and lowercase; matching folds the input the same way.
var productLexicon = []string{
	"ao",
	"quan",
	"vai",
	"giay",
	"dep",
	"tui",
	"mu",
	"khan",
	"gang tay",
	"det kim",
}

const phraseWindow = 4

// Engine is the in-process extractor used on the inline path and by the
// queue worker. It is pure computation and safe for concurrent use.
type Engine struct{}

var _ ports.Extractor = (*Engine)(nil)

// NewEngine returns the built-in extractor.
func NewEngine() *Engine {
	return &Engine{}
}

// Extract scans rawText for HS codes and candidate product-name phrases.
func (e *Engine) Extract(_ context.Context, rawText string) (domain.Extraction, error) {
	return domain.Extraction{
		Success:      true,
		HSCodes:      MatchHSCodes(rawText),
		ProductNames: MatchProductNames(rawText),
	}, nil
}

// MatchHSCodes returns each distinct HS code in order of first appearance.
func MatchHSCodes(text string) []string {
	var codes []string
	seen := map[string]struct{}{}
	for _, code := range hsCodeExpr.FindAllString(text, -1) {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}

// MatchProductNames extracts candidate phrases around lexicon keywords.
// Matching is case-insensitive and tolerates missing or decomposed
// diacritics; returned phrases keep the original spelling.
func MatchProductNames(text string) []string {
	tokens := strings.Fields(text)
	folded := make([]string, len(tokens))
	for i, token := range tokens {
		folded[i] = foldToken(token)
	}

	var names []string
	seen := map[string]struct{}{}
	for i := range tokens {
		if !keywordAt(folded, i) {
			continue
		}

		end := i + phraseWindow
		if end > len(tokens) {
			end = len(tokens)
		}
		phrase := strings.Join(tokens[i:end], " ")
		phrase = strings.TrimRight(phrase, ".,;:!?")
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		names = append(names, phrase)
	}
	return names
}

func keywordAt(folded []string, index int) bool {
	for _, keyword := range productLexicon {
		parts := strings.Fields(keyword)
		if index+len(parts) > len(folded) {
			continue
		}
		match := true
		for j, part := range parts {
			if folded[index+j] != part {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

var foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldToken lowercases, strips combining marks, maps đ to d, and drops
// trailing punctuation so "Áo," folds to "ao".
func foldToken(token string) string {
	token = strings.TrimFunc(token, unicode.IsPunct)
	token = strings.ToLower(token)
	if stripped, _, err := transform.String(foldTransform, token); err == nil {
		token = stripped
	}
	return strings.Map(func(r rune) rune {
		if r == 'đ' {
			return 'd'
		}
		return r
	}, token)
}
