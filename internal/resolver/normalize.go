package resolver

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var trailingArticles = []string{"the", "a", "an"}

// NormalizeTitle folds a title for fuzzy comparison: accents are removed,
// case is lowered, a trailing ", The" style article moves to the front and
// punctuation collapses to single spaces.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	folded, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn))), title)
	if err != nil {
		folded = title
	}
	folded = strings.ToLower(folded)

	for _, article := range trailingArticles {
		suffix := ", " + article
		if strings.HasSuffix(folded, suffix) {
			folded = article + " " + strings.TrimSuffix(folded, suffix)
			break
		}
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeIMDb adds the "tt" prefix to bare numeric IMDb ids.
func NormalizeIMDb(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "tt") {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return "tt" + id
}
