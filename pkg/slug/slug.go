package slug

import (
	"regexp"
	"strings"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

var transliterator = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	"á", "a", "à", "a", "â", "a",
	"é", "e", "è", "e", "ê", "e",
	"í", "i", "ì", "i", "î", "i",
	"ó", "o", "ò", "o", "ô", "o",
	"ú", "u", "ù", "u", "û", "u",
	"ç", "c", "ñ", "n",
	"&", " und ",
)

// Generate creates a URL-friendly slug from the given name. German umlauts
// are expanded the way storefront SEO URLs spell them.
//
// Examples:
//   - "Herren Schuhe" → "herren-schuhe"
//   - "Größen & Maße" → "groessen-und-masse"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = transliterator.Replace(s)
	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Path joins the slugs of each segment into a rooted path with a trailing
// slash, e.g. ["Herren", "Schuhe"] → "/herren/schuhe/". Empty segments are skipped.
func Path(segments ...string) string {
	var b strings.Builder
	b.WriteByte('/')
	for _, seg := range segments {
		s := Generate(seg)
		if s == "" {
			continue
		}
		b.WriteString(s)
		b.WriteByte('/')
	}
	return b.String()
}
