package anchor

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	markdownPattern   = regexp.MustCompile("[*_`#~\\[\\]()>|]+")
	nonSlugPattern    = regexp.MustCompile(`[^A-Za-z0-9\s_-]+`)
	separatorPattern  = regexp.MustCompile(`[\s_-]+`)
	htmlEntityPattern = regexp.MustCompile(`&[a-zA-Z]+;|&#[0-9]+;`)
)

// cyrillicToLatin is the fixed transliteration table applied before stripping.
var cyrillicToLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "",
	'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'А': "A", 'Б': "B", 'В': "V", 'Г': "G", 'Д': "D", 'Е': "E", 'Ё': "E",
	'Ж': "Zh", 'З': "Z", 'И': "I", 'Й': "Y", 'К': "K", 'Л': "L", 'М': "M",
	'Н': "N", 'О': "O", 'П': "P", 'Р': "R", 'С': "S", 'Т': "T", 'У': "U",
	'Ф': "F", 'Х': "H", 'Ц': "Ts", 'Ч': "Ch", 'Ш': "Sh", 'Щ': "Sch", 'Ъ': "",
	'Ы': "Y", 'Ь': "", 'Э': "E", 'Ю': "Yu", 'Я': "Ya",
	'ß': "ss", 'æ': "ae", 'Æ': "AE", 'ø': "o", 'Ø': "O", 'œ': "oe", 'Œ': "OE",
}

// diacriticFolder decomposes letters and drops combining marks (é -> e).
var diacriticFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize turns a title into the slug portion of an anchor id.
func (g *Generator) normalize(title string) string {
	s := htmlTagPattern.ReplaceAllString(title, " ")
	s = htmlEntityPattern.ReplaceAllString(s, " ")
	s = markdownPattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	s = truncateRunes(s, g.cfg.MaxTitleLength)

	if g.cfg.Transliterate {
		s = transliterate(s)
	}

	s = nonSlugPattern.ReplaceAllString(s, "")
	s = separatorPattern.ReplaceAllString(s, "_")
	// Transliteration can lengthen the text (щ -> sch); the slug is ASCII here.
	if len(s) > g.cfg.MaxTitleLength {
		s = s[:g.cfg.MaxTitleLength]
	}
	s = strings.Trim(s, "_")

	if g.cfg.Lowercase {
		s = strings.ToLower(s)
	}
	if s == "" {
		return fallbackSlug
	}
	return s
}

// transliterate maps non-Latin letters to Latin approximations.
func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := cyrillicToLatin[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	folded, _, err := transform.String(diacriticFolder, b.String())
	if err != nil {
		return b.String()
	}
	return folded
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
