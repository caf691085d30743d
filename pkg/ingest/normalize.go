package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Whitespace includes Unicode separators such as U+00A0 and U+2003.
var (
	caseBoundary   = regexp.MustCompile(`([a-z])([A-Z])`)
	whitespaceRun  = regexp.MustCompile(`[\s\p{Z}]+`)
	slugDisallowed = regexp.MustCompile(`[^a-z0-9\s\p{Z}-]`)
	hyphenRun      = regexp.MustCompile(`-+`)
)

// NormalizeTitle derives a display title from a raw filename:
// "AllAboutDogs_Care-Guide.pdf" becomes "All About Dogs Care Guide".
//
// If stripping the extension leaves nothing printable (e.g. "_.pdf"), the
// whole filename is normalized instead so the title keeps every alphanumeric
// character the filename had.
func NormalizeTitle(filename string) string {
	stem := filename
	if ext := filepath.Ext(filename); ext != "" && ext != filename {
		stem = strings.TrimSuffix(filename, ext)
	}
	if title := normalizeStem(stem); title != "" {
		return title
	}
	return normalizeStem(filename)
}

func normalizeStem(s string) string {
	s = caseBoundary.ReplaceAllString(s, "${1} ${2}")
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimFunc(s, unicode.IsSpace)
}

// Slugify derives a URL-safe identifier from a title. The result matches
// ^[a-z0-9]+(-[a-z0-9]+)*$ or is empty when the title has no ASCII letters
// or digits; callers must decide what an empty slug means.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = slugDisallowed.ReplaceAllString(slug, "")
	slug = whitespaceRun.ReplaceAllString(slug, "-")
	slug = hyphenRun.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// TruncateSlug cuts a slug to at most max bytes without leaving a trailing
// hyphen. max <= 0 disables truncation.
func TruncateSlug(slug string, max int) string {
	if max <= 0 || len(slug) <= max {
		return slug
	}
	return strings.TrimRight(slug[:max], "-")
}

// unfoldable maps letters without a canonical decomposition.
var unfoldable = map[rune]string{
	'ß': "ss", 'ẞ': "SS",
	'Æ': "AE", 'æ': "ae",
	'Œ': "OE", 'œ': "oe",
	'Ø': "O", 'ø': "o",
	'Ł': "L", 'ł': "l",
	'Đ': "D", 'đ': "d",
	'Ð': "D", 'ð': "d",
	'Þ': "Th", 'þ': "th",
	'ı': "i",
}

// FoldASCII strips diacritics from Latin letters and drops other non-ASCII
// runes, so "Café Ñandú" becomes "Cafe Nandu" and "Straße" becomes
// "Strasse". Unicode whitespace becomes a plain space. It is an optional
// pre-step before Slugify.
func FoldASCII(s string) string {
	if s == "" {
		return ""
	}

	// a Transformer keeps state, so each call builds its own chain
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}

	var result strings.Builder
	result.Grow(len(stripped))

	for _, r := range stripped {
		switch {
		case r < 128 && unicode.IsPrint(r):
			result.WriteRune(r)
		case unicode.IsSpace(r) || unicode.Is(unicode.Zs, r):
			result.WriteRune(' ')
		default:
			if folded, ok := unfoldable[r]; ok {
				result.WriteString(folded)
			}
		}
	}

	return result.String()
}
