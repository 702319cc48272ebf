package render

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/gorewood/noter/internal/manifest"
)

// Letters with no decomposition to an ASCII base.
var nordic = strings.NewReplacer(
	"æ", "a", "Æ", "a",
	"ø", "o", "Ø", "o",
)

// Slug returns s as a lower-case, dash-separated ASCII string suitable for
// file names. Accented letters lose their marks (å -> a, ö -> o).
func Slug(s string) string {
	s = nordic.Replace(s)
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Filename returns the suggested file name for a note:
// "<date>-<course>-lecture.typ" for lectures, "<date>-<course>-<title slug>.typ"
// for assignments and "<date>-<course>-<note type>.typ" otherwise. Every part
// is slugged, so the result is a single path element.
func Filename(date, courseCode string, noteType manifest.NoteType, title string) string {
	suffix := string(noteType)
	if noteType == manifest.Assignment {
		if slug := Slug(title); slug != "" {
			suffix = slug
		}
	}
	return Slug(date) + "-" + Slug(courseCode) + "-" + suffix + ".typ"
}
