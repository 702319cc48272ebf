// Package variant selects the template variant for a course and note type.
package variant

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"

	"github.com/gorewood/noter/internal/apperr"
	"github.com/gorewood/noter/internal/manifest"
)

// Select returns the variant for courseCode and noteType.
//
// Course type patterns are tried first in declaration order; a pattern whose
// variant has another note type is passed over. Then the first variant of the
// note type whose applies_to patterns match wins, then the first default
// variant of the note type. Another note type is never substituted.
func Select(m *manifest.Manifest, courseCode string, noteType manifest.NoteType) (manifest.Variant, error) {
	for _, cp := range m.CourseTypePatterns {
		if !Match(cp.Pattern, courseCode) {
			continue
		}
		v, ok := m.Variant(cp.Variant)
		if ok && v.NoteType == noteType {
			return v, nil
		}
	}

	for _, v := range m.Variants {
		if v.NoteType != noteType {
			continue
		}
		for _, pattern := range v.AppliesTo {
			if Match(pattern, courseCode) {
				return v, nil
			}
		}
	}

	for _, v := range m.Variants {
		if v.NoteType == noteType && v.Default {
			return v, nil
		}
	}

	return manifest.Variant{}, apperr.VariantNotFound(string(noteType),
		fmt.Errorf("package %s has no %s variant for course %s", m.PackageName, noteType, courseCode))
}

// SelectByID returns the variant named id, which must produce noteType.
func SelectByID(m *manifest.Manifest, id string, noteType manifest.NoteType) (manifest.Variant, error) {
	v, ok := m.Variant(id)
	if !ok {
		return manifest.Variant{}, apperr.VariantNotFound(id,
			fmt.Errorf("package %s has no such variant", m.PackageName))
	}
	if v.NoteType != noteType {
		return manifest.Variant{}, apperr.VariantNotFound(id,
			fmt.Errorf("variant produces %s notes, not %s", v.NoteType, noteType))
	}
	return v, nil
}

var digitMask = regexp.MustCompile(`^[0-9xX]*[xX][0-9xX]*$`)

// Match reports whether courseCode matches pattern.
//
// Supported forms:
//
//	re:<expr>  regular expression, anchored at both ends
//	01xxx      digit mask; x matches any single character, lengths must agree
//	* or all   any course
//	other      shell glob (0210*, 02?0[0-9])
//
// Invalid patterns match nothing.
func Match(pattern, courseCode string) bool {
	pattern = strings.TrimSpace(pattern)
	switch {
	case pattern == "":
		return false
	case pattern == "*" || strings.EqualFold(pattern, "all"):
		return true
	case strings.HasPrefix(pattern, "re:"):
		re, err := regexp.Compile(`^(?:` + strings.TrimPrefix(pattern, "re:") + `)$`)
		return err == nil && re.MatchString(courseCode)
	case digitMask.MatchString(pattern):
		return matchMask(pattern, courseCode)
	}

	g, err := glob.Compile(pattern)
	return err == nil && g.Match(courseCode)
}

func matchMask(mask, code string) bool {
	m, c := []rune(mask), []rune(code)
	if len(m) != len(c) {
		return false
	}
	for i := range m {
		if m[i] != 'x' && m[i] != 'X' && m[i] != c[i] {
			return false
		}
	}
	return true
}
