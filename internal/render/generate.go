package render

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gorewood/noter/internal/apperr"
	"github.com/gorewood/noter/internal/manifest"
)

var varRef = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Generate renders the document for v using ctx. The result is either the
// complete text or an error; identical inputs give identical output.
func Generate(v manifest.Variant, ctx *Context) (string, error) {
	var b strings.Builder

	b.WriteString(ImportLine(ctx.ImportPath))
	b.WriteString("\n\n")
	writeHeader(&b, v, ctx)

	for _, s := range v.Sections {
		body, include, err := sectionBody(s, ctx)
		if err != nil {
			return "", err
		}
		if !include {
			continue
		}
		fmt.Fprintf(&b, "\n= %s\n\n%s\n", s.Title, strings.TrimRight(body, "\n"))
	}
	return b.String(), nil
}

func writeHeader(b *strings.Builder, v manifest.Variant, ctx *Context) {
	dateParam := "date"
	if v.NoteType == manifest.Assignment {
		dateParam = "due-date"
	}

	fmt.Fprintf(b, "#show: %s.with(\n", v.Function)
	fmt.Fprintf(b, "  course: %s,\n", typstString(ctx.Value(KeyCourseCode)))
	fmt.Fprintf(b, "  course-name: %s,\n", typstString(ctx.Value(KeyCourseName)))
	fmt.Fprintf(b, "  title: %s,\n", typstString(ctx.Value(KeyTitle)))
	fmt.Fprintf(b, "  %s: %s,\n", dateParam, typstDate(ctx.Value(KeyDate)))
	fmt.Fprintf(b, "  author: %s,\n", typstString(ctx.Value(KeyAuthor)))
	fmt.Fprintf(b, "  semester: %s,\n", typstString(ctx.Value(KeySemester)))
	b.WriteString(")\n")
}

// sectionBody decides whether s is emitted and with what body.
func sectionBody(s manifest.Section, ctx *Context) (string, bool, error) {
	value, supplied := ctx.Get(s.Key())
	if s.Optional && !supplied {
		return "", false, nil
	}

	switch {
	case supplied:
		return value, true, nil
	case s.Content != "":
		body, err := expand(s.Content, ctx)
		if err != nil {
			return "", false, err
		}
		return body, true, nil
	case s.Placeholder != "":
		return "// TODO: " + s.Placeholder, true, nil
	}
	return "", false, apperr.MissingVariable(s.Title, fmt.Errorf("section has no value for %q, content or placeholder", s.Key()))
}

// expand substitutes {{var}} references. Referencing an unset variable is an error.
func expand(text string, ctx *Context) (string, error) {
	var missing string
	out := varRef.ReplaceAllStringFunc(text, func(ref string) string {
		key := varRef.FindStringSubmatch(ref)[1]
		v, ok := ctx.fields[key]
		if !ok && missing == "" {
			missing = key
		}
		return v
	})
	if missing != "" {
		return "", apperr.MissingVariable(missing, nil)
	}
	return out, nil
}

func typstString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

// typstDate emits ISO dates as datetime values and anything else as a string.
func typstDate(s string) string {
	if s == "" {
		return "datetime.today()"
	}
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return typstString(s)
	}
	return fmt.Sprintf("datetime(year: %d, month: %d, day: %d)", t.Year(), int(t.Month()), t.Day())
}
