// Package render turns a selected variant and caller metadata into Typst
// document text.
package render

import (
	"fmt"
	"maps"

	"github.com/gorewood/noter/internal/manifest"
)

// Metadata is what the caller knows about the note being created.
type Metadata struct {
	CourseCode string            `json:"course_code"`
	CourseName string            `json:"course_name,omitempty"`
	Title      string            `json:"title,omitempty"`
	Date       string            `json:"date,omitempty"`
	Author     string            `json:"author,omitempty"`
	Semester   string            `json:"semester,omitempty"`
	Variables  map[string]string `json:"variables,omitempty"`
}

// Package identifies the resolved template package.
type Package struct {
	Namespace string
	Name      string
	Version   string
}

// Context holds every value available to a generation request.
// It is built per request and never shared.
type Context struct {
	NoteType   manifest.NoteType
	Variant    string
	ImportPath string
	Version    string

	fields map[string]string
}

// Field keys understood by hooks, {{vars}} and section variables.
// Custom variables share the namespace; the keys below take precedence.
const (
	KeyCourseCode = "course_code"
	KeyCourseName = "course_name"
	KeyTitle      = "title"
	KeyDate       = "date"
	KeyAuthor     = "author"
	KeySemester   = "semester"
	KeyVersion    = "version"
	KeyImportPath = "import_path"
	KeyNoteType   = "note_type"
	KeyVariant    = "variant"
)

// Build copies md into a fresh context, computes the import path for pkg and
// applies hooks in declared order.
func Build(v manifest.Variant, md Metadata, hooks []manifest.Hook, pkg Package) (*Context, error) {
	fields := make(map[string]string, len(md.Variables)+10)
	maps.Copy(fields, md.Variables)

	importPath := ImportPath(pkg.Namespace, pkg.Name, pkg.Version)
	courseName := md.CourseName
	if courseName == "" {
		courseName = md.CourseCode
	}

	fields[KeyCourseCode] = md.CourseCode
	fields[KeyCourseName] = courseName
	fields[KeyTitle] = md.Title
	fields[KeyDate] = md.Date
	fields[KeyAuthor] = md.Author
	fields[KeySemester] = md.Semester
	fields[KeyVersion] = pkg.Version
	fields[KeyImportPath] = importPath
	fields[KeyNoteType] = string(v.NoteType)
	fields[KeyVariant] = v.ID

	ctx := &Context{
		NoteType:   v.NoteType,
		Variant:    v.ID,
		ImportPath: importPath,
		Version:    pkg.Version,
		fields:     fields,
	}

	for i, h := range hooks {
		if err := applyHook(ctx, h); err != nil {
			return nil, fmt.Errorf("hook %d (%s %s): %w", i, h.Kind, h.Field, err)
		}
	}
	return ctx, nil
}

// Get returns the value for key and whether it is set to a non-empty value.
func (c *Context) Get(key string) (string, bool) {
	v, ok := c.fields[key]
	return v, ok && v != ""
}

// Value returns the value for key, or "".
func (c *Context) Value(key string) string {
	return c.fields[key]
}

func (c *Context) set(key, value string) {
	c.fields[key] = value
}
