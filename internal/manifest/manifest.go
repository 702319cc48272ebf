// Package manifest parses and validates template package manifests.
//
// A package root holds a noter.yaml manifest describing the variants the
// package offers, which course codes map to which variant, the capabilities
// the package supports and the hooks applied to the generation context.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// FileName is the manifest file at a package root.
const FileName = "noter.yaml"

// DefaultNamespace is used when a manifest omits its namespace.
const DefaultNamespace = "local"

// NoteType is the kind of document a variant produces.
type NoteType string

// Note types.
const (
	Lecture    NoteType = "lecture"
	Assignment NoteType = "assignment"
	Lab        NoteType = "lab"
	Other      NoteType = "other"
)

// NoteTypes lists every note type in display order.
var NoteTypes = []NoteType{Lecture, Assignment, Lab, Other}

// ParseNoteType converts user input to a NoteType.
func ParseNoteType(s string) (NoteType, error) {
	nt := NoteType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range NoteTypes {
		if nt == known {
			return nt, nil
		}
	}
	return "", fmt.Errorf("unknown note type %q (want lecture, assignment, lab or other)", s)
}

// Capability flags a package may declare.
const (
	// CapCustomSections allows callers to append extra placeholder sections.
	CapCustomSections = "custom_sections"
)

// Manifest describes one template package.
type Manifest struct {
	PackageName        string          `yaml:"package_name"               json:"package_name"`
	DeclaredVersion    string          `yaml:"declared_version,omitempty" json:"declared_version,omitempty"`
	Namespace          string          `yaml:"namespace,omitempty"        json:"namespace,omitempty"`
	Variants           []Variant       `yaml:"variants"                   json:"variants"`
	CourseTypePatterns []CoursePattern `yaml:"course_type_patterns"       json:"course_type_patterns,omitempty"`
	Capabilities       []string        `yaml:"capabilities"               json:"capabilities,omitempty"`
	Hooks              []Hook          `yaml:"hooks"                      json:"hooks,omitempty"`
}

// CoursePattern maps course codes matching Pattern to a variant id.
type CoursePattern struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Variant string `yaml:"variant" json:"variant"`
}

// Variant is one concrete template within a package.
type Variant struct {
	ID        string    `yaml:"id"         json:"id"`
	NoteType  NoteType  `yaml:"note_type"  json:"note_type"`
	Function  string    `yaml:"function"   json:"function"`
	Default   bool      `yaml:"default"    json:"default,omitempty"`
	AppliesTo []string  `yaml:"applies_to" json:"applies_to,omitempty"`
	Sections  []Section `yaml:"sections"   json:"sections,omitempty"`
}

// Section is an ordered part of a generated document.
type Section struct {
	Title       string `yaml:"title"                 json:"title"`
	Content     string `yaml:"content,omitempty"     json:"content,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Variable    string `yaml:"variable,omitempty"    json:"variable,omitempty"`
	Optional    bool   `yaml:"optional,omitempty"    json:"optional,omitempty"`
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// Key returns the context variable that supplies this section's body:
// Variable when set, otherwise the title in snake case ("Lab Setup" -> "lab_setup").
func (s Section) Key() string {
	if s.Variable != "" {
		return s.Variable
	}
	return strings.Trim(nonWord.ReplaceAllString(strings.ToLower(s.Title), "_"), "_")
}

// HasCapability reports whether the package declares capability.
func (m *Manifest) HasCapability(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Variant returns the variant with the given id.
func (m *Manifest) Variant(id string) (Variant, bool) {
	for _, v := range m.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// Parse decodes and validates manifest YAML.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Namespace == "" {
		m.Namespace = DefaultNamespace
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %q: %w", m.PackageName, err)
	}
	return &m, nil
}

// Load reads the manifest at the root of fsys.
func Load(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, FileName)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}
	return Parse(data)
}

// LoadDir reads the manifest in dir.
func LoadDir(dir string) (*Manifest, error) {
	return Load(os.DirFS(dir))
}

// Exists reports whether dir holds a manifest.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, FileName))
	return err == nil && info.Mode().IsRegular()
}

// Validate checks the manifest for structural errors.
func (m *Manifest) Validate() error {
	err := validation.ValidateStruct(m,
		validation.Field(&m.PackageName, validation.Required),
		validation.Field(&m.Namespace, validation.Required),
		validation.Field(&m.Variants, validation.Required),
		validation.Field(&m.Hooks),
		validation.Field(&m.CourseTypePatterns),
	)
	if err != nil {
		return err
	}

	ids := make(map[string]bool, len(m.Variants))
	for _, v := range m.Variants {
		if ids[v.ID] {
			return fmt.Errorf("duplicate variant id %q", v.ID)
		}
		ids[v.ID] = true
	}
	for _, p := range m.CourseTypePatterns {
		if !ids[p.Variant] {
			return fmt.Errorf("course pattern %q references unknown variant %q", p.Pattern, p.Variant)
		}
	}
	return nil
}

// Validate checks a single variant.
func (v Variant) Validate() error {
	return validation.ValidateStruct(&v,
		validation.Field(&v.ID, validation.Required),
		validation.Field(&v.NoteType, validation.Required, validation.In(Lecture, Assignment, Lab, Other)),
		validation.Field(&v.Function, validation.Required),
		validation.Field(&v.Sections),
	)
}

// Validate checks a single section.
func (s Section) Validate() error {
	if s.Key() == "" {
		return errors.New("section needs a title or variable")
	}
	return validation.ValidateStruct(&s,
		validation.Field(&s.Title, validation.Required),
	)
}

// Validate checks a single course pattern.
func (p CoursePattern) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Pattern, validation.Required),
		validation.Field(&p.Variant, validation.Required),
	)
}
