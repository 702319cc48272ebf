// Package source defines template source descriptors and their ordering rules.
package source

import (
	"errors"
	"fmt"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Kind identifies where a source's packages come from.
type Kind string

// Source kinds.
const (
	KindBuiltin Kind = "builtin"
	KindLocal   Kind = "local"
	KindRemote  Kind = "remote"
)

// BuiltinName is the name of the built-in fallback source.
const BuiltinName = "builtin"

// Descriptor is one configured origin of template packages.
// Position in a descriptor list is its priority.
type Descriptor struct {
	Name          string `yaml:"name"                     json:"name"`
	Kind          Kind   `yaml:"kind"                     json:"kind"`
	Location      string `yaml:"location,omitempty"       json:"location,omitempty"`
	PinnedVersion string `yaml:"pinned_version,omitempty" json:"pinned_version,omitempty"`
	PathOverride  string `yaml:"path_override,omitempty"  json:"path_override,omitempty"`
	Enabled       *bool  `yaml:"enabled,omitempty"        json:"enabled,omitempty"`
}

// IsEnabled reports whether the descriptor takes part in discovery.
// A descriptor without an explicit enabled flag is enabled.
func (d Descriptor) IsEnabled() bool {
	return d.Enabled == nil || *d.Enabled
}

// Root returns the directory holding the package manifest for a local source,
// joining the location with the optional path override.
func (d Descriptor) Root() string {
	if d.PathOverride == "" {
		return d.Location
	}
	return filepath.Join(d.Location, d.PathOverride)
}

// Validate checks a single descriptor.
func (d Descriptor) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.Kind, validation.Required, validation.In(KindBuiltin, KindLocal, KindRemote)),
		validation.Field(&d.Location,
			validation.When(d.Kind == KindLocal || d.Kind == KindRemote, validation.Required)),
		validation.Field(&d.PathOverride, validation.By(relativePath)),
	)
}

func relativePath(value any) error {
	path, _ := value.(string)
	if path == "" {
		return nil
	}
	if filepath.IsAbs(path) || !filepath.IsLocal(path) {
		return errors.New("must be a relative path inside the package")
	}
	return nil
}

// Builtin returns the descriptor for the built-in fallback source.
func Builtin() Descriptor {
	return Descriptor{Name: BuiltinName, Kind: KindBuiltin}
}

// Bool returns a pointer to b, for building descriptors with an explicit enabled flag.
func Bool(b bool) *bool {
	return &b
}

// Normalize validates descriptors and returns the ordered set used for discovery.
//
// Names must be unique. The built-in descriptor is always logically last: it is
// moved to the end when listed earlier and appended when absent, unless
// useBuiltin is false or the user listed it with enabled: false.
func Normalize(descriptors []Descriptor, useBuiltin bool) ([]Descriptor, error) {
	seen := make(map[string]bool, len(descriptors))
	result := make([]Descriptor, 0, len(descriptors)+1)
	var builtin *Descriptor

	for i, desc := range descriptors {
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, desc.Name, err)
		}
		if seen[desc.Name] {
			return nil, fmt.Errorf("duplicate source name %q", desc.Name)
		}
		seen[desc.Name] = true

		if desc.Kind == KindBuiltin {
			if builtin != nil {
				return nil, errors.New("only one builtin source may be configured")
			}
			builtin = &desc
			continue
		}
		result = append(result, desc)
	}

	switch {
	case builtin != nil:
		if !useBuiltin {
			builtin.Enabled = Bool(false)
		}
		result = append(result, *builtin)
	case useBuiltin:
		if seen[BuiltinName] {
			return nil, fmt.Errorf("source name %q is reserved for the builtin fallback", BuiltinName)
		}
		result = append(result, Builtin())
	}

	return result, nil
}

// Find returns the descriptor with the given name.
func Find(descriptors []Descriptor, name string) (Descriptor, bool) {
	for _, desc := range descriptors {
		if desc.Name == name {
			return desc, true
		}
	}
	return Descriptor{}, false
}
