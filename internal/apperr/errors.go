// Package apperr defines the error kinds shared by the template engine.
//
// Each kind is a sentinel usable with errors.Is. Errors raised by the engine are
// *Error values that carry the kind plus the name of the offending source,
// variant, section or variable so callers can report something actionable.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	ErrSourceNotFound    = errors.New("no accessible template source")
	ErrVersionUnresolved = errors.New("template version unresolved")
	ErrVariantNotFound   = errors.New("template variant not found")
	ErrMissingVariable   = errors.New("missing template variable")
	ErrFetchFailed       = errors.New("template fetch failed")
	ErrCacheCorrupt      = errors.New("template cache entry corrupt")
)

// Error is a kinded engine error.
type Error struct {
	Kind error
	// Name identifies the source, variant, section or variable at fault.
	Name string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Name)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// SourceNotFound reports that every configured source was inaccessible.
func SourceNotFound(detail string) *Error {
	return &Error{Kind: ErrSourceNotFound, Name: detail}
}

// VersionUnresolved reports that no version signal resolved for source.
func VersionUnresolved(source string, cause error) *Error {
	return &Error{Kind: ErrVersionUnresolved, Name: source, Err: cause}
}

// VariantNotFound reports that no variant matched.
func VariantNotFound(name string, cause error) *Error {
	return &Error{Kind: ErrVariantNotFound, Name: name, Err: cause}
}

// MissingVariable reports a section or variable with no value.
func MissingVariable(name string, cause error) *Error {
	return &Error{Kind: ErrMissingVariable, Name: name, Err: cause}
}

// FetchFailed reports a network or archive failure for a source location.
func FetchFailed(location string, cause error) *Error {
	return &Error{Kind: ErrFetchFailed, Name: location, Err: cause}
}

// CacheCorrupt reports a cache entry left in an unusable state.
func CacheCorrupt(path string, cause error) *Error {
	return &Error{Kind: ErrCacheCorrupt, Name: path, Err: cause}
}

// KindOf returns the kind of the outermost *Error in err's chain, or nil.
func KindOf(err error) error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return nil
}

// NameOf returns the offending name carried by err, or "" if err is not an *Error.
func NameOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Name
	}
	return ""
}
