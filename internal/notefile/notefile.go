// Package notefile places generated notes under the notes directory.
package notefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorewood/noter/internal/manifest"
)

// Errors returned by this package.
var (
	// ErrExists is returned by Write when the target exists and force is off.
	ErrExists = errors.New("note file already exists")
	// ErrInvalidCourse is returned for course codes that are not a single
	// path element.
	ErrInvalidCourse = errors.New("invalid course code")
)

var subdirs = map[manifest.NoteType]string{
	manifest.Lecture:    "lectures",
	manifest.Assignment: "assignments",
	manifest.Lab:        "labs",
	manifest.Other:      "notes",
}

// Subdir returns the per-course directory name for a note type.
func Subdir(nt manifest.NoteType) string {
	if dir, ok := subdirs[nt]; ok {
		return dir
	}
	return "notes"
}

// CheckCourseCode rejects course codes that would not name a directory
// directly under the notes directory.
func CheckCourseCode(courseCode string) error {
	if courseCode == "" || courseCode == "." || strings.ContainsAny(courseCode, `/\`) || !filepath.IsLocal(courseCode) {
		return fmt.Errorf("%w: %q", ErrInvalidCourse, courseCode)
	}
	return nil
}

// Path returns <notesDir>/<course>/<subdir>/<filename>. Both the course code
// and the file name must be single path elements.
func Path(notesDir, courseCode string, nt manifest.NoteType, filename string) (string, error) {
	if err := CheckCourseCode(courseCode); err != nil {
		return "", err
	}
	if filename == "" || strings.ContainsAny(filename, `/\`) || !filepath.IsLocal(filename) {
		return "", fmt.Errorf("invalid note file name %q", filename)
	}
	return filepath.Join(notesDir, courseCode, Subdir(nt), filename), nil
}

// Write creates parent directories and writes data to path atomically.
// An existing file is replaced only when force is set.
func Write(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create note dir: %w", err)
	}
	return atomicWrite(path, data)
}

// atomicWrite writes data to a temp file beside path and renames it over path.
func atomicWrite(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.typ")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
