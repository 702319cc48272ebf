// Package cache stores extracted template packages on disk.
//
// Layout:
//
//	<root>/<source>/<version>/              extracted package content
//	<root>/<source>/<version>/.noter-entry.yaml  entry marker
//	<root>/<source>/.lock                   writer lock
//
// Writers stage a complete directory next to its final location and rename it
// into place while holding the per-source lock, so a version directory is
// either absent or whole. Readers take no locks. A version directory without a
// valid marker is reported as corrupt and never repaired implicitly.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/gorewood/noter/internal/apperr"
)

// MarkerFile records a completed install inside a version directory.
const MarkerFile = ".noter-entry.yaml"

const lockFile = ".lock"

// ErrNotCached is returned when no entry exists for a lookup.
var ErrNotCached = errors.New("not cached")

// Entry is one installed package version.
type Entry struct {
	Source    string    `yaml:"source"     json:"source"`
	Version   string    `yaml:"version"    json:"version"`
	Tag       string    `yaml:"tag"        json:"tag,omitempty"`
	FetchedAt time.Time `yaml:"fetched_at" json:"fetched_at"`

	// Path is the extracted package directory.
	Path string `yaml:"-" json:"path"`
	// Corrupt is set by listings for directories without a valid marker.
	Corrupt bool   `yaml:"-" json:"corrupt,omitempty"`
	Problem string `yaml:"-" json:"problem,omitempty"`
}

// Cache is a handle on a cache root directory.
type Cache struct {
	root string
	now  func() time.Time
}

// New returns a cache rooted at root. The directory is created on first install.
func New(root string) *Cache {
	return &Cache{root: root, now: time.Now}
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Dir returns the directory for a source version.
func (c *Cache) Dir(source, version string) string {
	return filepath.Join(c.root, source, version)
}

// Lookup returns the entry for source at version.
// It returns ErrNotCached when the directory does not exist and a CacheCorrupt
// error when it exists without a valid marker.
func (c *Cache) Lookup(source, version string) (*Entry, error) {
	if err := checkName(source); err != nil {
		return nil, err
	}
	if err := checkName(version); err != nil {
		return nil, err
	}

	dir := c.Dir(source, version)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("checking cache entry: %w", err)
	}
	if !info.IsDir() {
		return nil, apperr.CacheCorrupt(dir, errors.New("not a directory"))
	}

	entry, err := readMarker(dir)
	if err != nil {
		return nil, apperr.CacheCorrupt(dir, err)
	}
	if entry.Source != source || entry.Version != version {
		return nil, apperr.CacheCorrupt(dir, fmt.Errorf("marker names %s@%s", entry.Source, entry.Version))
	}
	return entry, nil
}

// Versions lists every version directory for source, newest first.
// Corrupt directories are included with Corrupt set and sort after valid ones
// when their name is not a version.
func (c *Cache) Versions(source string) ([]Entry, error) {
	if err := checkName(source); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(filepath.Join(c.root, source))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache for %s: %w", source, err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") || !de.IsDir() {
			continue
		}
		entry, lookupErr := c.Lookup(source, name)
		if lookupErr != nil {
			entries = append(entries, Entry{
				Source:  source,
				Version: name,
				Path:    c.Dir(source, name),
				Corrupt: true,
				Problem: lookupErr.Error(),
			})
			continue
		}
		entries = append(entries, *entry)
	}

	sortNewestFirst(entries)
	return entries, nil
}

// Latest returns the newest installed entry for source.
// It returns ErrNotCached when nothing is installed and a CacheCorrupt error
// when the newest version directory is corrupt.
func (c *Cache) Latest(source string) (*Entry, error) {
	entries, err := c.Versions(source)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotCached
	}
	newest := entries[0]
	if newest.Corrupt {
		return nil, apperr.CacheCorrupt(newest.Path, errors.New(newest.Problem))
	}
	return &newest, nil
}

// Sources lists the source names that have a cache directory.
func (c *Cache) Sources() ([]string, error) {
	dirEntries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache root: %w", err)
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() && !strings.HasPrefix(de.Name(), ".") {
			names = append(names, de.Name())
		}
	}
	return names, nil
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		vi, errI := semver.NewVersion(entries[i].Version)
		vj, errJ := semver.NewVersion(entries[j].Version)
		switch {
		case errI != nil && errJ != nil:
			return entries[i].Version < entries[j].Version
		case errI != nil:
			return false
		case errJ != nil:
			return true
		}
		return vi.GreaterThan(vj)
	})
}

func readMarker(dir string) (*Entry, error) {
	data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("missing entry marker")
		}
		return nil, err
	}
	var entry Entry
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unreadable entry marker: %w", err)
	}
	if entry.Source == "" || entry.Version == "" {
		return nil, errors.New("incomplete entry marker")
	}
	entry.Path = dir
	return &entry, nil
}

func writeMarker(dir string, entry Entry) error {
	data, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding entry marker: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, MarkerFile), data, 0o600)
}

// checkName rejects names that would escape their parent directory.
func checkName(name string) error {
	if name == "" || name == "." || strings.HasPrefix(name, ".") ||
		!filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid cache key %q", name)
	}
	return nil
}
