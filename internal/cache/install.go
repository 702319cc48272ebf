package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/gorewood/noter/internal/apperr"
)

const lockRetryDelay = 50 * time.Millisecond

// Populate writes package content into a staging directory.
type Populate func(dir string) error

// InstallOptions controls a single install.
type InstallOptions struct {
	// Tag is the upstream tag the content came from, recorded in the marker.
	Tag string
	// Force replaces an existing (possibly corrupt) entry.
	Force bool
}

// Install stages content produced by populate and moves it into place as
// source@version. Without Force an existing valid entry is returned untouched
// and an existing corrupt entry is an error.
func (c *Cache) Install(ctx context.Context, source, version string, populate Populate, opts InstallOptions) (*Entry, error) {
	if err := checkName(source); err != nil {
		return nil, err
	}
	if err := checkName(version); err != nil {
		return nil, err
	}

	sourceDir := filepath.Join(c.root, source)
	if err := os.MkdirAll(sourceDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	lock := flock.New(filepath.Join(sourceDir, lockFile))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("locking cache for %s: %w", source, err)
	}
	if !locked {
		return nil, fmt.Errorf("locking cache for %s: lock not acquired", source)
	}
	defer func() { _ = lock.Unlock() }()

	final := c.Dir(source, version)
	exists := false
	if _, statErr := os.Stat(final); statErr == nil {
		exists = true
	} else if !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("checking cache entry: %w", statErr)
	}

	if exists && !opts.Force {
		return c.Lookup(source, version)
	}

	staging, err := os.MkdirTemp(sourceDir, ".staging-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := populate(staging); err != nil {
		return nil, err
	}

	entry := Entry{
		Source:    source,
		Version:   version,
		Tag:       opts.Tag,
		FetchedAt: c.now().UTC().Truncate(time.Second),
	}
	if err := writeMarker(staging, entry); err != nil {
		return nil, err
	}

	if exists {
		if err := c.swap(sourceDir, staging, final); err != nil {
			return nil, err
		}
	} else if err := os.Rename(staging, final); err != nil {
		return nil, fmt.Errorf("moving entry into place: %w", err)
	}

	entry.Path = final
	return &entry, nil
}

// swap replaces final with staging, restoring the old directory on failure.
func (c *Cache) swap(sourceDir, staging, final string) error {
	trash, err := os.MkdirTemp(sourceDir, ".trash-*")
	if err != nil {
		return fmt.Errorf("creating trash dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(trash) }()

	old := filepath.Join(trash, "old")
	if err := os.Rename(final, old); err != nil {
		return fmt.Errorf("moving old entry aside: %w", err)
	}
	if err := os.Rename(staging, final); err != nil {
		if restoreErr := os.Rename(old, final); restoreErr != nil {
			return apperr.CacheCorrupt(final, errors.Join(err, restoreErr))
		}
		return fmt.Errorf("moving entry into place: %w", err)
	}
	return nil
}
