package resolve

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/gorewood/noter/internal/apperr"
	"github.com/gorewood/noter/internal/builtin"
	"github.com/gorewood/noter/internal/cache"
	"github.com/gorewood/noter/internal/fetch"
	"github.com/gorewood/noter/internal/manifest"
	"github.com/gorewood/noter/internal/source"
)

// Signal names which input decided a resolved version.
type Signal string

// Version signals in precedence order.
const (
	SignalPinned   Signal = "pinned"
	SignalCache    Signal = "cache"
	SignalRemote   Signal = "remote"
	SignalDeclared Signal = "declared"
	SignalTypst    Signal = "typst.toml"
)

// Version is a resolved package version.
type Version struct {
	// Version is canonical semver without a leading "v".
	Version string `json:"version"`
	// Tag is the upstream tag for remote sources.
	Tag    string `json:"tag,omitempty"`
	Signal Signal `json:"signal"`
}

// Canonical parses s as a semantic version and returns its canonical form.
func Canonical(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return "", false
	}
	return v.String(), true
}

// ResolveVersion determines the version to load from res.
// A pinned version wins outright; for remote sources it must appear in the
// release listing. With force the cache is not consulted.
func (r *Resolver) ResolveVersion(ctx context.Context, res *Resolved, force bool) (*Version, error) {
	desc := res.Source

	if desc.PinnedVersion != "" {
		pin, ok := Canonical(desc.PinnedVersion)
		if ok {
			return r.pinned(ctx, res, pin, force)
		}
		r.logger.Warn("ignoring malformed pinned version", "source", desc.Name, "pin", desc.PinnedVersion)
	}

	if desc.Kind == source.KindRemote {
		return r.remoteVersion(ctx, res, force)
	}
	return r.packageVersion(desc)
}

func (r *Resolver) pinned(ctx context.Context, res *Resolved, pin string, force bool) (*Version, error) {
	desc := res.Source
	if desc.Kind != source.KindRemote {
		return &Version{Version: pin, Signal: SignalPinned}, nil
	}

	if !force {
		if entry, err := r.cache.Lookup(desc.Name, pin); err == nil {
			return &Version{Version: pin, Tag: entry.Tag, Signal: SignalPinned}, nil
		} else if !errors.Is(err, cache.ErrNotCached) {
			return nil, err
		}
	}

	if err := r.ensureListing(ctx, res); err != nil {
		return nil, apperr.VersionUnresolved(desc.Name, err)
	}
	tag, ok := res.Tags[pin]
	if !ok {
		return nil, apperr.VersionUnresolved(desc.Name,
			fmt.Errorf("pinned version %s is not published by %s", pin, desc.Location))
	}
	return &Version{Version: pin, Tag: tag, Signal: SignalPinned}, nil
}

func (r *Resolver) remoteVersion(ctx context.Context, res *Resolved, force bool) (*Version, error) {
	desc := res.Source

	if !force {
		entry, err := r.cache.Latest(desc.Name)
		switch {
		case err == nil:
			return &Version{Version: entry.Version, Tag: entry.Tag, Signal: SignalCache}, nil
		case !errors.Is(err, cache.ErrNotCached):
			return nil, err
		}
	}

	if err := r.ensureListing(ctx, res); err != nil {
		return nil, apperr.VersionUnresolved(desc.Name, err)
	}
	if v, tag, ok := NewestTag(res.Listing); ok {
		return &Version{Version: v, Tag: tag, Signal: SignalRemote}, nil
	}

	return r.latestVersion(ctx, res, force)
}

// latestVersion installs the default branch and reads the version it
// declares. Download failures are returned as FetchFailed errors.
func (r *Resolver) latestVersion(ctx context.Context, res *Resolved, force bool) (*Version, error) {
	desc := res.Source
	snap, ok := r.lister.(Snapshotter)
	if !ok {
		return nil, apperr.VersionUnresolved(desc.Name, errors.New("no cached version and no well-formed release tag"))
	}

	r.logger.Debug("no release tag, fetching default branch", "source", desc.Name, "location", desc.Location)
	entry, err := snap.FetchLatest(ctx, fetch.LatestRequest{
		Source:   desc.Name,
		Location: desc.Location,
		Force:    force,
		VersionOf: func(dir string) (string, error) {
			v, err := r.extractedVersion(desc, dir)
			if err != nil {
				return "", err
			}
			return v.Version, nil
		},
	})
	if err != nil {
		return nil, err
	}

	v, err := r.extractedVersion(desc, entry.Path)
	if err != nil {
		return nil, err
	}
	res.Entry, res.Fetched = entry, true
	return v, nil
}

func (r *Resolver) extractedVersion(desc source.Descriptor, dir string) (*Version, error) {
	fsys, err := PackageFS(desc, dir)
	if err != nil {
		return nil, apperr.VersionUnresolved(desc.Name, err)
	}
	return versionFromContent(desc.Name, fsys)
}

func (r *Resolver) ensureListing(ctx context.Context, res *Resolved) error {
	if res.Listed() {
		return nil
	}
	tags, err := r.lister.ListVersions(ctx, res.Source.Location)
	if err != nil {
		return err
	}
	listed := newListed(res.Source, tags)
	res.Listing, res.Tags = listed.Listing, listed.Tags
	return nil
}

// packageVersion reads the declared version from local or built-in content.
func (r *Resolver) packageVersion(desc source.Descriptor) (*Version, error) {
	fsys, err := PackageFS(desc, "")
	if err != nil {
		return nil, apperr.VersionUnresolved(desc.Name, err)
	}
	return versionFromContent(desc.Name, fsys)
}

func versionFromContent(name string, fsys fs.FS) (*Version, error) {
	m, err := manifest.Load(fsys)
	if err != nil {
		return nil, apperr.VersionUnresolved(name, err)
	}
	if v, ok := Canonical(m.DeclaredVersion); ok {
		return &Version{Version: v, Signal: SignalDeclared}, nil
	}

	typstVersion, err := manifest.ReadTypstVersion(fsys)
	if err != nil {
		return nil, apperr.VersionUnresolved(name, err)
	}
	if v, ok := Canonical(typstVersion); ok {
		return &Version{Version: v, Signal: SignalTypst}, nil
	}
	return nil, apperr.VersionUnresolved(name, errors.New("package declares no well-formed version"))
}

// PackageFS returns the package root for desc. Remote sources need the
// extracted cache directory in extracted; other kinds ignore it.
func PackageFS(desc source.Descriptor, extracted string) (fs.FS, error) {
	switch desc.Kind {
	case source.KindBuiltin:
		return builtin.FS(), nil
	case source.KindLocal:
		return os.DirFS(desc.Root()), nil
	case source.KindRemote:
		if extracted == "" {
			return nil, fmt.Errorf("remote source %s has no extracted package", desc.Name)
		}
		return os.DirFS(filepath.Join(extracted, desc.PathOverride)), nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", desc.Kind)
	}
}

// NewestTag returns the highest well-formed version among tags.
func NewestTag(tags []string) (version, tag string, ok bool) {
	var best *semver.Version
	for _, t := range tags {
		v, err := semver.NewVersion(strings.TrimSpace(t))
		if err != nil {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best, tag = v, t
		}
	}
	if best == nil {
		return "", "", false
	}
	return best.String(), tag, true
}
