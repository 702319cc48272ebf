// Package resolve picks the template source to use and the version to load
// from it.
//
// Discovery walks the ordered source list and stops at the first enabled,
// accessible source. Version resolution then consults, in order, the
// source's pin, the newest cached version, the newest remote tag and the
// version declared by the package itself; the first well-formed signal wins.
package resolve

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gorewood/noter/internal/apperr"
	"github.com/gorewood/noter/internal/cache"
	"github.com/gorewood/noter/internal/fetch"
	"github.com/gorewood/noter/internal/manifest"
	"github.com/gorewood/noter/internal/source"
)

// Lister lists the release tags published for a remote location.
type Lister interface {
	ListVersions(ctx context.Context, location string) ([]string, error)
}

// Snapshotter installs the default branch of a remote source. Listers that
// implement it let version resolution fall back to the version the package
// content declares when no release tag names one.
type Snapshotter interface {
	FetchLatest(ctx context.Context, req fetch.LatestRequest) (*cache.Entry, error)
}

// Options controls one discovery pass.
type Options struct {
	// ForceRefresh ignores cached entries; remote sources must list.
	ForceRefresh bool
	// Exclude names sources to skip, e.g. after a failed download.
	Exclude map[string]bool
}

// Resolved is the outcome of discovery.
type Resolved struct {
	Source source.Descriptor
	// Entry is the cache entry that made a remote source accessible, if any.
	Entry *cache.Entry
	// Fetched is set when Entry was downloaded during version resolution.
	Fetched bool
	// Tags maps canonical versions to upstream tags, when a listing was fetched.
	Tags map[string]string
	// Listing holds the raw tags in API order.
	Listing []string
}

// Listed reports whether a remote listing was obtained.
func (r *Resolved) Listed() bool {
	return r.Listing != nil
}

// Resolver holds the collaborators used by discovery and version resolution.
type Resolver struct {
	cache  *cache.Cache
	lister Lister
	logger *slog.Logger
}

// New creates a Resolver. A nil logger discards output.
func New(store *cache.Cache, lister Lister, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{cache: store, lister: lister, logger: logger}
}

// Resolve returns the first enabled and accessible source in list order.
func (r *Resolver) Resolve(ctx context.Context, sources []source.Descriptor, opts Options) (*Resolved, error) {
	for _, desc := range sources {
		if !desc.IsEnabled() {
			r.logger.Debug("skipping disabled source", "source", desc.Name)
			continue
		}
		if opts.Exclude[desc.Name] {
			r.logger.Debug("skipping excluded source", "source", desc.Name)
			continue
		}

		res, err := r.inspect(ctx, desc, opts.ForceRefresh)
		if err != nil {
			return nil, err
		}
		if res != nil {
			r.logger.Debug("resolved source", "source", desc.Name, "kind", desc.Kind)
			return res, nil
		}
	}
	return nil, apperr.SourceNotFound("")
}

// inspect returns nil, nil when desc is inaccessible.
func (r *Resolver) inspect(ctx context.Context, desc source.Descriptor, force bool) (*Resolved, error) {
	switch desc.Kind {
	case source.KindBuiltin:
		return &Resolved{Source: desc}, nil
	case source.KindLocal:
		if manifest.Exists(desc.Root()) {
			return &Resolved{Source: desc}, nil
		}
		r.logger.Debug("local source inaccessible", "source", desc.Name, "path", desc.Root())
		return nil, nil
	case source.KindRemote:
		return r.inspectRemote(ctx, desc, force)
	default:
		return nil, nil
	}
}

func (r *Resolver) inspectRemote(ctx context.Context, desc source.Descriptor, force bool) (*Resolved, error) {
	if !force {
		entry, err := r.cachedEntry(desc)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return &Resolved{Source: desc, Entry: entry}, nil
		}
	}

	tags, err := r.lister.ListVersions(ctx, desc.Location)
	if err != nil {
		if errors.Is(err, apperr.ErrFetchFailed) {
			r.logger.Warn("remote source inaccessible", "source", desc.Name, "error", err)
			return nil, nil
		}
		return nil, err
	}
	return newListed(desc, tags), nil
}

// cachedEntry finds the entry that makes desc accessible without network:
// the pinned version when pinned, else the newest installed version.
func (r *Resolver) cachedEntry(desc source.Descriptor) (*cache.Entry, error) {
	var (
		entry *cache.Entry
		err   error
	)
	if pin, ok := Canonical(desc.PinnedVersion); ok {
		entry, err = r.cache.Lookup(desc.Name, pin)
	} else {
		entry, err = r.cache.Latest(desc.Name)
	}
	if errors.Is(err, cache.ErrNotCached) {
		return nil, nil
	}
	return entry, err
}

func newListed(desc source.Descriptor, tags []string) *Resolved {
	res := &Resolved{Source: desc, Listing: tags, Tags: make(map[string]string, len(tags))}
	if res.Listing == nil {
		res.Listing = []string{}
	}
	for _, tag := range tags {
		if v, ok := Canonical(tag); ok {
			if _, dup := res.Tags[v]; !dup {
				res.Tags[v] = tag
			}
		}
	}
	return res
}
