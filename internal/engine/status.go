package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gorewood/noter/internal/cache"
	"github.com/gorewood/noter/internal/fetch"
	"github.com/gorewood/noter/internal/manifest"
	"github.com/gorewood/noter/internal/resolve"
	"github.com/gorewood/noter/internal/source"
)

// remoteConcurrency bounds parallel listing and download requests.
const remoteConcurrency = 4

// SourceStatus describes one configured source.
type SourceStatus struct {
	Name       string        `json:"name"`
	Kind       source.Kind   `json:"kind"`
	Location   string        `json:"location,omitempty"`
	Pinned     string        `json:"pinned_version,omitempty"`
	Enabled    bool          `json:"enabled"`
	Accessible bool          `json:"accessible"`
	Installed  []cache.Entry `json:"installed,omitempty"`
	// Latest is the newest published version, set when remotes were checked.
	Latest      string `json:"latest,omitempty"`
	LatestError string `json:"latest_error,omitempty"`
}

// Corrupt returns the installed entries that failed validation.
func (s SourceStatus) Corrupt() []cache.Entry {
	var out []cache.Entry
	for _, e := range s.Installed {
		if e.Corrupt {
			out = append(out, e)
		}
	}
	return out
}

// Status reports every source in order. With checkRemote, enabled remote
// sources are listed in parallel to find their latest published version.
func (e *Engine) Status(ctx context.Context, sources []source.Descriptor, checkRemote bool) ([]SourceStatus, error) {
	statuses := make([]SourceStatus, len(sources))
	for i, desc := range sources {
		st := SourceStatus{
			Name:     desc.Name,
			Kind:     desc.Kind,
			Location: desc.Location,
			Pinned:   desc.PinnedVersion,
			Enabled:  desc.IsEnabled(),
		}
		switch desc.Kind {
		case source.KindBuiltin:
			st.Accessible = true
		case source.KindLocal:
			st.Accessible = manifest.Exists(desc.Root())
		case source.KindRemote:
			installed, err := e.cache.Versions(desc.Name)
			if err != nil {
				return nil, err
			}
			st.Installed = installed
			st.Accessible = len(installed) > len(st.Corrupt())
		}
		statuses[i] = st
	}

	if !checkRemote {
		return statuses, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(remoteConcurrency)
	for i, desc := range sources {
		if desc.Kind != source.KindRemote || !desc.IsEnabled() {
			continue
		}
		st := &statuses[i]
		g.Go(func() error {
			tags, err := e.fetcher.ListVersions(gctx, desc.Location)
			if err != nil {
				st.LatestError = err.Error()
				return nil
			}
			st.Accessible = true
			if v, _, ok := resolve.NewestTag(tags); ok {
				st.Latest = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return statuses, nil
}

// InstallResult is the outcome of updating or reinstalling one source.
type InstallResult struct {
	Source  string `json:"source"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path,omitempty"`
	// Fresh is set when this call downloaded the package.
	Fresh bool   `json:"fresh"`
	Error string `json:"error,omitempty"`
}

// Failed reports whether the install failed.
func (r InstallResult) Failed() bool {
	return r.Error != ""
}

// Update installs the version each enabled remote source resolves to when
// the cache is bypassed: its pin, or its newest release. Versions already
// cached are left in place.
func (e *Engine) Update(ctx context.Context, sources []source.Descriptor) []InstallResult {
	return e.installAll(ctx, remotes(sources, ""), false)
}

// Reinstall re-downloads the resolved version of the named remote source,
// or of every enabled remote when name is empty, replacing cache entries.
func (e *Engine) Reinstall(ctx context.Context, sources []source.Descriptor, name string) ([]InstallResult, error) {
	if name != "" {
		desc, ok := source.Find(sources, name)
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		if desc.Kind != source.KindRemote {
			return nil, fmt.Errorf("source %q is %s, only remote sources are installed", name, desc.Kind)
		}
	}
	return e.installAll(ctx, remotes(sources, name), true), nil
}

func remotes(sources []source.Descriptor, name string) []source.Descriptor {
	var out []source.Descriptor
	for _, desc := range sources {
		if desc.Kind != source.KindRemote {
			continue
		}
		if name != "" {
			if desc.Name == name {
				out = append(out, desc)
			}
			continue
		}
		if desc.IsEnabled() {
			out = append(out, desc)
		}
	}
	return out
}

func (e *Engine) installAll(ctx context.Context, sources []source.Descriptor, force bool) []InstallResult {
	results := make([]InstallResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(remoteConcurrency)
	for i, desc := range sources {
		g.Go(func() error {
			results[i] = e.install(gctx, desc, force)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Engine) install(ctx context.Context, desc source.Descriptor, force bool) InstallResult {
	result := InstallResult{Source: desc.Name}

	res := &resolve.Resolved{Source: desc}
	v, err := e.resolver.ResolveVersion(ctx, res, true)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Version = v.Version
	if res.Fetched {
		result.Path, result.Fresh = res.Entry.Path, true
		return result
	}

	if !force {
		entry, err := e.cache.Lookup(desc.Name, v.Version)
		switch {
		case err == nil:
			result.Path = entry.Path
			return result
		case !errors.Is(err, cache.ErrNotCached):
			result.Error = err.Error()
			return result
		}
	}

	entry, err := e.fetcher.Fetch(ctx, fetch.Request{
		Source:   desc.Name,
		Location: desc.Location,
		Tag:      v.Tag,
		Version:  v.Version,
		Force:    force,
	})
	if err != nil {
		e.logger.Warn("template install failed", "source", desc.Name, "version", v.Version, "error", err)
		result.Error = err.Error()
		return result
	}
	result.Path = entry.Path
	result.Fresh = true
	return result
}
