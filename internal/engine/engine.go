// Package engine runs the note generation pipeline: source discovery,
// version resolution, package loading, variant selection, context building
// and document generation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/gorewood/noter/internal/apperr"
	"github.com/gorewood/noter/internal/cache"
	"github.com/gorewood/noter/internal/fetch"
	"github.com/gorewood/noter/internal/manifest"
	"github.com/gorewood/noter/internal/render"
	"github.com/gorewood/noter/internal/resolve"
	"github.com/gorewood/noter/internal/source"
	"github.com/gorewood/noter/internal/variant"
)

// ErrUnsupported is returned when a request needs a capability the resolved
// package does not declare.
var ErrUnsupported = errors.New("not supported by template package")

// Fetcher lists and downloads remote packages.
type Fetcher interface {
	resolve.Lister
	Fetch(ctx context.Context, req fetch.Request) (*cache.Entry, error)
}

var _ resolve.Snapshotter = (*fetch.Client)(nil)

// Options configures an Engine.
type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Engine generates notes from the configured template sources.
type Engine struct {
	cache    *cache.Cache
	fetcher  Fetcher
	resolver *resolve.Resolver
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Engine backed by store and fetcher.
func New(store *cache.Cache, fetcher Fetcher, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cache:    store,
		fetcher:  fetcher,
		resolver: resolve.New(store, fetcher, logger),
		logger:   logger,
		now:      now,
	}
}

// Request is one note generation request.
type Request struct {
	Sources  []source.Descriptor
	Metadata render.Metadata
	NoteType manifest.NoteType
	// ForceRefresh ignores the cache and re-downloads remote packages.
	ForceRefresh bool
	// Variant selects a variant by id instead of by course pattern.
	Variant string
	// ExtraSections are appended as placeholder sections.
	ExtraSections []string
}

// Report says which source, version and variant produced a note.
type Report struct {
	Source     string         `json:"source"`
	Kind       source.Kind    `json:"kind"`
	Version    string         `json:"version"`
	Signal     resolve.Signal `json:"signal"`
	Variant    string         `json:"variant"`
	Package    string         `json:"package"`
	ImportPath string         `json:"import_path"`
	// Skipped lists resolved sources abandoned after a failed download.
	Skipped []string `json:"skipped,omitempty"`
}

// Result is a generated note.
type Result struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
	Report   Report `json:"report"`
}

// Package is a loaded template package.
type Package struct {
	Source   source.Descriptor
	Version  resolve.Version
	Manifest *manifest.Manifest
	FS       fs.FS
	// Path is the extracted directory for remote sources.
	Path string
	// Skipped lists sources abandoned after a failed download.
	Skipped []string
}

// Load resolves the first usable source and loads its manifest. When the
// download of a resolved remote source fails, discovery is repeated without it.
func (e *Engine) Load(ctx context.Context, sources []source.Descriptor, force bool) (*Package, error) {
	exclude := make(map[string]bool)
	for {
		res, err := e.resolver.Resolve(ctx, sources, resolve.Options{ForceRefresh: force, Exclude: exclude})
		if err != nil {
			if errors.Is(err, apperr.ErrSourceNotFound) && len(exclude) > 0 {
				return nil, apperr.SourceNotFound(fmt.Sprintf("download failed for %v", slices.Sorted(maps.Keys(exclude))))
			}
			return nil, err
		}

		version, err := e.resolver.ResolveVersion(ctx, res, force)
		if err != nil {
			if downloadFailed(res, err) {
				e.logger.Warn("template download failed, trying next source", "source", res.Source.Name, "error", err)
				exclude[res.Source.Name] = true
				continue
			}
			return nil, err
		}

		fsys, path, err := e.open(ctx, res, version, force)
		if err != nil {
			if downloadFailed(res, err) {
				e.logger.Warn("template download failed, trying next source",
					"source", res.Source.Name, "version", version.Version, "error", err)
				exclude[res.Source.Name] = true
				continue
			}
			return nil, err
		}

		m, err := manifest.Load(fsys)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", res.Source.Name, err)
		}

		skipped := slices.Sorted(maps.Keys(exclude))
		return &Package{Source: res.Source, Version: *version, Manifest: m, FS: fsys, Path: path, Skipped: skipped}, nil
	}
}

// downloadFailed reports whether err is a failed download of the package
// content of a resolved remote source. Listing failures during version
// resolution are VersionUnresolved and do not count.
func downloadFailed(res *resolve.Resolved, err error) bool {
	return res.Source.Kind == source.KindRemote && apperr.KindOf(err) == apperr.ErrFetchFailed
}

// open returns the package content for the resolved version, downloading
// remote packages that are not cached.
func (e *Engine) open(ctx context.Context, res *resolve.Resolved, v *resolve.Version, force bool) (fs.FS, string, error) {
	if res.Source.Kind != source.KindRemote {
		fsys, err := resolve.PackageFS(res.Source, "")
		return fsys, "", err
	}

	entry, err := e.remoteEntry(ctx, res, v, force)
	if err != nil {
		return nil, "", err
	}
	fsys, err := resolve.PackageFS(res.Source, entry.Path)
	return fsys, entry.Path, err
}

func (e *Engine) remoteEntry(ctx context.Context, res *resolve.Resolved, v *resolve.Version, force bool) (*cache.Entry, error) {
	if res.Entry != nil && res.Entry.Version == v.Version && (res.Fetched || !force) {
		return res.Entry, nil
	}
	if !force {
		entry, err := e.cache.Lookup(res.Source.Name, v.Version)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, cache.ErrNotCached) {
			return nil, err
		}
	}

	tag := v.Tag
	if tag == "" {
		tag = "v" + v.Version
	}
	return e.fetcher.Fetch(ctx, fetch.Request{
		Source:   res.Source.Name,
		Location: res.Source.Location,
		Tag:      tag,
		Version:  v.Version,
		Force:    force,
	})
}

// Resolve loads the package for req and selects the variant to render.
func (e *Engine) Resolve(ctx context.Context, req Request) (*Package, manifest.Variant, error) {
	pkg, err := e.Load(ctx, req.Sources, req.ForceRefresh)
	if err != nil {
		return nil, manifest.Variant{}, err
	}

	var v manifest.Variant
	if req.Variant != "" {
		v, err = variant.SelectByID(pkg.Manifest, req.Variant, req.NoteType)
	} else {
		v, err = variant.Select(pkg.Manifest, req.Metadata.CourseCode, req.NoteType)
	}
	if err != nil {
		return nil, manifest.Variant{}, err
	}
	return pkg, v, nil
}

// Report describes pkg and v.
func (p *Package) Report(v manifest.Variant) Report {
	return Report{
		Source:     p.Source.Name,
		Kind:       p.Source.Kind,
		Version:    p.Version.Version,
		Signal:     p.Version.Signal,
		Variant:    v.ID,
		Package:    p.Manifest.PackageName,
		ImportPath: render.ImportPath(p.Manifest.Namespace, p.Manifest.PackageName, p.Version.Version),
		Skipped:    p.Skipped,
	}
}

// Generate produces the note text for req.
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	pkg, v, err := e.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	m := pkg.Manifest

	if len(req.ExtraSections) > 0 {
		if !m.HasCapability(manifest.CapCustomSections) {
			return nil, fmt.Errorf("custom sections: %w (%s)", ErrUnsupported, m.PackageName)
		}
		v.Sections = slices.Clone(v.Sections)
		for _, title := range req.ExtraSections {
			v.Sections = append(v.Sections, manifest.Section{Title: title, Placeholder: title})
		}
	}

	md := req.Metadata
	if md.Date == "" {
		md.Date = e.now().Format(time.DateOnly)
	}

	rc, err := render.Build(v, md, m.Hooks, render.Package{
		Namespace: m.Namespace,
		Name:      m.PackageName,
		Version:   pkg.Version.Version,
	})
	if err != nil {
		return nil, err
	}
	text, err := render.Generate(v, rc)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("generated note",
		"source", pkg.Source.Name, "version", pkg.Version.Version, "variant", v.ID)

	return &Result{
		Text:     text,
		Filename: render.Filename(md.Date, md.CourseCode, v.NoteType, rc.Value(render.KeyTitle)),
		Report:   pkg.Report(v),
	}, nil
}
