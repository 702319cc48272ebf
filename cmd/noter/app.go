package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gorewood/noter/internal/apperr"
	"github.com/gorewood/noter/internal/cache"
	"github.com/gorewood/noter/internal/config"
	"github.com/gorewood/noter/internal/engine"
	"github.com/gorewood/noter/internal/fetch"
	"github.com/gorewood/noter/internal/notefile"
	"github.com/gorewood/noter/internal/output"
	"github.com/gorewood/noter/internal/source"
)

// app bundles what commands need from config and the environment.
type app struct {
	configPath string
	cfg        *config.Config
	settings   config.Settings
	sources    []source.Descriptor
	cacheDir   string
	notesDir   string
	store      *cache.Cache
	engine     *engine.Engine
	logger     *slog.Logger
}

// configPath returns --config or the default config file.
func configPath(cmd *cobra.Command) string {
	if path := stringFlag(cmd, "config"); path != "" {
		return path
	}
	return config.File()
}

// loadApp reads the config and environment and wires the engine.
func loadApp(cmd *cobra.Command) (*app, error) {
	path := configPath(cmd)
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, output.NewUserErrorWithCause(err.Error(), err)
	}
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, output.NewUserErrorWithCause(err.Error(), err)
	}
	sources, err := cfg.SourceList()
	if err != nil {
		return nil, output.NewUserErrorWithCause(err.Error(), err)
	}
	cacheDir, err := cfg.ResolveCacheDir(settings)
	if err != nil {
		return nil, output.NewSystemErrorWithCause(err.Error(), err)
	}
	notesDir, err := cfg.ResolveNotesDir()
	if err != nil {
		return nil, output.NewSystemErrorWithCause(err.Error(), err)
	}

	logger := newLogger(cmd)
	store := cache.New(cacheDir)
	fetcher := fetch.New(store, fetch.Options{
		BaseURL: settings.GitHubAPI,
		Token:   settings.GitHubToken,
		Timeout: settings.FetchTimeout,
		Backoff: settings.RetryBackoff,
		Logger:  logger,
	})

	return &app{
		configPath: path,
		cfg:        cfg,
		settings:   settings,
		sources:    sources,
		cacheDir:   cacheDir,
		notesDir:   notesDir,
		store:      store,
		engine:     engine.New(store, fetcher, engine.Options{Logger: logger}),
		logger:     logger,
	}, nil
}

// classify maps engine and file errors to exit codes.
func classify(err error) *output.ExitError {
	switch {
	case errors.Is(err, notefile.ErrExists):
		return &output.ExitError{Code: output.ExitConflict, Message: err.Error() + " (use --force to overwrite)", Cause: err}
	case errors.Is(err, engine.ErrUnsupported), errors.Is(err, notefile.ErrInvalidCourse):
		return output.NewUserErrorWithCause(err.Error(), err)
	case errors.Is(err, apperr.ErrCacheCorrupt):
		return output.NewSystemErrorWithCause(err.Error()+" (run 'noter template reinstall' to repair)", err)
	}
	return output.FromError(err)
}

// fail prints err and returns it classified.
func fail(printer *output.Printer, err error) error {
	exitErr := classify(err)
	printer.Error(exitErr)
	return exitErr
}

// onlySource applies --source: only the named source and the
// built-in fallback are considered.
func (a *app) onlySource(name string) error {
	if name == "" {
		return nil
	}
	desc, ok := source.Find(a.sources, name)
	if !ok {
		return output.NewUserError(fmt.Sprintf("unknown source %q", name))
	}
	desc.Enabled = source.Bool(true)
	only := []source.Descriptor{desc}
	if desc.Kind != source.KindBuiltin {
		if builtin, ok := source.Find(a.sources, source.BuiltinName); ok {
			only = append(only, builtin)
		}
	}
	a.sources = only
	return nil
}
