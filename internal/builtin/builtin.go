// Package builtin embeds the fallback template package shipped with noter.
package builtin

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/gorewood/noter/internal/manifest"
)

//go:embed package/*
var packageFS embed.FS

// FS returns the built-in package rooted at its manifest.
func FS() fs.FS {
	sub, err := fs.Sub(packageFS, "package")
	if err != nil {
		// fs.Sub only fails on an invalid path literal.
		panic(err)
	}
	return sub
}

// Manifest loads the built-in package manifest.
func Manifest() (*manifest.Manifest, error) {
	m, err := manifest.Load(FS())
	if err != nil {
		return nil, fmt.Errorf("loading builtin package: %w", err)
	}
	return m, nil
}

// Files lists the names of the files in the built-in package.
func Files() []string {
	entries, err := fs.ReadDir(FS(), ".")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}
