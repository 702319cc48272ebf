// Package config locates and loads noter's configuration.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Dir returns the noter configuration directory.
//
// Resolution:
//   - $NOTER_CONFIG_HOME if set (explicit override)
//   - $XDG_CONFIG_HOME/noter if set (respects XDG on any platform)
//   - %AppData%/noter on Windows
//   - ~/.config/noter on macOS and Linux
func Dir() string {
	if dir := os.Getenv("NOTER_CONFIG_HOME"); dir != "" {
		return dir
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "noter")
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "noter")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "noter")
}

// File returns the path of config.yaml inside Dir.
func File() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}
