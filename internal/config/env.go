package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Settings are read from the environment.
type Settings struct {
	CacheDir     string        `env:"NOTER_CACHE_DIR"`
	GitHubAPI    string        `env:"NOTER_GITHUB_API"    envDefault:"https://api.github.com"`
	GitHubToken  string        `env:"NOTER_GITHUB_TOKEN"`
	FetchTimeout time.Duration `env:"NOTER_FETCH_TIMEOUT" envDefault:"30s"`
	RetryBackoff time.Duration `env:"NOTER_RETRY_BACKOFF" envDefault:"500ms"`
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// EnvFiles returns the dotenv files consulted at startup, highest priority first.
func EnvFiles() []string {
	files := []string{".env.local", ".env"}
	if dir := Dir(); dir != "" {
		files = append(files, filepath.Join(dir, "env"))
	}
	return files
}

// LoadEnvFiles loads each existing file into the process environment.
// Variables already set are never overridden, so earlier files win.
// It returns the files that were loaded.
func LoadEnvFiles(paths ...string) ([]string, error) {
	var loaded []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("checking %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("loading %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
