package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/gorewood/noter/internal/render"
	"github.com/gorewood/noter/internal/source"
)

// Validator is implemented by configuration types that check themselves after loading.
type Validator interface {
	Validate() error
}

// Load reads a YAML file into target after expanding environment variables,
// then validates target when it implements Validator.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Config is the user configuration read from config.yaml.
type Config struct {
	Author             string                `yaml:"author"               json:"author,omitempty"`
	SemesterFormat     render.SemesterFormat `yaml:"semester_format"      json:"semester_format"`
	SemesterCustom     string                `yaml:"semester_custom"      json:"semester_custom,omitempty"`
	NotesDir           string                `yaml:"notes_dir"            json:"notes_dir"`
	CacheDir           string                `yaml:"cache_dir"            json:"cache_dir,omitempty"`
	UseBuiltinFallback *bool                 `yaml:"use_builtin_fallback" json:"use_builtin_fallback,omitempty"`
	Sources            []source.Descriptor   `yaml:"sources"              json:"sources,omitempty"`
	Courses            map[string]string     `yaml:"courses"              json:"courses,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		SemesterFormat: render.SemesterYearSeason,
		NotesDir:       "notes",
	}
}

// LoadFile loads path over the defaults. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err := Load(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SemesterFormat, validation.In(
			render.SemesterYearSeason, render.SemesterSeasonYear,
			render.SemesterShort, render.SemesterCustom,
		)),
		validation.Field(&c.SemesterCustom,
			validation.When(c.SemesterFormat == render.SemesterCustom, validation.Required)),
		validation.Field(&c.NotesDir, validation.Required),
		validation.Field(&c.Sources),
	)
	if err != nil {
		return err
	}
	_, err = c.SourceList()
	return err
}

// BuiltinFallback reports whether the built-in package may be used.
func (c *Config) BuiltinFallback() bool {
	return c.UseBuiltinFallback == nil || *c.UseBuiltinFallback
}

// SourceList returns the configured sources in discovery order, with the
// built-in fallback placed last.
func (c *Config) SourceList() ([]source.Descriptor, error) {
	return source.Normalize(c.Sources, c.BuiltinFallback())
}

// CourseName returns the configured name for code, or "" when unknown.
func (c *Config) CourseName(code string) string {
	return c.Courses[code]
}

// Semester formats the semester containing t.
func (c *Config) Semester(t time.Time) string {
	return render.Semester(t, c.SemesterFormat, c.SemesterCustom)
}

// Metadata fills in what the config knows about a note: the author, the
// course name from the course map and the semester of date (or now when
// date is not an ISO date).
func (c *Config) Metadata(courseCode, title, date string, now time.Time) render.Metadata {
	when := now
	if t, err := time.Parse(time.DateOnly, date); err == nil {
		when = t
	}
	return render.Metadata{
		CourseCode: courseCode,
		CourseName: c.CourseName(courseCode),
		Title:      title,
		Date:       date,
		Author:     c.Author,
		Semester:   c.Semester(when),
	}
}

// ResolveCacheDir picks the package cache directory: the NOTER_CACHE_DIR
// setting, then cache_dir from the config file, then the user cache dir.
func (c *Config) ResolveCacheDir(s Settings) (string, error) {
	for _, dir := range []string{s.CacheDir, c.CacheDir} {
		if dir != "" {
			return expandHome(dir)
		}
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating user cache dir: %w", err)
	}
	return filepath.Join(base, "noter", "packages"), nil
}

// ResolveNotesDir returns notes_dir with a leading ~ expanded.
func (c *Config) ResolveNotesDir() (string, error) {
	return expandHome(c.NotesDir)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
