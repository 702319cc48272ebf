package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gorewood/noter/internal/render"
	"github.com/gorewood/noter/internal/source"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileMissingGivesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("LoadFile(missing) mismatch (-want +got):\n%s", diff)
	}
	if !cfg.BuiltinFallback() {
		t.Error("BuiltinFallback() = false by default")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("NOTER_TEST_AUTHOR", "Ada Lovelace")
	path := writeConfig(t, `
author: ${NOTER_TEST_AUTHOR}
semester_format: short
notes_dir: ~/uni
use_builtin_fallback: false
sources:
  - name: builtin
    kind: builtin
  - name: dtu
    kind: remote
    location: HollowNumber/dtu-templates
    pinned_version: 0.6.0
    path_override: template
courses:
  "02101": Introduction to Programming
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Author != "Ada Lovelace" {
		t.Errorf("Author = %q, want env-expanded value", cfg.Author)
	}
	if cfg.CourseName("02101") != "Introduction to Programming" || cfg.CourseName("99999") != "" {
		t.Errorf("CourseName lookups wrong: %v", cfg.Courses)
	}
	if got := cfg.Semester(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)); got != "S25" {
		t.Errorf("Semester() = %q, want S25", got)
	}

	sources, err := cfg.SourceList()
	if err != nil {
		t.Fatalf("SourceList() error = %v", err)
	}
	if len(sources) != 2 || sources[0].Name != "dtu" || sources[1].Kind != source.KindBuiltin {
		t.Fatalf("SourceList() = %+v, want dtu then builtin", sources)
	}
	if sources[1].IsEnabled() {
		t.Error("builtin should be disabled when use_builtin_fallback is false")
	}

	notes, err := cfg.ResolveNotesDir()
	if err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(notes, "~") {
		t.Errorf("ResolveNotesDir() = %q, want ~ expanded", notes)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown semester format",
			content: "semester_format: quarterly\n",
			wantErr: "semester_format",
		},
		{
			name:    "custom format without pattern",
			content: "semester_format: custom\n",
			wantErr: "semester_custom",
		},
		{
			name:    "remote source without location",
			content: "sources:\n  - name: x\n    kind: remote\n",
			wantErr: "location",
		},
		{
			name:    "duplicate sources",
			content: "sources:\n  - {name: x, kind: local, location: /a}\n  - {name: x, kind: local, location: /b}\n",
			wantErr: "duplicate",
		},
		{
			name:    "malformed yaml",
			content: "author: [",
			wantErr: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadFile() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadFile() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveCacheDir(t *testing.T) {
	cfg := Default()

	got, err := cfg.ResolveCacheDir(Settings{CacheDir: "/env/cache"})
	if err != nil || got != "/env/cache" {
		t.Errorf("ResolveCacheDir(env) = %q, %v", got, err)
	}

	cfg.CacheDir = "/config/cache"
	got, err = cfg.ResolveCacheDir(Settings{})
	if err != nil || got != "/config/cache" {
		t.Errorf("ResolveCacheDir(config) = %q, %v", got, err)
	}

	cfg.CacheDir = ""
	got, err = cfg.ResolveCacheDir(Settings{})
	if err != nil {
		t.Fatalf("ResolveCacheDir(default) error = %v", err)
	}
	if filepath.Base(got) != "packages" {
		t.Errorf("ResolveCacheDir(default) = %q, want .../noter/packages", got)
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	for _, key := range []string{"NOTER_CACHE_DIR", "NOTER_GITHUB_API", "NOTER_GITHUB_TOKEN", "NOTER_FETCH_TIMEOUT", "NOTER_RETRY_BACKOFF"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	want := Settings{
		GitHubAPI:    "https://api.github.com",
		FetchTimeout: 30 * time.Second,
		RetryBackoff: 500 * time.Millisecond,
	}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("LoadSettings() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	t.Setenv("NOTER_FETCH_TIMEOUT", "5s")
	t.Setenv("NOTER_GITHUB_TOKEN", "tok")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.FetchTimeout != 5*time.Second || s.GitHubToken != "tok" {
		t.Errorf("LoadSettings() = %+v", s)
	}

	t.Setenv("NOTER_FETCH_TIMEOUT", "soon")
	if _, err := LoadSettings(); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Errorf("LoadSettings(bad duration) error = %v, want parse env error", err)
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, ".env.local")
	second := filepath.Join(dir, ".env")
	if err := os.WriteFile(first, []byte("NOTER_TEST_A=local\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("NOTER_TEST_A=shared\nNOTER_TEST_B=shared\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NOTER_TEST_A", "")
	os.Unsetenv("NOTER_TEST_A")
	t.Setenv("NOTER_TEST_B", "")
	os.Unsetenv("NOTER_TEST_B")

	loaded, err := LoadEnvFiles(first, second, filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Errorf("loaded = %v, want two files", loaded)
	}
	if got := os.Getenv("NOTER_TEST_A"); got != "local" {
		t.Errorf("NOTER_TEST_A = %q, want earlier file to win", got)
	}
	if got := os.Getenv("NOTER_TEST_B"); got != "shared" {
		t.Errorf("NOTER_TEST_B = %q, want shared", got)
	}
}

func TestEnvFiles(t *testing.T) {
	t.Setenv("NOTER_CONFIG_HOME", "/cfg")
	files := EnvFiles()
	if diff := cmp.Diff([]string{".env.local", ".env", filepath.Join("/cfg", "env")}, files); diff != "" {
		t.Errorf("EnvFiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestSemesterFormatsAccepted(t *testing.T) {
	for _, f := range []render.SemesterFormat{render.SemesterYearSeason, render.SemesterSeasonYear, render.SemesterShort} {
		cfg := Default()
		cfg.SemesterFormat = f
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate(%s) error = %v", f, err)
		}
	}
}

func TestMetadata(t *testing.T) {
	cfg := Default()
	cfg.Author = "Ada"
	cfg.Courses = map[string]string{"02101": "Introduction to Programming"}
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	got := cfg.Metadata("02101", "Intro", "2025-09-01", now)
	want := render.Metadata{
		CourseCode: "02101",
		CourseName: "Introduction to Programming",
		Title:      "Intro",
		Date:       "2025-09-01",
		Author:     "Ada",
		Semester:   "2025 Fall",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Metadata() mismatch (-want +got):\n%s", diff)
	}

	if got := cfg.Metadata("99999", "", "", now); got.Semester != "2025 Spring" || got.CourseName != "" {
		t.Errorf("Metadata(no date) = %+v, want spring semester from now", got)
	}
}
