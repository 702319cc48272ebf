package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/gorewood/noter/internal/apperr"
)

var fixedNow = time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := New(t.TempDir())
	c.now = func() time.Time { return fixedNow }
	return c
}

func writeManifest(content string) Populate {
	return func(dir string) error {
		return os.WriteFile(filepath.Join(dir, "noter.yaml"), []byte(content), 0o600)
	}
}

func install(t *testing.T, c *Cache, source, version string) *Entry {
	t.Helper()
	entry, err := c.Install(context.Background(), source, version, writeManifest("package_name: "+version), InstallOptions{Tag: "v" + version})
	if err != nil {
		t.Fatalf("Install(%s, %s) error = %v", source, version, err)
	}
	return entry
}

func TestInstallAndLookup(t *testing.T) {
	c := newTestCache(t)
	installed := install(t, c, "dtu", "1.5.0")

	got, err := c.Lookup("dtu", "1.5.0")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	want := &Entry{
		Source:    "dtu",
		Version:   "1.5.0",
		Tag:       "v1.5.0",
		FetchedAt: fixedNow,
		Path:      c.Dir("dtu", "1.5.0"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Lookup() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, installed); diff != "" {
		t.Errorf("Install() mismatch (-want +got):\n%s", diff)
	}

	if _, err := os.Stat(filepath.Join(got.Path, "noter.yaml")); err != nil {
		t.Errorf("package content missing: %v", err)
	}
}

func TestLookupMissing(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Lookup("dtu", "1.0.0"); !errors.Is(err, ErrNotCached) {
		t.Errorf("Lookup() error = %v, want ErrNotCached", err)
	}
	if _, err := c.Latest("dtu"); !errors.Is(err, ErrNotCached) {
		t.Errorf("Latest() error = %v, want ErrNotCached", err)
	}
}

func TestCorruptEntry(t *testing.T) {
	c := newTestCache(t)
	dir := c.Dir("dtu", "2.0.0")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Lookup("dtu", "2.0.0"); !errors.Is(err, apperr.ErrCacheCorrupt) {
		t.Errorf("Lookup() error = %v, want ErrCacheCorrupt", err)
	}
	if _, err := c.Latest("dtu"); !errors.Is(err, apperr.ErrCacheCorrupt) {
		t.Errorf("Latest() error = %v, want ErrCacheCorrupt", err)
	}

	// Without force the corrupt directory is left alone.
	_, err := c.Install(context.Background(), "dtu", "2.0.0", writeManifest("x"), InstallOptions{})
	if !errors.Is(err, apperr.ErrCacheCorrupt) {
		t.Errorf("Install() without force error = %v, want ErrCacheCorrupt", err)
	}

	// Force overwrites it.
	if _, err := c.Install(context.Background(), "dtu", "2.0.0", writeManifest("x"), InstallOptions{Force: true}); err != nil {
		t.Fatalf("Install(force) error = %v", err)
	}
	if _, err := c.Lookup("dtu", "2.0.0"); err != nil {
		t.Errorf("Lookup() after reinstall error = %v", err)
	}
}

func TestVersionsNewestFirst(t *testing.T) {
	c := newTestCache(t)
	for _, v := range []string{"1.5.0", "1.10.0", "1.9.2"} {
		install(t, c, "dtu", v)
	}
	if err := os.MkdirAll(c.Dir("dtu", "scratch"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := c.Versions("dtu")
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}

	var got []string
	for _, e := range entries {
		got = append(got, e.Version)
	}
	if diff := cmp.Diff([]string{"1.10.0", "1.9.2", "1.5.0", "scratch"}, got); diff != "" {
		t.Errorf("Versions() order mismatch (-want +got):\n%s", diff)
	}
	if !entries[3].Corrupt {
		t.Error("scratch directory should be reported corrupt")
	}

	latest, err := c.Latest("dtu")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.Version != "1.10.0" {
		t.Errorf("Latest() = %s, want 1.10.0", latest.Version)
	}
}

func TestInstallExistingWithoutForceKeepsEntry(t *testing.T) {
	c := newTestCache(t)
	first := install(t, c, "dtu", "1.0.0")

	called := false
	second, err := c.Install(context.Background(), "dtu", "1.0.0", func(string) error {
		called = true
		return nil
	}, InstallOptions{})
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if called {
		t.Error("populate called for an existing entry")
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second Install() mismatch (-want +got):\n%s", diff)
	}
}

func TestInstallPopulateFailureLeavesNothing(t *testing.T) {
	c := newTestCache(t)
	boom := errors.New("archive truncated")

	_, err := c.Install(context.Background(), "dtu", "1.0.0", func(dir string) error {
		_ = os.WriteFile(filepath.Join(dir, "partial"), []byte("x"), 0o600)
		return boom
	}, InstallOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("Install() error = %v, want %v", err, boom)
	}

	if _, err := os.Stat(c.Dir("dtu", "1.0.0")); !os.IsNotExist(err) {
		t.Errorf("version dir exists after failed install: %v", err)
	}
	leftovers, _ := filepath.Glob(filepath.Join(c.Root(), "dtu", ".staging-*"))
	if len(leftovers) != 0 {
		t.Errorf("staging dirs left behind: %v", leftovers)
	}
}

func TestConcurrentInstalls(t *testing.T) {
	c := newTestCache(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Install(context.Background(), "dtu", "3.0.0", writeManifest("v3"), InstallOptions{Force: i%2 == 0})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("install %d error = %v", i, err)
		}
	}
	if _, err := c.Lookup("dtu", "3.0.0"); err != nil {
		t.Errorf("Lookup() after concurrent installs error = %v", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	c := newTestCache(t)
	for _, key := range []string{"", "..", "../x", "a/b", ".hidden"} {
		if _, err := c.Lookup(key, "1.0.0"); err == nil || errors.Is(err, ErrNotCached) {
			t.Errorf("Lookup(%q) error = %v, want invalid key", key, err)
		}
	}
}

func TestSources(t *testing.T) {
	c := newTestCache(t)
	install(t, c, "b", "1.0.0")
	install(t, c, "a", "1.0.0")

	got, err := c.Sources()
	if err != nil {
		t.Fatalf("Sources() error = %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got, cmpopts.SortSlices(func(x, y string) bool { return x < y })); diff != "" {
		t.Errorf("Sources() mismatch (-want +got):\n%s", diff)
	}
}
