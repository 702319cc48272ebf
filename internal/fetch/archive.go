package fetch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const maxFileSize = 32 << 20

// extractTarGz unpacks a release tarball into dir. GitHub tarballs wrap the
// tree in a single "<owner>-<repo>-<sha>/" directory, which is stripped.
// Entries that would land outside dir, links and devices are rejected or skipped.
func extractTarGz(data []byte, dir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	files := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
		}

		rel, ok := stripRoot(hdr.Name)
		if !ok {
			continue
		}
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("%w: entry %q escapes package root", ErrArchiveCorrupt, hdr.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", rel, err)
			}
		case tar.TypeReg:
			if hdr.Size > maxFileSize {
				return fmt.Errorf("%w: entry %q too large", ErrArchiveCorrupt, hdr.Name)
			}
			if err := writeEntry(target, tr, hdr.Size); err != nil {
				return err
			}
			files++
		}
	}

	if files == 0 {
		return fmt.Errorf("%w: archive holds no files", ErrArchiveCorrupt)
	}
	return nil
}

// stripRoot drops the first path component. The bare root entry and
// pax headers report ok=false.
func stripRoot(name string) (string, bool) {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	_, rest, found := strings.Cut(name, "/")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}

func writeEntry(target string, r io.Reader, size int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", target, err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", target, err)
	}
	n, copyErr := io.Copy(f, io.LimitReader(r, size))
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrArchiveCorrupt, target, copyErr)
	}
	if n != size {
		return fmt.Errorf("%w: %s truncated", ErrArchiveCorrupt, target)
	}
	return closeErr
}
