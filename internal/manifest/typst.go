package manifest

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"
)

// TypstFileName is the Typst package metadata file.
const TypstFileName = "typst.toml"

type typstFile struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

// ReadTypstVersion returns the [package] version from typst.toml at the root
// of fsys. It returns "" without error when the file does not exist.
func ReadTypstVersion(fsys fs.FS) (string, error) {
	data, err := fs.ReadFile(fsys, TypstFileName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", TypstFileName, err)
	}

	var tf typstFile
	if _, err := toml.Decode(string(data), &tf); err != nil {
		return "", fmt.Errorf("parsing %s: %w", TypstFileName, err)
	}
	return tf.Package.Version, nil
}
