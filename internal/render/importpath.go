package render

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	separatorRun = regexp.MustCompile(`[_\s.]+|-{2,}`)
	dashRun      = regexp.MustCompile(`-{2,}`)
	importLine   = regexp.MustCompile(`^#import\s+"@([^/"]+)/([^:"]+):([^"]+)"\s*:\s*\*\s*$`)
)

// NormalizePackageName maps a package or repository name to the form Typst
// resolves: lower case, repository basename only, with underscores, spaces
// and dots turned into single dashes.
func NormalizePackageName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = path.Base(strings.TrimRight(name, "/"))
	name = separatorRun.ReplaceAllString(name, "-")
	name = dashRun.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

// ImportPath returns "@<namespace>/<normalized name>:<version>".
func ImportPath(namespace, name, version string) string {
	return fmt.Sprintf("@%s/%s:%s", namespace, NormalizePackageName(name), version)
}

// ImportLine returns the Typst import statement for importPath.
func ImportLine(importPath string) string {
	return fmt.Sprintf("#import %q:*", importPath)
}

// ParseImport extracts namespace, package name and version from an import
// statement produced by ImportLine.
func ParseImport(line string) (namespace, name, version string, err error) {
	m := importLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", "", fmt.Errorf("not a package import: %q", line)
	}
	return m[1], m[2], m[3], nil
}
