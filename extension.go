package torchext

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Extension is one native module of a Python package.
//
// Name is the importable module name and may be dotted ("pkg.ops._C").
// SourceDir is the directory holding the extension's CMakeLists.txt.
type Extension struct {
	Name      string
	SourceDir string
}

// NewCMakeExtension creates an Extension with an absolute source directory.
// An empty sourceDir means the current working directory.
func NewCMakeExtension(name, sourceDir string) (Extension, error) {
	if strings.TrimSpace(name) == "" {
		return Extension{}, fmt.Errorf("extension name is required")
	}

	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return Extension{}, fmt.Errorf("failed to resolve source dir for %s: %w", name, err)
	}

	return Extension{Name: name, SourceDir: abs}, nil
}

// ModulePath returns the extension name as a relative path without suffix.
//
//	"pkg.ops._C" -> "pkg/ops/_C"
func (e Extension) ModulePath() string {
	return filepath.Join(strings.Split(e.Name, ".")...)
}

// FullPath returns where the compiled library for this extension lives
// beneath root, following setuptools' get_ext_fullpath layout.
func (e Extension) FullPath(root, extSuffix string) string {
	return filepath.Join(root, e.ModulePath()+extSuffix)
}

func extensionNames(exts []Extension) string {
	names := make([]string, 0, len(exts))
	for _, ext := range exts {
		names = append(names, ext.Name)
	}
	return strings.Join(names, ", ")
}
