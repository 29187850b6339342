package torchext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Suffixes a compiled Python extension module can carry.
var nativeLibraryExtensions = []string{".so", ".pyd", ".dll", ".dylib"}

// finalizeNativeExtensions copies the built libraries into config.InstallDir
// under the extension's package path (cppcuda._C -> <install>/cppcuda/_C...so)
// and returns the installed paths. Inplace builds and builds without an
// install dir return the deduplicated build outputs.
func finalizeNativeExtensions(config *BuildConfig, plan *BuildPlan, built []string) ([]string, error) {
	built = uniqueStrings(built)
	if len(built) == 0 {
		return nil, nil
	}
	if config.InstallDir == "" || config.Inplace {
		return built, nil
	}

	destRoot := config.InstallDir
	if !filepath.IsAbs(destRoot) && config.ProjectDir != "" {
		destRoot = filepath.Join(config.ProjectDir, destRoot)
	}
	pkgDir := filepath.Dir(plan.Extension.ModulePath())

	installed := make([]string, 0, len(built))
	for _, src := range built {
		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		dest := filepath.Join(destRoot, safeRelativePath(filepath.Join(pkgDir, filepath.Base(src))))
		if err := installFile(src, dest, info.Mode()); err != nil {
			return nil, fmt.Errorf("install %s: %w", filepath.Base(src), err)
		}
		installed = append(installed, dest)
	}
	return installed, nil
}

// NativeLibrarySuffixes returns the suffixes a compiled extension module can carry.
func NativeLibrarySuffixes() []string {
	return slices.Clone(nativeLibraryExtensions)
}

func isNativeLibrary(path string) bool {
	return MatchesExtension(path, nativeLibraryExtensions...)
}

// installFile writes src to a temporary file beside dest and renames it into
// place, so an interpreter importing dest never sees a partial library.
func installFile(src, dest string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode.Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

// safeRelativePath keeps a relative path inside its root; anything escaping
// upward collapses to its base name.
func safeRelativePath(path string) string {
	clean := filepath.Clean(path)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return filepath.Base(clean)
	}
	return clean
}

// uniqueStrings drops empty and repeated values, keeping first occurrences.
func uniqueStrings(values []string) []string {
	var result []string
	for _, value := range values {
		if value != "" && !slices.Contains(result, value) {
			result = append(result, value)
		}
	}
	return result
}
