package torchext

import "context"

// Builder compiles one kind of extension source tree.
//
// The factory asks each registered builder whether it handles an
// extension's source directory, then calls Build on the first that does.
// Builders carry no state between calls, so one value can serve many
// extensions concurrently.
//
// A builder for another generator would look like:
//
//	type MesonBuilder struct{}
//
//	func (b *MesonBuilder) Name() string { return "Meson" }
//
//	func (b *MesonBuilder) CanBuild(sourceDir string) bool {
//	    _, err := os.Stat(filepath.Join(sourceDir, "meson.build"))
//	    return err == nil
//	}
type Builder interface {
	// Name is used in logs and error messages.
	Name() string

	// CanBuild reports whether sourceDir is a tree this builder understands.
	CanBuild(sourceDir string) bool

	// Build configures and compiles ext. The result is non-nil whenever
	// Build got as far as planning; on failure it carries the error and the
	// captured output.
	Build(ctx context.Context, config *BuildConfig, ext Extension) (*BuildResult, error)

	// Clean removes intermediate artifacts. Nothing to clean is not an error.
	Clean(ctx context.Context, config *BuildConfig, ext Extension) error
}
