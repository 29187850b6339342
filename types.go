package torchext

import (
	"context"

	"go.uber.org/zap"
)

// BuildResult contains the output and status of a build operation.
//
// After a build completes, this structure provides:
//   - Success status indicating if the build completed without errors
//   - Output lines captured from the build process (stdout/stderr)
//   - Extensions list of compiled extension files (.so/.pyd/.dylib)
//   - Error information if the build failed
type BuildResult struct {
	Extension           string   // Name of the extension that was built
	Success             bool     // True if build completed successfully
	Output              []string // Lines of output from the build process
	Extensions          []string // Paths to built extension files
	Error               error    // Error if build failed, nil otherwise
	MissingDependencies []string // Names of build-time dependencies that were missing
}

// BuildConfig contains configuration for the build process.
//
// Source and output paths:
//   - ProjectDir: Root of the Python project (holds VERSION, the package tree)
//   - BuildTemp: Parent of the per-extension CMake build directories
//   - BuildLib: Root the compiled library is written under
//   - InstallDir: Optional extra directory the built library is copied into
//   - Inplace: Write the library into ProjectDir instead of BuildLib
//
// Build configuration:
//   - Debug: nil defers to REL_WITH_DEB_INFO, otherwise Debug/Release
//   - Parallel: Forwarded as -jN unless CMAKE_BUILD_PARALLEL_LEVEL is set (0 = 4)
//   - CMakeArgs: Extra -D arguments appended to the configure command
//   - Env: Environment variables set during configure and build
//
// Python host:
//   - PythonPath: Interpreter passed to CMake as Python_EXECUTABLE
//   - ExtSuffix: Extension filename suffix; queried from PythonPath when empty
//   - TorchCMakeDir, Pybind11CMakeDir: Override the interpreter lookups
type BuildConfig struct {
	// Source paths
	ProjectDir string // Root directory of the Python project
	BuildTemp  string // Root of the CMake build directories
	BuildLib   string // Root of the library output tree
	InstallDir string // Optional copy destination for built libraries
	Inplace    bool   // Build into ProjectDir (setup.py build_ext --inplace)

	// Build arguments
	CMakeArgs []string          // Additional configure arguments
	Env       map[string]string // Environment variables for build

	// Python configuration
	PythonPath       string // Path to Python executable
	ExtSuffix        string // Extension suffix (.cpython-311-x86_64-linux-gnu.so)
	Version          string // Project version forwarded to CMake
	TorchCMakeDir    string // torch.utils.cmake_prefix_path override
	Pybind11CMakeDir string // pybind11.get_cmake_dir() override

	// Build options
	Debug      *bool // Debug build; nil reads REL_WITH_DEB_INFO
	Verbose    bool  // Enable verbose output
	CleanFirst bool  // Run clean before build
	Parallel   int   // Number of parallel jobs (for -j)

	// Failure handling
	StopOnFailure bool // Stop after the first failed extension build

	// Logger receives progress and failure diagnostics. Nil disables logging.
	Logger *zap.Logger
}

func (c *BuildConfig) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// BuildPlan is the fully resolved invocation for one extension.
//
// It is produced before any subprocess runs, so it can be inspected for
// dry runs and so every later phase works from the same values.
type BuildPlan struct {
	Extension Extension
	ExtDir    string // Library output directory, always ends with a separator
	BuildDir  string // CMake binary directory
	BuildType string // Debug or Release
	Prefixes  PrefixPaths
	CMakeArgs []string // Arguments after the source dir for the configure phase
	BuildArgs []string // Arguments after "--build ." for the build phase
	Env       []string // Full environment for both phases
}

// CommonBuildSteps defines the build pattern shared by builders.
//
// Extension build systems follow a similar pattern:
//  1. Plan: Resolve paths, prefixes and arguments
//  2. Configure: Generate build files
//  3. Build: Compile the extension
//  4. Find: Locate the compiled extension files
//
// Example usage in a builder:
//
//	return runCommonBuild(ctx, config, ext, CommonBuildSteps{
//	    PlanFunc:      b.Plan,
//	    ConfigureFunc: b.runConfigure,
//	    BuildFunc:     b.runBuild,
//	    FindFunc:      b.findBuiltExtensions,
//	})
type CommonBuildSteps struct {
	// PlanFunc resolves everything the later steps need without side effects
	PlanFunc func(ctx context.Context, config *BuildConfig, ext Extension) (*BuildPlan, error)

	// ConfigureFunc prepares the build environment (e.g., run cmake)
	ConfigureFunc func(ctx context.Context, config *BuildConfig, plan *BuildPlan, result *BuildResult) error

	// BuildFunc compiles the extension (e.g., run cmake --build)
	BuildFunc func(ctx context.Context, config *BuildConfig, plan *BuildPlan, result *BuildResult) error

	// FindFunc locates the compiled extension files after build completes
	FindFunc func(plan *BuildPlan) ([]string, error)
}
