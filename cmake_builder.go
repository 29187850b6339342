package torchext

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	cmakeProgram         = "cmake"
	cmakeListsFile       = "CMakeLists.txt"
	parallelLevelEnvVar  = "CMAKE_BUILD_PARALLEL_LEVEL"
	prefixPathEnvVar     = "CMAKE_PREFIX_PATH"
	defaultParallelJobs  = 4
	cmakeBuilderName     = "CMake"
	phaseConfigure       = "configure"
	phaseBuild           = "build"
	phaseClean           = "clean"
	nativeLibraryPattern = "*"
)

// CmakeBuilder builds PyTorch extensions whose source dir holds a CMakeLists.txt.
type CmakeBuilder struct{}

// Name returns the builder name
func (b *CmakeBuilder) Name() string {
	return cmakeBuilderName
}

// RequiredTools lists cmake as required. Python is resolved separately
// (explicit path, $PYTHON, PATH) so it is only probed here.
func (b *CmakeBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{
		{Name: cmakeProgram, Purpose: "CMake build system", Missing: ErrCMakeNotFound},
		{Name: "python3", Alternatives: []string{"python"}, Optional: true, Purpose: "Python interpreter with torch and pybind11"},
		{Name: "nvcc", Optional: true, Purpose: "CUDA compiler for .cu sources"},
	}
}

// CheckTools verifies that cmake is on PATH
func (b *CmakeBuilder) CheckTools() error {
	return CheckRequiredTools(b.RequiredTools())
}

// CanBuild checks if the source dir (or file) is a CMake project
func (b *CmakeBuilder) CanBuild(sourceDir string) bool {
	if filepath.Base(sourceDir) == cmakeListsFile {
		return true
	}
	info, err := os.Stat(filepath.Join(sourceDir, cmakeListsFile))
	return err == nil && info.Mode().IsRegular()
}

// Build compiles the extension using the cmake configure → cmake --build workflow
func (b *CmakeBuilder) Build(ctx context.Context, config *BuildConfig, ext Extension) (*BuildResult, error) {
	result, err := runCommonBuild(ctx, config, ext, CommonBuildSteps{
		PlanFunc:      b.Plan,
		ConfigureFunc: b.runConfigure,
		BuildFunc:     b.runBuild,
		FindFunc: func(plan *BuildPlan) ([]string, error) {
			built, err := b.findBuiltExtensions(plan)
			if err != nil {
				return nil, err
			}
			return finalizeNativeExtensions(config, plan, built)
		},
	})
	if err != nil {
		result.MissingDependencies = missingDependencies(err)
	}
	return result, err
}

// Clean removes build artifacts through the generated build system
func (b *CmakeBuilder) Clean(ctx context.Context, config *BuildConfig, ext Extension) error {
	buildDir, err := buildDirFor(config, ext)
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(buildDir, "CMakeCache.txt")); os.IsNotExist(err) {
		return nil // Never configured, nothing to clean
	}

	out, err := runCaptured(ctx, buildDir, nil, cmakeProgram, cleanArgs()...)
	if err != nil {
		return err
	}
	if out.ExitCode != 0 {
		return &PhaseError{Builder: cmakeBuilderName, Phase: phaseClean, ExitCode: out.ExitCode, Stdout: out.Stdout, Stderr: out.Stderr}
	}
	return nil
}

// RemoveBuildDir deletes the extension's CMake build directory entirely.
func (b *CmakeBuilder) RemoveBuildDir(config *BuildConfig, ext Extension) error {
	buildDir, err := buildDirFor(config, ext)
	if err != nil {
		return err
	}
	return os.RemoveAll(buildDir)
}

// Plan resolves the full configure and build invocation for ext.
//
// It checks for cmake, resolves the interpreter, build type and dependency
// prefix paths, and validates the dependency config files. It creates no
// files and starts no build, so a failure here means nothing was invoked.
func (b *CmakeBuilder) Plan(ctx context.Context, config *BuildConfig, ext Extension) (*BuildPlan, error) {
	logger := config.logger()

	if _, err := execLookPath(cmakeProgram); err != nil {
		return nil, cmakeMissing([]Extension{ext})
	}

	interp, err := ResolveInterpreter(config.PythonPath)
	if err != nil {
		return nil, err
	}

	extDir, err := b.extensionOutputDir(ctx, config, interp, ext)
	if err != nil {
		return nil, err
	}

	baseEnv := mergeEnv(osEnviron(), config.Env)

	buildType, err := ResolveBuildType(config.Debug, func(key string) (string, bool) {
		return lookupEnv(baseEnv, key)
	})
	if err != nil {
		return nil, err
	}

	prefixes, err := LocatePrefixPaths(ctx, interp, PrefixPaths{
		Torch:    config.TorchCMakeDir,
		Pybind11: config.Pybind11CMakeDir,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := prefixes.Validate(); err != nil {
		return nil, err
	}

	buildDir, err := buildDirFor(config, ext)
	if err != nil {
		return nil, err
	}

	version := config.Version
	if version == "" {
		version = ReadVersion(config.ProjectDir)
	}

	cmakeArgs := []string{
		fmt.Sprintf("-DCMAKE_LIBRARY_OUTPUT_DIRECTORY=%s", extDir),
		fmt.Sprintf("-DPython_EXECUTABLE=%s", interp.Path),
		fmt.Sprintf("-DCMAKE_BUILD_TYPE=%s", buildType),
		fmt.Sprintf("-DEXAMPLE_VERSION_INFO=%s", version),
		fmt.Sprintf("-DCMAKE_PREFIX_PATH=%s", prefixes.CMakePrefixPath()),
	}
	cmakeArgs = append(cmakeArgs, config.CMakeArgs...)

	return &BuildPlan{
		Extension: ext,
		ExtDir:    extDir,
		BuildDir:  buildDir,
		BuildType: buildType,
		Prefixes:  prefixes,
		CMakeArgs: cmakeArgs,
		BuildArgs: buildArgs(buildType, config.Parallel, baseEnv),
		Env:       mergeEnv(baseEnv, map[string]string{prefixPathEnvVar: prefixes.CMakePrefixPath()}),
	}, nil
}

// runConfigure creates the build dir and runs cmake <source> <args>
func (b *CmakeBuilder) runConfigure(ctx context.Context, config *BuildConfig, plan *BuildPlan, result *BuildResult) error {
	logger := config.logger().With(zap.String("extension", plan.Extension.Name))

	if err := os.MkdirAll(plan.BuildDir, 0o755); err != nil {
		return fmt.Errorf("failed to create build directory %s: %w", plan.BuildDir, err)
	}

	logger.Info("Running CMake", zap.String("build_dir", plan.BuildDir))
	logger.Info("CMake arguments", zap.String("args", strings.Join(plan.CMakeArgs, " ")))
	logger.Info("Build arguments", zap.String("args", strings.Join(plan.BuildArgs, " ")))

	args := append([]string{plan.Extension.SourceDir}, plan.CMakeArgs...)
	return b.runPhase(ctx, config, plan, result, phaseConfigure, args)
}

// runBuild executes cmake --build . <build args>, after the clean target
// when CleanFirst is set. A failed clean stops the build.
func (b *CmakeBuilder) runBuild(ctx context.Context, config *BuildConfig, plan *BuildPlan, result *BuildResult) error {
	if config.CleanFirst {
		if err := b.runPhase(ctx, config, plan, result, phaseClean, cleanArgs()); err != nil {
			return err
		}
	}

	args := append([]string{"--build", "."}, plan.BuildArgs...)
	return b.runPhase(ctx, config, plan, result, phaseBuild, args)
}

// runPhase runs one cmake invocation and turns a nonzero exit into a PhaseError.
func (b *CmakeBuilder) runPhase(ctx context.Context, config *BuildConfig, plan *BuildPlan, result *BuildResult, phase string, args []string) error {
	logger := config.logger().With(
		zap.String("extension", plan.Extension.Name),
		zap.String("phase", phase),
	)

	logger.Info("Executing CMake " + phase)

	if config.Verbose {
		result.Output = append(result.Output,
			fmt.Sprintf("Running: cmake %s", strings.Join(args, " ")),
			fmt.Sprintf("Working directory: %s", plan.BuildDir))
	}

	out, err := runCaptured(ctx, plan.BuildDir, plan.Env, cmakeProgram, args...)
	result.Output = append(result.Output, splitLines(out.Stdout)...)
	result.Output = append(result.Output, splitLines(out.Stderr)...)

	if err != nil {
		return BuildError(cmakeBuilderName, result.Output, err)
	}

	if out.ExitCode != 0 {
		logger.Error("CMake "+phase+" failed",
			zap.Int("exit_code", out.ExitCode),
			zap.String("stdout", out.Stdout),
			zap.String("stderr", out.Stderr))

		return BuildError(cmakeBuilderName, result.Output, &PhaseError{
			Builder:  cmakeBuilderName,
			Phase:    phase,
			ExitCode: out.ExitCode,
			Stdout:   out.Stdout,
			Stderr:   out.Stderr,
		})
	}

	logger.Info("CMake " + phase + " succeeded")
	return nil
}

// findBuiltExtensions locates the compiled libraries for the extension in ExtDir
func (b *CmakeBuilder) findBuiltExtensions(plan *BuildPlan) ([]string, error) {
	moduleBase := filepath.Base(plan.Extension.ModulePath())

	// Multi-config generators may nest the output under the config name
	searchDirs := []string{plan.ExtDir, filepath.Join(plan.ExtDir, plan.BuildType)}

	var extensions []string
	for _, dir := range searchDirs {
		matches, err := filepath.Glob(filepath.Join(dir, moduleBase+nativeLibraryPattern))
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s in %s: %v", moduleBase, dir, err)
		}

		for _, match := range matches {
			if isNativeLibrary(match) {
				extensions = append(extensions, match)
			}
		}
	}

	return extensions, nil
}

// extensionOutputDir returns the absolute directory of the extension's full
// path, with a trailing separator.
func (b *CmakeBuilder) extensionOutputDir(ctx context.Context, config *BuildConfig, interp *Interpreter, ext Extension) (string, error) {
	suffix := config.ExtSuffix
	if suffix == "" {
		info, err := interp.HostInfo(ctx)
		if err != nil {
			return "", err
		}
		suffix = info.ExtSuffix
	}

	root := config.BuildLib
	if config.Inplace {
		root = config.ProjectDir
	}

	extDir, err := filepath.Abs(filepath.Dir(ext.FullPath(root, suffix)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve output dir for %s: %w", ext.Name, err)
	}

	if !strings.HasSuffix(extDir, string(os.PathSeparator)) {
		extDir += string(os.PathSeparator)
	}

	return extDir, nil
}

// buildArgs returns --config <cfg> plus a -j flag unless CMake already
// reads its parallelism from the environment.
func buildArgs(buildType string, parallel int, env []string) []string {
	args := []string{"--config", buildType}

	if _, set := lookupEnv(env, parallelLevelEnvVar); set {
		return args
	}

	if parallel > 0 {
		return append(args, fmt.Sprintf("-j%d", parallel))
	}
	return append(args, fmt.Sprintf("-j%d", defaultParallelJobs))
}

func cleanArgs() []string {
	return []string{"--build", ".", "--target", "clean"}
}

func buildDirFor(config *BuildConfig, ext Extension) (string, error) {
	dir, err := filepath.Abs(filepath.Join(config.BuildTemp, ext.Name))
	if err != nil {
		return "", fmt.Errorf("failed to resolve build dir for %s: %w", ext.Name, err)
	}
	return dir, nil
}

func cmakeMissing(exts []Extension) error {
	return &DependencyError{
		Name:   cmakeProgram,
		Detail: "CMake must be installed to build the following extensions: " + extensionNames(exts),
		Err:    ErrCMakeNotFound,
	}
}

// missingDependencies names what a preflight error says is absent.
func missingDependencies(err error) []string {
	var tools *MissingToolsError
	if errors.As(err, &tools) {
		return tools.Names()
	}
	var depErr *DependencyError
	if errors.As(err, &depErr) {
		return []string{depErr.Name}
	}
	return nil
}
