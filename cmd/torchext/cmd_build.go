package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	torchext "github.com/contriboss/torch-extension-go"
	"github.com/contriboss/torch-extension-go/internal/config"
)

type buildOptions struct {
	dryRun     bool
	inplace    bool
	debug      bool
	parallel   int
	skipChecks bool
	cleanFirst bool
}

func newBuildCmd(c *cli) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Configure and build every extension",
		Long: `Checks the build environment, then for each extension:
  1. Locates the torch and pybind11 CMake prefix paths
  2. Validates TorchConfig.cmake and pybind11Config.cmake
  3. Runs cmake <source_dir> with the resolved arguments
  4. Runs cmake --build . in the extension's build directory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBuild(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print the resolved CMake invocations without running them")
	cmd.Flags().BoolVar(&opts.inplace, "inplace", false, "write libraries into the project tree")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "build with CMAKE_BUILD_TYPE=Debug")
	cmd.Flags().IntVarP(&opts.parallel, "jobs", "j", 0, "parallel build jobs (default 4)")
	cmd.Flags().BoolVar(&opts.skipChecks, "skip-checks", false, "skip the environment check before building")
	cmd.Flags().BoolVar(&opts.cleanFirst, "clean-first", false, "run the clean target before building")

	return cmd
}

func (c *cli) runBuild(cmd *cobra.Command, opts *buildOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	bc := c.buildConfig(cfg)
	if opts.inplace {
		bc.Inplace = true
	}
	if cmd.Flags().Changed("debug") {
		debug := opts.debug
		bc.Debug = &debug
	}
	if cmd.Flags().Changed("jobs") {
		if opts.parallel < 0 {
			return fmt.Errorf("%w: --jobs must be >= 0", config.ErrInvalid)
		}
		bc.Parallel = opts.parallel
	}
	bc.CleanFirst = opts.cleanFirst

	exts, err := cfg.BuildExtensions()
	if err != nil {
		return err
	}

	if !opts.skipChecks {
		if err := runDoctor(ctx, out, bc.PythonPath); err != nil {
			return err
		}
	}

	factory := torchext.NewBuilderFactory()

	if opts.dryRun {
		return printPlans(ctx, out, factory, bc, exts)
	}

	results, err := factory.BuildAllExtensions(ctx, bc, exts)
	printResults(out, results)
	return err
}

func (c *cli) buildConfig(cfg *config.Config) *torchext.BuildConfig {
	bc := cfg.BuildConfig(c.logger)
	bc.Verbose = c.verbose
	return bc
}

func printPlans(ctx context.Context, out io.Writer, factory *torchext.BuilderFactory, bc *torchext.BuildConfig, exts []torchext.Extension) error {
	for _, ext := range exts {
		builder, err := factory.BuilderFor(ext)
		if err != nil {
			return err
		}
		cmake, ok := builder.(*torchext.CmakeBuilder)
		if !ok {
			return errors.New("dry run is only supported for CMake extensions")
		}

		plan, err := cmake.Plan(ctx, bc, ext)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "Extension: %s\n", ext.Name)
		fmt.Fprintf(out, "  Build type: %s\n", plan.BuildType)
		fmt.Fprintf(out, "  Build directory: %s\n", plan.BuildDir)
		fmt.Fprintf(out, "  Output directory: %s\n", plan.ExtDir)
		fmt.Fprintf(out, "  CMAKE_PREFIX_PATH: %s\n", plan.Prefixes.CMakePrefixPath())
		fmt.Fprintf(out, "  Configure: cmake %s %s\n", ext.SourceDir, strings.Join(plan.CMakeArgs, " "))
		fmt.Fprintf(out, "  Build: cmake --build . %s\n", strings.Join(plan.BuildArgs, " "))
	}
	return nil
}

func printResults(out io.Writer, results []*torchext.BuildResult) {
	for _, result := range results {
		if result == nil {
			continue
		}
		name := result.Extension
		if name == "" {
			name = "build"
		}
		if result.Success {
			for _, path := range result.Extensions {
				fmt.Fprintf(out, "Built %s: %s\n", name, path)
			}
			continue
		}
		if len(result.MissingDependencies) > 0 {
			fmt.Fprintf(out, "Failed %s: missing %s\n", name, strings.Join(result.MissingDependencies, ", "))
			continue
		}
		fmt.Fprintf(out, "Failed %s\n", name)
	}
}

// rebuild runs one full build tagged with a fresh rebuild_id.
func (c *cli) rebuild(ctx context.Context, out io.Writer, bc *torchext.BuildConfig, exts []torchext.Extension) error {
	run := *bc
	run.Logger = c.logger.With(zap.String("rebuild_id", newRunID()))

	results, err := torchext.NewBuilderFactory().BuildAllExtensions(ctx, &run, exts)
	printResults(out, results)
	return err
}
