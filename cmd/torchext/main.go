// Command torchext builds PyTorch C++/CUDA extensions with CMake.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	torchext "github.com/contriboss/torch-extension-go"
	"github.com/contriboss/torch-extension-go/internal/config"
)

// version is set at link time.
var version = "dev"

// cli holds global flags and the per-run logger.
type cli struct {
	configPath string
	projectDir string
	verbose    bool

	logger  *zap.Logger
	buildID string
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&cli{})
}

// newRootCmdWith builds the command tree around c. A preset c.logger is kept.
func newRootCmdWith(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "torchext",
		Short: "Build PyTorch C++/CUDA extensions with CMake",
		Long: `torchext locates the PyTorch and pybind11 CMake packages of the active
Python interpreter, validates their config files, and drives a CMake
configure and build for each extension in torchext.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: <project-dir>/torchext.yaml)")
	root.PersistentFlags().StringVarP(&c.projectDir, "project-dir", "C", ".", "project root directory")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging and command echo")

	root.AddCommand(
		newBuildCmd(c),
		newDoctorCmd(c),
		newCleanCmd(c),
		newVersionCmd(c),
		newWatchCmd(c),
	)

	return root
}

func (c *cli) initLogger() error {
	c.buildID = newRunID()

	if c.logger == nil {
		cfg := zap.NewProductionConfig()
		if c.verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		c.logger = logger
	}

	c.logger = c.logger.With(zap.String("build_id", c.buildID))
	return nil
}

func newRunID() string {
	return uuid.NewString()
}

func (c *cli) loadConfig() (*config.Config, error) {
	return config.Load(c.projectDir, c.configPath)
}

// exitCodeFor maps a command error to the process exit status.
func exitCodeFor(err error) int {
	var phase *torchext.PhaseError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &phase):
		return torchext.ExitCode(err)
	case errors.Is(err, config.ErrNotFound), errors.Is(err, config.ErrInvalid):
		return 2
	case errors.Is(err, torchext.ErrCMakeNotFound),
		errors.Is(err, torchext.ErrDependencyNotFound),
		errors.Is(err, torchext.ErrDependencyConfigMissing):
		return 3
	default:
		return 1
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCodeFor(err))
	}
}
