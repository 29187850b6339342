package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	torchext "github.com/contriboss/torch-extension-go"
)

func newCleanCmd(c *cli) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove build artifacts",
		Long: `Runs the generated clean target in each configured build directory.
With --all, deletes the build directories and the library output tree instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			exts, err := cfg.BuildExtensions()
			if err != nil {
				return err
			}

			bc := c.buildConfig(cfg)
			factory := torchext.NewBuilderFactory()

			for _, ext := range exts {
				builder, err := factory.BuilderFor(ext)
				if err != nil {
					return err
				}

				if !all {
					if err := builder.Clean(cmd.Context(), bc, ext); err != nil {
						return err
					}
					continue
				}

				if cmake, ok := builder.(*torchext.CmakeBuilder); ok {
					if err := cmake.RemoveBuildDir(bc, ext); err != nil {
						return fmt.Errorf("failed to remove build directory for %s: %w", ext.Name, err)
					}
				}
			}

			if all {
				if err := os.RemoveAll(bc.BuildLib); err != nil {
					return fmt.Errorf("failed to remove %s: %w", bc.BuildLib, err)
				}
			}

			c.logger.Info("Cleaned build artifacts", zap.Bool("all", all), zap.Int("extensions", len(exts)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove build directories and outputs entirely")
	return cmd
}
