package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/contriboss/torch-extension-go/internal/watch"
)

func newWatchCmd(c *cli) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild whenever extension sources change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			exts, err := cfg.BuildExtensions()
			if err != nil {
				return err
			}
			bc := c.buildConfig(cfg)

			roots := make([]string, 0, len(exts))
			for _, ext := range exts {
				roots = append(roots, ext.SourceDir)
			}

			w, err := watch.New(watch.Options{
				Roots:          roots,
				Ignore:         cfg.BuildDirs(),
				IgnoreSuffixes: cfg.OutputSuffixes(),
				Debounce:       debounce,
				Logger:         c.logger,
			})
			if err != nil {
				return err
			}

			if err := c.rebuild(ctx, out, bc, exts); err != nil {
				c.logger.Warn("initial build failed", zap.Error(err))
			}

			c.logger.Info("Watching for changes", zap.Strings("roots", roots))
			return w.Run(ctx, func(ctx context.Context) error {
				return c.rebuild(ctx, out, bc, exts)
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a rebuild")
	return cmd
}
