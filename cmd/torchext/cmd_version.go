package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print torchext and project versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "torchext %s\n", version)

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %s\n", cfg.Name, cfg.Version)
			return nil
		},
	}
}
