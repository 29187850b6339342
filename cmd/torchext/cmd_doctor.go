package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	torchext "github.com/contriboss/torch-extension-go"
)

func newDoctorCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report torch, CUDA, pybind11, CMake and NVCC availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return runDoctor(cmd.Context(), cmd.OutOrStdout(), cfg.Python)
		},
	}
}

// runDoctor prints the environment report. Missing torch, pybind11 or cmake
// is an error; a missing nvcc is only a warning.
func runDoctor(ctx context.Context, out io.Writer, python string) error {
	interp, err := torchext.ResolveInterpreter(python)
	if err != nil {
		return err
	}

	report, err := torchext.CheckEnvironment(ctx, interp)
	if err != nil {
		return err
	}

	for _, line := range report.Lines() {
		fmt.Fprintln(out, line)
	}
	return nil
}
