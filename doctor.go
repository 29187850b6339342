package torchext

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	torchInfoScript    = "import torch; print(torch.__version__); print(torch.cuda.is_available())"
	pybind11InfoScript = "import pybind11; print(pybind11.__version__)"
	nvccProgram        = "nvcc"
)

// EnvironmentReport summarizes the toolchain a build would run against.
type EnvironmentReport struct {
	Python          string
	TorchVersion    string
	CUDAAvailable   bool
	Pybind11Version string
	CMakeVersion    string
	NVCCAvailable   bool
	Warnings        []string
}

// Lines renders the report for printing, one fact per line.
func (r *EnvironmentReport) Lines() []string {
	lines := []string{
		"=== Build environment ===",
		fmt.Sprintf("Python: %s", r.Python),
		fmt.Sprintf("PyTorch version: %s", r.TorchVersion),
		fmt.Sprintf("CUDA available: %t", r.CUDAAvailable),
		fmt.Sprintf("pybind11 version: %s", r.Pybind11Version),
		fmt.Sprintf("CMake version: %s", r.CMakeVersion),
	}
	if r.NVCCAvailable {
		lines = append(lines, "NVCC available")
	}
	for _, w := range r.Warnings {
		lines = append(lines, "Warning: "+w)
	}
	return lines
}

// CheckEnvironment probes torch, pybind11, cmake and nvcc concurrently.
//
// Missing torch or pybind11 fails with ErrDependencyNotFound and a missing
// cmake with ErrCMakeNotFound. nvcc is optional: its absence or a nonzero
// exit only adds a warning.
func CheckEnvironment(ctx context.Context, interp *Interpreter) (*EnvironmentReport, error) {
	report := &EnvironmentReport{Python: interp.Path}

	var nvccWarning string

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		raw, err := interp.Eval(gctx, torchInfoScript)
		if err != nil {
			return &DependencyError{Name: "torch", Detail: "torch: " + err.Error(), Err: ErrDependencyNotFound}
		}
		version, cuda, err := parseTorchInfo(raw)
		if err != nil {
			return err
		}
		report.TorchVersion = version
		report.CUDAAvailable = cuda
		return nil
	})

	g.Go(func() error {
		version, err := interp.Eval(gctx, pybind11InfoScript)
		if err != nil {
			return &DependencyError{Name: "pybind11", Detail: "pybind11: " + err.Error(), Err: ErrDependencyNotFound}
		}
		report.Pybind11Version = version
		return nil
	})

	g.Go(func() error {
		version, err := cmakeVersion(gctx)
		if err != nil {
			return err
		}
		report.CMakeVersion = version
		return nil
	})

	g.Go(func() error {
		available, warning := probeNVCC(gctx)
		report.NVCCAvailable = available
		nvccWarning = warning
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if nvccWarning != "" {
		report.Warnings = append(report.Warnings, nvccWarning)
	}

	return report, nil
}

// cmakeVersion returns the third token of `cmake --version`.
func cmakeVersion(ctx context.Context) (string, error) {
	notFound := &DependencyError{Name: cmakeProgram, Detail: "CMake not found, please install CMake", Err: ErrCMakeNotFound}

	if _, err := execLookPath(cmakeProgram); err != nil {
		return "", notFound
	}

	out, err := runCaptured(ctx, "", nil, cmakeProgram, "--version")
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", notFound
	}

	version, err := parseCMakeVersion(out.Stdout)
	if err != nil {
		return "", errors.Join(notFound, err)
	}
	return version, nil
}

// parseCMakeVersion extracts "3.28.1" from "cmake version 3.28.1\n...".
func parseCMakeVersion(output string) (string, error) {
	fields := strings.Fields(output)
	if len(fields) < 3 {
		return "", fmt.Errorf("unexpected cmake --version output: %q", output)
	}
	return fields[2], nil
}

func parseTorchInfo(raw string) (version string, cuda bool, err error) {
	lines := splitLines(raw)
	if len(lines) < 2 {
		return "", false, fmt.Errorf("unexpected torch probe output: %q", raw)
	}
	return strings.TrimSpace(lines[0]), strings.TrimSpace(lines[1]) == "True", nil
}

// probeNVCC reports whether nvcc runs, and a warning when it does not.
func probeNVCC(ctx context.Context) (bool, string) {
	if _, err := execLookPath(nvccProgram); err != nil {
		return false, "NVCC not found"
	}

	out, err := runCaptured(ctx, "", nil, nvccProgram, "--version")
	if err != nil {
		return false, "NVCC not found"
	}
	if out.ExitCode != 0 {
		return false, "NVCC not available"
	}
	return true, ""
}
