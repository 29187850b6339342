package torchext

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/magefile/mage/sh"
)

var (
	// ErrCMakeNotFound means cmake is not on PATH.
	ErrCMakeNotFound = errors.New("cmake not found")

	// ErrDependencyConfigMissing means TorchConfig.cmake or pybind11Config.cmake
	// does not exist under the located prefix path.
	ErrDependencyConfigMissing = errors.New("dependency CMake config not found")

	// ErrDependencyNotFound means the interpreter or one of its packages
	// (torch, pybind11) could not be found.
	ErrDependencyNotFound = errors.New("dependency not found")

	// ErrInvalidBuildType means REL_WITH_DEB_INFO is not an integer.
	ErrInvalidBuildType = errors.New("invalid build type")

	// ErrBuildFailed is matched by every *PhaseError.
	ErrBuildFailed = errors.New("build failed")
)

// PhaseError reports a configure, build or install phase that exited nonzero.
type PhaseError struct {
	Builder  string // Builder name, e.g. "CMake"
	Phase    string // configure, build, install
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error // Underlying exec error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s %s failed, exit code: %d", e.Builder, e.Phase, e.ExitCode)
}

// Unwrap lets errors.Is match both ErrBuildFailed and the exec error.
func (e *PhaseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrBuildFailed}
	}
	return []error{ErrBuildFailed, e.Err}
}

// ExitStatus returns the external tool's exit code.
// It satisfies the interface mage's sh.ExitStatus and mg.ExitStatus look for.
func (e *PhaseError) ExitStatus() int {
	return e.ExitCode
}

// ExitCode returns the exit status a caller should report for err.
//
// A *PhaseError anywhere in the chain yields the external tool's own exit
// code. Errors from os/exec fall back to mage's sh.ExitStatus, which is 1 for
// anything it does not recognize. Nil yields 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var phaseErr *PhaseError
	if errors.As(err, &phaseErr) && phaseErr.ExitCode > 0 {
		return phaseErr.ExitCode
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := sh.ExitStatus(exitErr); code > 0 {
			return code
		}
	}

	return 1
}

// DependencyError names a tool or package the build could not find.
// It unwraps to one of the sentinel errors above.
type DependencyError struct {
	Name   string // cmake, python, torch, pybind11
	Detail string
	Err    error
}

func (e *DependencyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Name)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}
