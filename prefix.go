package torchext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	torchPrefixScript    = "import torch.utils; print(torch.utils.cmake_prefix_path)"
	pybind11PrefixScript = "import pybind11; print(pybind11.get_cmake_dir())"
)

// PrefixPaths are the CMake package locations of the two build dependencies.
type PrefixPaths struct {
	Torch    string // Contains Torch/TorchConfig.cmake
	Pybind11 string // Contains pybind11Config.cmake
}

// TorchConfigPath returns the file find_package(Torch) needs.
func (p PrefixPaths) TorchConfigPath() string {
	return filepath.Join(p.Torch, "Torch", "TorchConfig.cmake")
}

// Pybind11ConfigPath returns the file find_package(pybind11) needs.
func (p PrefixPaths) Pybind11ConfigPath() string {
	return filepath.Join(p.Pybind11, "pybind11Config.cmake")
}

// CMakePrefixPath joins both locations in CMake list syntax.
func (p PrefixPaths) CMakePrefixPath() string {
	return p.Torch + ";" + p.Pybind11
}

// Validate checks that both config files exist. Torch is checked first.
func (p PrefixPaths) Validate() error {
	checks := []struct {
		name string
		path string
	}{
		{"torch", p.TorchConfigPath()},
		{"pybind11", p.Pybind11ConfigPath()},
	}

	for _, check := range checks {
		if _, err := os.Stat(check.path); err != nil {
			return &DependencyError{
				Name:   check.name,
				Detail: fmt.Sprintf("%s not found at: %s", filepath.Base(check.path), check.path),
				Err:    ErrDependencyConfigMissing,
			}
		}
	}
	return nil
}

// LocatePrefixPaths finds the prefix paths.
//
// Non-empty fields of overrides are used as-is; the rest are asked of the
// interpreter. interp may be nil when both overrides are set.
func LocatePrefixPaths(ctx context.Context, interp *Interpreter, overrides PrefixPaths, logger *zap.Logger) (PrefixPaths, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	paths := overrides

	if paths.Torch == "" {
		torch, err := evalPrefix(ctx, interp, "torch", torchPrefixScript)
		if err != nil {
			return PrefixPaths{}, err
		}
		paths.Torch = torch
	}

	if paths.Pybind11 == "" {
		pybind, err := evalPrefix(ctx, interp, "pybind11", pybind11PrefixScript)
		if err != nil {
			return PrefixPaths{}, err
		}
		paths.Pybind11 = pybind
	}

	logger.Info("Found PyTorch CMake path", zap.String("path", paths.Torch))
	logger.Info("Found pybind11 CMake path", zap.String("path", paths.Pybind11))

	return paths, nil
}

func evalPrefix(ctx context.Context, interp *Interpreter, pkg, script string) (string, error) {
	if interp == nil {
		return "", &DependencyError{Name: pkg, Detail: "no interpreter to locate " + pkg, Err: ErrDependencyNotFound}
	}

	path, err := interp.Eval(ctx, script)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", &DependencyError{Name: pkg, Detail: fmt.Sprintf("%s: %v", pkg, err), Err: ErrDependencyNotFound}
	}
	if path == "" {
		return "", &DependencyError{Name: pkg, Detail: pkg + " reported an empty CMake path", Err: ErrDependencyNotFound}
	}

	return path, nil
}
