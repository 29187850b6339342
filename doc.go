// Package torchext provides native extension compilation for PyTorch projects.
//
// This package is the Go equivalent of a setuptools build_ext command that
// drives CMake: it locates the PyTorch and pybind11 CMake packages through
// the Python interpreter, configures the extension's CMake tree, builds it
// and hands the compiled library back to the Python host.
//
// # Basic Usage
//
// Create a builder factory and use it to build extensions:
//
//	factory := torchext.NewBuilderFactory()
//
//	config := &torchext.BuildConfig{
//	    ProjectDir: "/path/to/project",
//	    BuildTemp:  "/path/to/project/build/temp",
//	    BuildLib:   "/path/to/project/build/lib",
//	    Version:    torchext.ReadVersion("/path/to/project"),
//	    Verbose:    true,
//	}
//
//	ext, _ := torchext.NewCMakeExtension("cppcuda_tutorial", "/path/to/project")
//	results, err := factory.BuildAllExtensions(ctx, config, []torchext.Extension{ext})
//
// # Build Pipeline
//
// Each CMake extension goes through the same sequence:
//
//	preflight   cmake on PATH, build type, prefix paths validated
//	configure   cmake <source> -DCMAKE_PREFIX_PATH=<torch>;<pybind11> ...
//	build       cmake --build . --config <cfg> -j<N>
//	find        *.so / *.pyd in the library output directory
//
// A missing tool or a missing TorchConfig.cmake / pybind11Config.cmake
// aborts the build before any subprocess runs. A nonzero exit from either
// phase is reported as a *PhaseError carrying the captured stdout and stderr.
//
// # Diagnostics
//
// CheckEnvironment reports PyTorch, CUDA, pybind11, CMake and NVCC
// availability, mirroring what a developer checks before a first build.
//
// # Requirements
//
// Requires Go 1.25 or later, CMake, and a Python interpreter with torch and
// pybind11 installed.
package torchext
