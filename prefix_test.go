package torchext

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestPrefixPathsValidate(t *testing.T) {
	root := t.TempDir()
	paths := PrefixPaths{
		Torch:    filepath.Join(root, "torch"),
		Pybind11: filepath.Join(root, "pybind11"),
	}

	// Both missing: torch is reported first
	err := paths.Validate()
	if !errors.Is(err, ErrDependencyConfigMissing) {
		t.Fatalf("expected ErrDependencyConfigMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), "TorchConfig.cmake not found at: "+paths.TorchConfigPath()) {
		t.Errorf("expected torch to be reported first, got %q", err.Error())
	}

	writeFile(t, paths.TorchConfigPath(), "")
	err = paths.Validate()
	if err == nil || !strings.Contains(err.Error(), "pybind11Config.cmake") {
		t.Fatalf("expected pybind11 to be reported, got %v", err)
	}

	writeFile(t, paths.Pybind11ConfigPath(), "")
	if err := paths.Validate(); err != nil {
		t.Errorf("expected valid prefixes, got %v", err)
	}

	if got := paths.CMakePrefixPath(); got != paths.Torch+";"+paths.Pybind11 {
		t.Errorf("unexpected CMake prefix path %q", got)
	}
}

func TestLocatePrefixPathsOverridesSkipInterpreter(t *testing.T) {
	fake := installFakeExec(t)

	want := PrefixPaths{Torch: "/opt/torch/share/cmake", Pybind11: "/opt/pybind11/share/cmake/pybind11"}
	got, err := LocatePrefixPaths(context.Background(), nil, want, nil)
	if err != nil {
		t.Fatalf("LocatePrefixPaths returned error: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if len(fake.Calls()) != 0 {
		t.Errorf("expected no interpreter calls, got %v", fake.Calls())
	}
}

func TestLocatePrefixPathsImportFailure(t *testing.T) {
	fake := installFakeExec(t)
	fake.on("cmake_prefix_path", fakeResult{Exit: 1, Stderr: "ModuleNotFoundError: No module named 'torch'\n"})

	_, err := LocatePrefixPaths(context.Background(), &Interpreter{Path: testPython}, PrefixPaths{}, nil)
	if !errors.Is(err, ErrDependencyNotFound) {
		t.Fatalf("expected ErrDependencyNotFound, got %v", err)
	}
	if diff := missingDependencies(err); len(diff) != 1 || diff[0] != "torch" {
		t.Errorf("expected torch reported missing, got %v", diff)
	}
	if !strings.Contains(err.Error(), "No module named 'torch'") {
		t.Errorf("expected interpreter stderr in error, got %q", err.Error())
	}
}

func TestResolveInterpreter(t *testing.T) {
	t.Run("explicit", func(t *testing.T) {
		installFakeExec(t)
		interp, err := ResolveInterpreter("/custom/python")
		if err != nil || interp.Path != "/custom/python" {
			t.Fatalf("expected explicit interpreter, got %v, %v", interp, err)
		}
	})

	t.Run("env", func(t *testing.T) {
		installFakeExec(t, "python3")
		t.Setenv("PYTHON", "/env/python")
		interp, err := ResolveInterpreter("")
		if err != nil || interp.Path != "/env/python" {
			t.Fatalf("expected $PYTHON interpreter, got %v, %v", interp, err)
		}
	})

	t.Run("python3 before python", func(t *testing.T) {
		installFakeExec(t, "python3", "python")
		t.Setenv("PYTHON", "")
		interp, err := ResolveInterpreter("")
		if err != nil || interp.Path != "/usr/bin/python3" {
			t.Fatalf("expected python3 from PATH, got %v, %v", interp, err)
		}
	})

	t.Run("python fallback", func(t *testing.T) {
		installFakeExec(t, "python")
		t.Setenv("PYTHON", "")
		interp, err := ResolveInterpreter("")
		if err != nil || interp.Path != "/usr/bin/python" {
			t.Fatalf("expected python from PATH, got %v, %v", interp, err)
		}
	})

	t.Run("none", func(t *testing.T) {
		installFakeExec(t)
		t.Setenv("PYTHON", "")
		_, err := ResolveInterpreter("")
		if !errors.Is(err, ErrDependencyNotFound) {
			t.Fatalf("expected ErrDependencyNotFound, got %v", err)
		}
	})
}

func TestInterpreterHostInfo(t *testing.T) {
	fake := installFakeExec(t)
	fake.on("sysconfig", fakeResult{Stdout: `{"ext_suffix": ".cpython-310-darwin.so", "platform": "macosx-11.0-arm64", "version": "3.10"}` + "\n"})

	info, err := (&Interpreter{Path: testPython}).HostInfo(context.Background())
	if err != nil {
		t.Fatalf("HostInfo returned error: %v", err)
	}
	if info.ExtSuffix != ".cpython-310-darwin.so" || info.Version != "3.10" || info.Platform != "macosx-11.0-arm64" {
		t.Errorf("unexpected host info %+v", info)
	}
}

func TestInterpreterHostInfoWithoutSuffix(t *testing.T) {
	fake := installFakeExec(t)
	fake.on("sysconfig", fakeResult{Stdout: `{"ext_suffix": "", "platform": "linux-x86_64", "version": "3.12"}`})

	if _, err := (&Interpreter{Path: testPython}).HostInfo(context.Background()); err == nil {
		t.Error("expected error for an interpreter without EXT_SUFFIX")
	}
}
