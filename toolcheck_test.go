package torchext

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCheckRequiredTools(t *testing.T) {
	installFakeExec(t, "cmake")

	if err := (&CmakeBuilder{}).CheckTools(); err != nil {
		t.Errorf("expected optional python and nvcc to pass, got %v", err)
	}

	err := CheckRequiredTools([]ToolRequirement{
		{Name: "ninja", Purpose: "Ninja generator"},
		{Name: "nvcc", Purpose: "CUDA compiler"},
	})
	want := "missing required tools: ninja (Ninja generator), nvcc (CUDA compiler)"
	if err == nil || err.Error() != want {
		t.Errorf("expected %q, got %v", want, err)
	}

	var missing *MissingToolsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingToolsError, got %T", err)
	}
	if diff := cmp.Diff([]string{"ninja", "nvcc"}, missing.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(err, ErrDependencyNotFound) {
		t.Error("expected tools without a sentinel to match ErrDependencyNotFound")
	}

	err = CheckRequiredTools([]ToolRequirement{{Name: "ninja"}})
	if err == nil || err.Error() != "ninja not found in PATH" {
		t.Errorf("unexpected single-tool error %v", err)
	}
}

func TestCmakeCheckToolsWithoutCMake(t *testing.T) {
	installFakeExec(t, "python3", "nvcc")

	err := (&CmakeBuilder{}).CheckTools()
	if !errors.Is(err, ErrCMakeNotFound) {
		t.Fatalf("expected ErrCMakeNotFound, got %v", err)
	}
	if err.Error() != "cmake (CMake build system) not found in PATH" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestToolRequirementLocate(t *testing.T) {
	installFakeExec(t, "python")

	path, err := ToolRequirement{Name: "python3", Alternatives: []string{"python"}}.Locate()
	if err != nil {
		t.Fatalf("expected the alternative to be found, got %v", err)
	}
	if path != filepath.Join("/usr/bin", "python") {
		t.Errorf("expected /usr/bin/python, got %s", path)
	}

	if err := CheckToolAvailable("python3"); err == nil {
		t.Error("expected python3 to be missing")
	}
}

// ninjaBuilder is a stub that needs a tool other than cmake.
type ninjaBuilder struct{ stubBuilder }

func (b *ninjaBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{{Name: "ninja", Purpose: "Ninja generator"}}
}

func (b *ninjaBuilder) CheckTools() error { return CheckRequiredTools(b.RequiredTools()) }

func TestBuildAllExtensionsPreflightUsesToolChecker(t *testing.T) {
	installFakeExec(t)

	builder := &ninjaBuilder{stubBuilder{suffix: "ops"}}
	factory := &BuilderFactory{}
	factory.Register(builder)

	exts := []Extension{{Name: "first", SourceDir: "/src/ops"}, {Name: "second", SourceDir: "/src/ops"}}
	results, err := factory.BuildAllExtensions(context.Background(), &BuildConfig{}, exts)

	if !errors.Is(err, ErrDependencyNotFound) {
		t.Fatalf("expected ErrDependencyNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "needed by: first, second") {
		t.Errorf("expected both extensions in %q", err.Error())
	}
	if len(results) != 1 || results[0].MissingDependencies[0] != "ninja" {
		t.Errorf("expected one result naming ninja, got %+v", results)
	}
	if len(builder.built) != 0 {
		t.Errorf("expected no build after a failed preflight, got %v", builder.built)
	}
}
