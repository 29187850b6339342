package torchext

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "CMAKE_PREFIX_PATH=/old", "HOME=/root"}
	got := mergeEnv(base, map[string]string{
		"CMAKE_PREFIX_PATH": "/torch;/pybind11",
		"CUDA_HOME":         "/usr/local/cuda",
	})

	want := []string{"PATH=/usr/bin", "HOME=/root", "CMAKE_PREFIX_PATH=/torch;/pybind11", "CUDA_HOME=/usr/local/cuda"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mergeEnv mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"PATH=/usr/bin", "CMAKE_PREFIX_PATH=/old", "HOME=/root"}, base); diff != "" {
		t.Errorf("base env was mutated (-want +got):\n%s", diff)
	}
}

func TestLookupEnv(t *testing.T) {
	env := []string{"A=1", "B=", "A=2"}

	if v, ok := lookupEnv(env, "A"); !ok || v != "2" {
		t.Errorf("expected last A=2, got %q %v", v, ok)
	}
	if v, ok := lookupEnv(env, "B"); !ok || v != "" {
		t.Errorf("expected empty B to be set, got %q %v", v, ok)
	}
	if _, ok := lookupEnv(env, "C"); ok {
		t.Error("expected C to be unset")
	}
}

func TestRunCapturedSeparatesStreams(t *testing.T) {
	fake := installFakeExec(t)
	fake.on("cmake", fakeResult{Exit: 5, Stdout: "out\n", Stderr: "err\n"})

	out, err := runCaptured(context.Background(), "", nil, "cmake", "--version")
	if err != nil {
		t.Fatalf("a nonzero exit must not be an error, got %v", err)
	}

	want := commandOutput{Stdout: "out\n", Stderr: "err\n", ExitCode: 5, Ran: true}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestRunCapturedContextCanceled(t *testing.T) {
	installFakeExec(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runCaptured(ctx, "", nil, "cmake"); err == nil {
		t.Error("expected an error for a canceled context")
	}
}
