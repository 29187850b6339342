package torchext

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/magefile/mage/sh"
)

// Process seams, replaced in tests.
var (
	execLookPath       = exec.LookPath
	execCommandContext = exec.CommandContext
	osEnviron          = os.Environ
)

// commandOutput is the captured result of one subprocess.
type commandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Ran is false when the process could not be started at all.
	Ran bool
}

// runCaptured runs name with args in dir, capturing stdout and stderr apart.
//
// A nonzero exit is reported through commandOutput.ExitCode with a nil error;
// the error is only non-nil when the process could not be started or the
// context ended.
func runCaptured(ctx context.Context, dir string, env []string, name string, args ...string) (commandOutput, error) {
	cmd := execCommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := commandOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: sh.ExitStatus(err),
		Ran:      sh.CmdRan(err),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	if !out.Ran {
		return out, fmt.Errorf("failed to run %s: %w", name, err)
	}

	return out, nil
}

// mergeEnv returns base with overrides applied, later keys replacing earlier.
func mergeEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}
		env = append(env, kv)
	}
	for _, key := range slices.Sorted(maps.Keys(overrides)) {
		env = append(env, fmt.Sprintf("%s=%s", key, overrides[key]))
	}
	return env
}

// lookupEnv finds key in an environment slice.
func lookupEnv(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := strings.Cut(env[i], "=")
		if ok && k == key {
			return v, true
		}
	}
	return "", false
}
