package torchext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// pythonCandidates are tried in order when no interpreter is configured.
var pythonCandidates = []string{"python3", "python"}

// Interpreter is the Python host the extension is built for.
type Interpreter struct {
	Path string
}

// HostInfo describes the ABI the compiled library must match.
type HostInfo struct {
	ExtSuffix string `json:"ext_suffix"` // e.g. .cpython-311-x86_64-linux-gnu.so
	Platform  string `json:"platform"`   // sysconfig.get_platform()
	Version   string `json:"version"`    // major.minor
}

const hostInfoScript = `import json, sys, sysconfig
print(json.dumps({
    "ext_suffix": sysconfig.get_config_var("EXT_SUFFIX") or "",
    "platform": sysconfig.get_platform(),
    "version": "%d.%d" % sys.version_info[:2],
}))`

// ResolveInterpreter picks the Python interpreter to build against.
//
// Resolution order:
//  1. explicit, used as given
//  2. $PYTHON
//  3. python3, then python, on PATH
func ResolveInterpreter(explicit string) (*Interpreter, error) {
	if explicit != "" {
		return &Interpreter{Path: explicit}, nil
	}

	if env := os.Getenv("PYTHON"); env != "" {
		return &Interpreter{Path: env}, nil
	}

	for _, candidate := range pythonCandidates {
		if path, err := execLookPath(candidate); err == nil {
			return &Interpreter{Path: path}, nil
		}
	}

	return nil, &DependencyError{
		Name:   "python",
		Detail: "no python interpreter found (tried " + strings.Join(pythonCandidates, ", ") + ")",
		Err:    ErrDependencyNotFound,
	}
}

// Eval runs code with the interpreter and returns its trimmed stdout.
func (p *Interpreter) Eval(ctx context.Context, code string) (string, error) {
	out, err := runCaptured(ctx, "", nil, p.Path, "-c", code)
	if err != nil {
		return "", err
	}
	if out.ExitCode != 0 {
		return "", fmt.Errorf("%s exited with code %d: %s",
			p.Path, out.ExitCode, strings.TrimSpace(out.Stderr))
	}
	return strings.TrimSpace(out.Stdout), nil
}

// HostInfo queries the interpreter's extension suffix, platform and version.
func (p *Interpreter) HostInfo(ctx context.Context) (*HostInfo, error) {
	raw, err := p.Eval(ctx, hostInfoScript)
	if err != nil {
		return nil, fmt.Errorf("failed to query python host info: %w", err)
	}

	var info HostInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("failed to parse python host info %q: %w", raw, err)
	}
	if info.ExtSuffix == "" {
		return nil, fmt.Errorf("python at %s reports no EXT_SUFFIX", p.Path)
	}

	return &info, nil
}
