package torchext

import (
	"errors"
	"slices"
	"strings"
)

// MatchesExtension reports whether filename ends in one of extensions,
// ignoring case.
//
//	MatchesExtension("_C.cpython-311-x86_64-linux-gnu.so", ".so", ".pyd") // true
func MatchesExtension(filename string, extensions ...string) bool {
	lower := strings.ToLower(filename)
	return slices.ContainsFunc(extensions, func(ext string) bool {
		return strings.HasSuffix(lower, strings.ToLower(ext))
	})
}

// BuildError formats a builder failure together with its captured output.
// A non-nil err stays reachable through errors.Is and errors.As.
//
//	CMake build failed: CMake configure failed, exit code: 1
//
//	Build output:
//	CMake Error at CMakeLists.txt:8 (find_package):
func BuildError(builder string, output []string, err error) error {
	msg := builder + " build failed"
	if err != nil {
		msg += ": " + err.Error()
	}
	if joined := strings.TrimSpace(strings.Join(output, "\n")); joined != "" {
		msg += "\n\nBuild output:\n" + joined
	}

	if err == nil {
		return errors.New(msg)
	}
	return &formattedError{msg: msg, err: err}
}

type formattedError struct {
	msg string
	err error
}

func (e *formattedError) Error() string { return e.msg }

func (e *formattedError) Unwrap() error { return e.err }

// splitLines splits captured output into lines, dropping a trailing empty line.
func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
