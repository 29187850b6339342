package torchext

import (
	"fmt"
	"strings"
)

// ToolChecker is implemented by builders that shell out to executables.
//
// BuildAllExtensions calls CheckTools once per builder before the first
// extension is planned:
//
//	if checker, ok := builder.(ToolChecker); ok {
//	    if err := checker.CheckTools(); err != nil {
//	        return err
//	    }
//	}
type ToolChecker interface {
	RequiredTools() []ToolRequirement
	CheckTools() error
}

// ToolRequirement is one executable a builder may look up on PATH.
//
//	ToolRequirement{Name: "cmake", Purpose: "CMake build system", Missing: ErrCMakeNotFound}
//	ToolRequirement{Name: "python3", Alternatives: []string{"python"}, Optional: true}
type ToolRequirement struct {
	Name         string
	Alternatives []string // Accepted in place of Name, tried in order
	Optional     bool     // Looked up but never reported missing
	Purpose      string

	// Missing is the sentinel a MissingToolsError unwraps to for this tool.
	// Nil means ErrDependencyNotFound.
	Missing error
}

// Locate returns the path of the first of Name and Alternatives on PATH.
func (r ToolRequirement) Locate() (string, error) {
	for _, candidate := range append([]string{r.Name}, r.Alternatives...) {
		if path, err := execLookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s not found in PATH", r.Name)
}

func (r ToolRequirement) label() string {
	if r.Purpose == "" {
		return r.Name
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Purpose)
}

func (r ToolRequirement) sentinel() error {
	if r.Missing != nil {
		return r.Missing
	}
	return ErrDependencyNotFound
}

// MissingToolsError lists the required tools CheckRequiredTools could not find.
//
// errors.Is matches the Missing sentinel of every listed tool, so a missing
// cmake satisfies errors.Is(err, ErrCMakeNotFound).
type MissingToolsError struct {
	Tools []ToolRequirement
}

func (e *MissingToolsError) Error() string {
	if len(e.Tools) == 1 {
		return e.Tools[0].label() + " not found in PATH"
	}

	labels := make([]string, len(e.Tools))
	for i, tool := range e.Tools {
		labels[i] = tool.label()
	}
	return "missing required tools: " + strings.Join(labels, ", ")
}

func (e *MissingToolsError) Unwrap() []error {
	errs := make([]error, 0, len(e.Tools))
	for _, tool := range e.Tools {
		errs = append(errs, tool.sentinel())
	}
	return errs
}

// Names returns the primary names of the missing tools.
func (e *MissingToolsError) Names() []string {
	names := make([]string, len(e.Tools))
	for i, tool := range e.Tools {
		names[i] = tool.Name
	}
	return names
}

// CheckToolAvailable reports whether tool is on PATH.
func CheckToolAvailable(tool string) error {
	_, err := ToolRequirement{Name: tool}.Locate()
	return err
}

// CheckRequiredTools locates every requirement and returns a
// *MissingToolsError for the non-optional ones that are absent.
//
//	cmake (CMake build system) not found in PATH
//	missing required tools: cmake (CMake build system), ninja (Ninja generator)
func CheckRequiredTools(requirements []ToolRequirement) error {
	var missing []ToolRequirement
	for _, req := range requirements {
		if _, err := req.Locate(); err != nil && !req.Optional {
			missing = append(missing, req)
		}
	}

	if len(missing) == 0 {
		return nil
	}
	return &MissingToolsError{Tools: missing}
}
