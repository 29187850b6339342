package torchext

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultVersion is used when the project has no VERSION file.
const DefaultVersion = "1.0.0"

// ReadVersion returns the trimmed contents of projectDir/VERSION,
// or DefaultVersion when the file does not exist or cannot be read.
func ReadVersion(projectDir string) string {
	data, err := os.ReadFile(filepath.Join(projectDir, "VERSION"))
	if err != nil {
		return DefaultVersion
	}
	return strings.TrimSpace(string(data))
}
