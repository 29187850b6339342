// Package config loads torchext.yaml project files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	torchext "github.com/contriboss/torch-extension-go"
)

// DefaultFile is looked up in the project directory when no path is given.
const DefaultFile = "torchext.yaml"

// DefaultName is the project and extension name when the file sets none.
const DefaultName = "cppcuda_tutorial"

var (
	// ErrNotFound means an explicitly requested config file does not exist.
	ErrNotFound = errors.New("configuration file not found")

	// ErrInvalid means the config file parsed but holds unusable values.
	ErrInvalid = errors.New("invalid configuration")
)

// Extension is one entry of the extensions list.
type Extension struct {
	Name      string `yaml:"name"`
	SourceDir string `yaml:"source_dir"`
}

// Config represents a torchext.yaml file.
type Config struct {
	Name             string            `yaml:"name"`
	Version          string            `yaml:"version"`
	Python           string            `yaml:"python"`
	BuildTemp        string            `yaml:"build_temp"`
	BuildLib         string            `yaml:"build_lib"`
	InstallDir       string            `yaml:"install_dir"`
	Inplace          bool              `yaml:"inplace"`
	Debug            *bool             `yaml:"debug"`
	Parallel         int               `yaml:"parallel"`
	CMakeArgs        []string          `yaml:"cmake_args"`
	Env              map[string]string `yaml:"env"`
	TorchCMakeDir    string            `yaml:"torch_cmake_dir"`
	Pybind11CMakeDir string            `yaml:"pybind11_cmake_dir"`
	StopOnFailure    *bool             `yaml:"stop_on_failure"`
	Extensions       []Extension       `yaml:"extensions"`

	// ProjectDir is where relative paths are resolved from. Not read from YAML.
	ProjectDir string `yaml:"-"`
}

// Load reads the project configuration.
//
// .env and .env.local in projectDir are loaded first without overriding
// variables already set. With an empty path, projectDir/torchext.yaml is used
// if it exists and defaults apply otherwise; an explicit path must exist.
// ${VAR} references in the file are expanded before parsing.
func Load(projectDir, path string) (*Config, error) {
	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project dir: %w", err)
	}

	if err := loadEnvFiles(absProject); err != nil {
		return nil, err
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(absProject, DefaultFile)
	}

	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrInvalid, path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// No file: defaults only
	case os.IsNotExist(err):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.ProjectDir = absProject
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	expanded := os.ExpandEnv(string(data))

	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// loadEnvFiles loads .env then .env.local; existing variables win. Absent
// files are skipped, unreadable or malformed ones are ErrInvalid.
func loadEnvFiles(projectDir string) error {
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(projectDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("%w: failed to load %s: %w", ErrInvalid, path, err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Version == "" {
		c.Version = torchext.ReadVersion(c.ProjectDir)
	}
	if c.BuildTemp == "" {
		c.BuildTemp = filepath.Join("build", "temp")
	}
	if c.BuildLib == "" {
		c.BuildLib = filepath.Join("build", "lib")
	}
	if c.StopOnFailure == nil {
		stop := true
		c.StopOnFailure = &stop
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []Extension{{Name: c.Name, SourceDir: "."}}
	}
	for i := range c.Extensions {
		if c.Extensions[i].SourceDir == "" {
			c.Extensions[i].SourceDir = "."
		}
	}
}

// Validate reports the first unusable value.
func (c *Config) Validate() error {
	if c.Parallel < 0 {
		return fmt.Errorf("%w: parallel must be >= 0, got %d", ErrInvalid, c.Parallel)
	}

	seen := make(map[string]struct{}, len(c.Extensions))
	for i, ext := range c.Extensions {
		name := strings.TrimSpace(ext.Name)
		if name == "" {
			return fmt.Errorf("%w: extensions[%d] has no name", ErrInvalid, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate extension %q", ErrInvalid, name)
		}
		seen[name] = struct{}{}
	}

	return nil
}

// BuildExtensions returns the configured extensions with absolute source dirs.
func (c *Config) BuildExtensions() ([]torchext.Extension, error) {
	exts := make([]torchext.Extension, 0, len(c.Extensions))
	for _, ext := range c.Extensions {
		built, err := torchext.NewCMakeExtension(ext.Name, c.resolve(ext.SourceDir))
		if err != nil {
			return nil, err
		}
		exts = append(exts, built)
	}
	return exts, nil
}

// BuildConfig converts the file into the library's build configuration.
func (c *Config) BuildConfig(logger *zap.Logger) *torchext.BuildConfig {
	return &torchext.BuildConfig{
		ProjectDir:       c.ProjectDir,
		BuildTemp:        c.resolve(c.BuildTemp),
		BuildLib:         c.resolve(c.BuildLib),
		InstallDir:       c.InstallDir,
		Inplace:          c.Inplace,
		CMakeArgs:        append([]string(nil), c.CMakeArgs...),
		Env:              c.Env,
		PythonPath:       c.Python,
		Version:          c.Version,
		TorchCMakeDir:    c.TorchCMakeDir,
		Pybind11CMakeDir: c.Pybind11CMakeDir,
		Debug:            c.Debug,
		Parallel:         c.Parallel,
		StopOnFailure:    c.StopOnFailure != nil && *c.StopOnFailure,
		Logger:           logger,
	}
}

// BuildDirs returns the directories builds write into, for watchers to skip.
// The install dir is included when set; inplace output lands beside the
// sources and is covered by OutputSuffixes instead.
func (c *Config) BuildDirs() []string {
	dirs := []string{c.resolve(c.BuildTemp), c.resolve(c.BuildLib)}
	if c.InstallDir != "" && !c.Inplace {
		dirs = append(dirs, c.resolve(c.InstallDir))
	}
	return dirs
}

// OutputSuffixes returns the file suffixes of libraries a build writes into
// the project tree, or nil when output stays under the build dirs.
func (c *Config) OutputSuffixes() []string {
	if !c.Inplace {
		return nil
	}
	return torchext.NativeLibrarySuffixes()
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.ProjectDir, path)
}
