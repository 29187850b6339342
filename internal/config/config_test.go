package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	torchext "github.com/contriboss/torch-extension-go"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, DefaultName, cfg.Name)
	assert.Equal(t, torchext.DefaultVersion, cfg.Version)
	assert.Equal(t, []Extension{{Name: DefaultName, SourceDir: "."}}, cfg.Extensions)
	require.NotNil(t, cfg.StopOnFailure)
	assert.True(t, *cfg.StopOnFailure)

	bc := cfg.BuildConfig(zap.NewNop())
	assert.Equal(t, filepath.Join(dir, "build", "temp"), bc.BuildTemp)
	assert.Equal(t, filepath.Join(dir, "build", "lib"), bc.BuildLib)
	assert.True(t, bc.StopOnFailure)
	assert.Nil(t, bc.Debug)

	exts, err := cfg.BuildExtensions()
	require.NoError(t, err)
	require.Len(t, exts, 1)
	assert.Equal(t, dir, exts[0].SourceDir)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(t.TempDir(), "/nonexistent/torchext.yaml")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TORCH_PREFIX", "/opt/libtorch/share/cmake")

	writeConfig(t, dir, DefaultFile, `
name: trilinear
version: 0.2.0
python: /opt/conda/bin/python
debug: true
parallel: 8
inplace: true
cmake_args:
  - -DTORCH_CUDA_ARCH_LIST=8.0;8.6
env:
  CUDA_HOME: /usr/local/cuda
torch_cmake_dir: ${TORCH_PREFIX}
stop_on_failure: false
extensions:
  - name: trilinear._C
    source_dir: csrc
  - name: trilinear._ops
`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "trilinear", cfg.Name)
	assert.Equal(t, "/opt/libtorch/share/cmake", cfg.TorchCMakeDir)
	assert.Equal(t, []Extension{
		{Name: "trilinear._C", SourceDir: "csrc"},
		{Name: "trilinear._ops", SourceDir: "."},
	}, cfg.Extensions)

	bc := cfg.BuildConfig(nil)
	require.NotNil(t, bc.Debug)
	assert.True(t, *bc.Debug)
	assert.Equal(t, 8, bc.Parallel)
	assert.True(t, bc.Inplace)
	assert.False(t, bc.StopOnFailure)
	assert.Equal(t, "0.2.0", bc.Version)
	assert.Equal(t, "/opt/conda/bin/python", bc.PythonPath)
	assert.Equal(t, []string{"-DTORCH_CUDA_ARCH_LIST=8.0;8.6"}, bc.CMakeArgs)
	assert.Equal(t, "/usr/local/cuda", bc.Env["CUDA_HOME"])

	exts, err := cfg.BuildExtensions()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "csrc"), exts[0].SourceDir)
}

func TestLoadVersionFromFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "VERSION", "3.1.4\n")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "3.1.4", cfg.Version)
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFile, "")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, cfg.Name)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "custom.yaml", "paralel: 4\n")

	_, err := Load(dir, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paralel")
}

func TestLoadValidation(t *testing.T) {
	testCases := map[string]string{
		"negative parallel": "parallel: -1\n",
		"unnamed extension": "extensions:\n  - source_dir: csrc\n",
		"duplicate":         "extensions:\n  - name: a\n  - name: a\n",
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, DefaultFile, content)

			_, err := Load(dir, "")
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".env", "TORCHEXT_TEST_ARCH=9.0\nTORCHEXT_TEST_KEEP=from-file\n")
	writeConfig(t, dir, DefaultFile, "cmake_args:\n  - -DARCH=${TORCHEXT_TEST_ARCH}\n  - -DKEEP=${TORCHEXT_TEST_KEEP}\n")

	t.Setenv("TORCHEXT_TEST_KEEP", "from-env")
	t.Cleanup(func() { os.Unsetenv("TORCHEXT_TEST_ARCH") })

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"-DARCH=9.0", "-DKEEP=from-env"}, cfg.CMakeArgs)
}

func TestLoadMalformedEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".env", "CUDA-HOME=/usr/local/cuda\n")

	_, err := Load(dir, "")
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), ".env")
}

func TestBuildDirs(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFile, "build_temp: /abs/temp\n")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"/abs/temp", filepath.Join(dir, "build", "lib")}, cfg.BuildDirs())
	assert.Nil(t, cfg.OutputSuffixes())
}

func TestBuildDirsIncludesInstallDir(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFile, "install_dir: cppcuda\n")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "build", "temp"),
		filepath.Join(dir, "build", "lib"),
		filepath.Join(dir, "cppcuda"),
	}, cfg.BuildDirs())
}

func TestOutputSuffixesInplace(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, DefaultFile, "inplace: true\ninstall_dir: cppcuda\n")

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.NotContains(t, cfg.BuildDirs(), filepath.Join(dir, "cppcuda"))
	assert.ElementsMatch(t, []string{".so", ".pyd", ".dll", ".dylib"}, cfg.OutputSuffixes())
}
