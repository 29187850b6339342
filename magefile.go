//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"

	torchext "github.com/contriboss/torch-extension-go"
)

var Default = Build

const binary = "bin/torchext"

// Binary compiles the torchext CLI into bin/.
func Binary() error {
	ldflags := "-X main.version=" + torchext.ReadVersion(".")
	return sh.RunV("go", "build", "-ldflags", ldflags, "-o", binary, "./cmd/torchext")
}

// Build builds every extension in the project with the torchext CLI.
func Build() error {
	mg.Deps(Binary)
	return run("build")
}

// Doctor prints the build environment report.
func Doctor() error {
	mg.Deps(Binary)
	return run("doctor")
}

// Test runs the Go test suite.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Clean removes build outputs and the CLI binary.
func Clean() error {
	mg.Deps(Binary)
	if err := run("clean", "--all"); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Dir(binary))
}

// run forwards the CLI's exit status so mage exits with the same code.
func run(args ...string) error {
	if err := sh.RunV(binary, args...); err != nil {
		return mg.Fatal(sh.ExitStatus(err), err)
	}
	return nil
}
