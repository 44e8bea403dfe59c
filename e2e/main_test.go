//go:build e2e

// Package e2e exercises the compiled spindle binary end to end: real
// process, real exit codes, real environment resolution. The remote side
// is the in-process fake platform server, so the suite needs no
// credentials and leaves no traces.
//
// Run with: go test -tags e2e ./e2e
package e2e

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// binaryPath is the spindle binary built once by TestMain.
var binaryPath string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "spindle-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating build dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tmp, "spindle")

	build := exec.Command("go", "build", "-o", binaryPath, "github.com/spindleworks/spindle-go")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr

	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building spindle binary: %v\n", err)
		os.RemoveAll(tmp)
		os.Exit(1)
	}

	code := m.Run()

	os.RemoveAll(tmp)
	os.Exit(code)
}
