//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

// Default target when running `stave` with no arguments.
var Default = Build

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"i": Install,
	"c": Clean,
	"r": Run,
	"s": Smoke,
}

const (
	binaryName = "fsjournal"
	mainPkg    = "./cmd/fsjournal"
	binDir     = "bin"
)

// All runs the complete build pipeline.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build)
	st.Deps(Smoke)
	return nil
}

// Build compiles the fsjournal binary.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating bin directory: %w", err)
	}

	ldflags := buildLdflags()
	output := filepath.Join(binDir, binaryName)
	if runtime.GOOS == "windows" {
		output += ".exe"
	}

	return sh.RunV("go", "build", "-ldflags", ldflags, "-o", output, mainPkg)
}

// Install builds and installs fsjournal to the user's GOBIN or /usr/local/bin.
func Install() error {
	st.Deps(Build)

	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin == "" {
		gopath, err := sh.Output(gocmd, "env", "GOPATH")
		if err != nil {
			return fmt.Errorf("determining GOPATH: %w", err)
		}
		if gopath != "" {
			bin = filepath.Join(gopath, "bin")
		} else {
			// Fallback to /usr/local/bin if GOPATH is not set.
			bin = "/usr/local/bin"
		}
	}

	src := filepath.Join(binDir, binaryName)
	if runtime.GOOS == "windows" {
		src += ".exe"
	}

	dst := filepath.Join(bin, binaryName)
	if runtime.GOOS == "windows" {
		dst += ".exe"
	}

	if st.Verbose() {
		fmt.Printf("Installing %s to %s\n", src, dst)
	}

	return sh.Copy(dst, src)
}

// Uninstall removes the installed fsjournal binary.
func Uninstall() error {
	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin == "" {
		gopath, err := sh.Output(gocmd, "env", "GOPATH")
		if err != nil {
			return fmt.Errorf("determining GOPATH: %w", err)
		}
		if gopath != "" {
			bin = filepath.Join(gopath, "bin")
		} else {
			bin = "/usr/local/bin"
		}
	}

	target := filepath.Join(bin, binaryName)
	if runtime.GOOS == "windows" {
		target += ".exe"
	}

	if _, err := os.Stat(target); os.IsNotExist(err) {
		if st.Verbose() {
			fmt.Printf("Binary not found at %s, nothing to uninstall\n", target)
		}
		return nil
	}

	if st.Verbose() {
		fmt.Printf("Removing %s\n", target)
	}

	return os.Remove(target)
}

// Test runs the package tests with race detection and coverage.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./pkg/...", "./cmd/...")
}

// Smoke runs the built binary twice in a scratch directory with checkpoint
// replay, then checks that replaying forwards the pending run exactly once.
func Smoke() error {
	st.Deps(Build)

	bin, err := filepath.Abs(filepath.Join(binDir, binaryName))
	if err != nil {
		return err
	}
	work, err := os.MkdirTemp("", "fsjournal-smoke-")
	if err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(work)

	cfgPath := filepath.Join(work, "config.yaml")
	cfg := fmt.Sprintf("directory: %s\naudit:\n  path: %s\njournal:\n  path: %s\n  replay: checkpoint\n  checkpoint_path: %s\n",
		filepath.Join(work, "testdir"),
		filepath.Join(work, "operation_log.txt"),
		filepath.Join(work, "journal.txt"),
		filepath.Join(work, "checkpoint"))
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		return fmt.Errorf("writing smoke config: %w", err)
	}

	for range 2 {
		if err := sh.Run(bin, "--config", cfgPath, "-q", "-o", "plain"); err != nil {
			return fmt.Errorf("smoke run: %w", err)
		}
	}

	// The second run's entries are still pending; after one replay nothing is.
	for _, want := range []string{"Replayed 5 entries", "Replayed 0 entries"} {
		out, err := sh.Output(bin, "--config", cfgPath, "-q", "journal", "replay")
		if err != nil {
			return fmt.Errorf("smoke replay: %w", err)
		}
		if !strings.HasPrefix(out, want) {
			return fmt.Errorf("smoke replay: want %q, got %q", want, out)
		}
		if st.Verbose() {
			fmt.Println(out)
		}
	}
	return nil
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts and the files a local run leaves behind.
func Clean() error {
	if st.Verbose() {
		fmt.Printf("Removing %s/\n", binDir)
	}
	if err := sh.Rm(binDir + "/"); err != nil {
		return err
	}
	for _, f := range runArtifacts {
		if err := sh.Rm(f); err != nil {
			return fmt.Errorf("removing %s: %w", f, err)
		}
	}
	return nil
}

// runArtifacts are created in the working directory by `stave run`.
var runArtifacts = []string{"operation_log.txt", "journal.txt", "testdir"}

// Run builds fsjournal and performs one lifecycle run in the working directory.
func Run() error {
	st.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binaryName), "-o", "plain")
}

// Replay builds fsjournal and replays the local journal without a run.
func Replay() error {
	st.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binaryName), "journal", "replay")
}

// Fmt formats all Go code.
func Fmt() error {
	if err := sh.Run("gofmt", "-w", "."); err != nil {
		return fmt.Errorf("running gofmt: %w", err)
	}
	return sh.Run("goimports", "-w", ".")
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

// buildLdflags returns ldflags for version injection.
func buildLdflags() string {
	version := "dev"
	commit := "unknown"
	date := time.Now().Format(time.RFC3339)

	if v, err := sh.Output("git", "describe", "--tags", "--always"); err == nil && v != "" {
		version = strings.TrimSpace(v)
	}

	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}

	pkg := "github.com/jamesainslie/fsjournal/cmd/fsjournal"
	return fmt.Sprintf(
		"-X %s.version=%s -X %s.commit=%s -X %s.date=%s",
		pkg, version, pkg, commit, pkg, date,
	)
}
