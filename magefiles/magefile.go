// Package main contains Mage build targets for microfinance-engine developer tooling.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the pipeline expects.
var projectDirs = []string{
	"applications",
	"documents",
	"index",
	"reports",
	"samples",
}

// Init creates the project directory structure for the pipeline.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")
	return nil
}

const (
	binDir  = "bin"
	binName = "microfinance"
	cmdPkg  = "./cmd/microfinance"

	// buildTags enables the SQLite full-text index.
	buildTags = "sqlite_fts5"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-tags", buildTags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the FTS5 build tag.
func Test() error {
	return sh.RunV("go", "test", "-tags", buildTags, "-race", "./...")
}

// Assess builds the CLI and assesses the sample applications.
func Assess() error {
	mg.Deps(Build, Init, Sample)
	matches, err := filepath.Glob(filepath.Join(sampleDir, "*.yaml"))
	if err != nil {
		return err
	}
	args := append([]string{"assess"}, matches...)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}

// Stats prints Go line counts and how many applications and reports the
// working directories hold.
func Stats() error {
	prod, tests, err := countGoLines(".")
	if err != nil {
		return err
	}
	fmt.Printf("Go lines (production): %d\n", prod)
	fmt.Printf("Go lines (tests):      %d\n", tests)

	for _, c := range []struct{ label, dir, pattern string }{
		{"Applications", "applications", "*.yaml"},
		{"Samples", sampleDir, "*.yaml"},
		{"Reports", "reports", "*.md"},
	} {
		matches, err := filepath.Glob(filepath.Join(c.dir, c.pattern))
		if err != nil {
			return err
		}
		fmt.Printf("%-22s %d\n", c.label+":", len(matches))
	}
	return nil
}

// countGoLines counts non-blank lines in production and test Go files,
// skipping the read-only reference trees and bin/.
func countGoLines(root string) (prod, tests int, err error) {
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), "_") || strings.HasPrefix(d.Name(), ".") || d.Name() == binDir) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		n := 0
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				n++
			}
		}
		if strings.HasSuffix(path, "_test.go") {
			tests += n
		} else {
			prod += n
		}
		return nil
	})
	return prod, tests, err
}
