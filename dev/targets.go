//go:build targ

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/akedrou/textdiff"
	"github.com/toejough/go-reorder"
	"github.com/toejough/targ"
	"github.com/toejough/targ/sh"
)

// Check tidies, tests with coverage, fixes declaration order, and lints.
func Check() error {
	fmt.Println("Checking imprint...")

	return targ.Deps(Tidy, CheckCoverage, ReorderDecls, Lint)
}

// CheckCoverage fails when any function of the engine or matchers is under the
// coverage floor.
func CheckCoverage() error {
	const floor = 80.0

	if err := targ.Deps(Test); err != nil {
		return err
	}

	report, err := stdout("go", "tool", "cover", "-func="+coverProfile)
	if err != nil {
		return err
	}

	lowest, lowestLine := 101.0, ""

	for line := range strings.SplitSeq(report, "\n") {
		found := percent.FindStringSubmatch(line)
		if found == nil || strings.HasPrefix(line, "total:") {
			continue
		}

		value, err := strconv.ParseFloat(found[1], 64)
		if err != nil {
			return fmt.Errorf("coverage line %q: %w", line, err)
		}

		if value < lowest {
			lowest, lowestLine = value, line
		}
	}

	if lowestLine == "" {
		return errors.New("coverage report lists no functions")
	}

	fmt.Printf("lowest function coverage: %s\n", strings.Join(strings.Fields(lowestLine), " "))

	if lowest < floor {
		return fmt.Errorf("function coverage %.1f%% is under %.1f%%", lowest, floor)
	}

	return nil
}

// Lint runs golangci-lint over the module.
func Lint() error {
	return sh.Run("golangci-lint", "run", "./...")
}

// Mutate runs the ooze mutation suite in dev/.
func Mutate() error {
	if err := targ.Deps(Test); err != nil {
		return err
	}

	return sh.Run("go", "test", "-tags=mutation", "-timeout=6000s", "-run=TestMutation", "-ooze.v", "./dev/...")
}

// ReorderDecls rewrites every source file into the conventional declaration order.
func ReorderDecls() error {
	return eachSource(func(path, content, ordered string) error {
		fmt.Printf("reordered %s\n", path)
		return os.WriteFile(path, []byte(ordered), 0o600)
	})
}

// ReorderDeclsCheck fails, showing a diff per file, when any source file is out
// of declaration order.
func ReorderDeclsCheck() error {
	var unordered []string

	err := eachSource(func(path, content, ordered string) error {
		unordered = append(unordered, path)

		if sections, err := reorder.AnalyzeSectionOrder(content); err == nil {
			for index, section := range sections.Sections {
				if section.Expected != index+1 {
					fmt.Printf("%s: %s belongs at #%d\n", path, section.Name, section.Expected)
				}
			}
		}

		fmt.Println(textdiff.Unified(path, path+" (ordered)", content, ordered))

		return nil
	})
	if err != nil {
		return err
	}

	if len(unordered) > 0 {
		return fmt.Errorf("out of declaration order: %s", strings.Join(unordered, ", "))
	}

	return nil
}

// Test runs every package with the race detector and writes the coverage profile.
func Test() error {
	return sh.Run("go", "test", "-race", "-count=1", "-timeout=2m",
		"-coverprofile="+coverProfile, "-coverpkg=./,./internal/...,./match/...", "./...")
}

// Tidy tidies go.mod.
func Tidy() error {
	return sh.Run("go", "mod", "tidy")
}

const coverProfile = "coverage.out"

var percent = regexp.MustCompile(`(\d+\.\d)%\s*$`)

// eachSource calls fn for every hand-written Go file whose declarations reorder.Source
// would move. Hidden, underscore, and vendor directories are skipped.
func eachSource(fn func(path, content, ordered string) error) error {
	return filepath.WalkDir(".", func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if path != "." && (slices.Contains([]byte{'.', '_'}, entry.Name()[0]) || entry.Name() == "vendor") {
				return filepath.SkipDir
			}

			return nil
		}

		if filepath.Ext(path) != ".go" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		content := string(raw)
		if generated(content) {
			return nil
		}

		ordered, err := reorder.Source(content)
		if err != nil {
			fmt.Printf("skipping %s: %v\n", path, err)
			return nil
		}

		if ordered == content {
			return nil
		}

		return fn(path, content, ordered)
	})
}

func generated(content string) bool {
	head, _, _ := strings.Cut(content, "\npackage ")
	return strings.Contains(head, "Code generated") || strings.Contains(head, "DO NOT EDIT")
}

// stdout runs a command and returns its standard output; stderr passes through.
func stdout(command string, args ...string) (string, error) {
	var buf bytes.Buffer

	cmd := exec.Command(command, args...)
	cmd.Stdout = &buf
	cmd.Stderr = os.Stderr

	err := cmd.Run()

	return strings.TrimSpace(buf.String()), err
}
