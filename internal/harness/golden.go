package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Golden files live next to the scenarios: scenarios/x.yaml has its trace
// in golden/x.golden.
const goldenSuffix = ".golden"

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(goldenSuffix),
	)
	g.Assert(t, scenarioName, []byte(result.FormatTrace()))
}

// GoldenPath returns the golden file for a scenario file:
// <dir>/../golden/<name>.golden when the scenario sits in a "scenarios"
// directory, <dir>/golden/<name>.golden otherwise.
func GoldenPath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	name := strings.TrimSuffix(filepath.Base(scenarioFile), filepath.Ext(scenarioFile))
	if filepath.Base(dir) == "scenarios" {
		dir = filepath.Dir(dir)
	}
	return filepath.Join(dir, "golden", name+goldenSuffix)
}

// CompareGolden reports whether the result's trace matches the golden file.
// A missing golden file is an error.
func CompareGolden(path string, result *Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read golden file: %w", err)
	}
	return bytes.Equal(want, []byte(result.FormatTrace())), nil
}

// UpdateGolden writes the result's trace to the golden file.
func UpdateGolden(path string, result *Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(result.FormatTrace()), 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}
