package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}
	return path
}

func TestRootCommand_Help(t *testing.T) {
	buf := new(bytes.Buffer)
	RootCmd.SetOut(buf)
	RootCmd.SetArgs([]string{"--help"})

	if err := RootCmd.Execute(); err != nil {
		t.Errorf("--help returned error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"run", "executors", "validate"} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q command", want)
		}
	}
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	want := map[string]bool{"run": false, "executors": false, "validate": false}
	for _, cmd := range RootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q is not registered", name)
		}
	}
}

func TestRunCommand_Flags(t *testing.T) {
	tests := []struct {
		name      string
		shorthand string
	}{
		{"option", "o"},
		{"settings-dir", ""},
		{"sequential", ""},
		{"log-file", "l"},
		{"artifacts-dir", ""},
		{"best-effort", ""},
		{"quiet", "q"},
		{"no-color", ""},
	}

	for _, tt := range tests {
		flag := runCmd.Flags().Lookup(tt.name)
		if flag == nil {
			t.Errorf("run command missing --%s flag", tt.name)
			continue
		}
		if flag.Shorthand != tt.shorthand {
			t.Errorf("--%s shorthand = %q, want %q", tt.name, flag.Shorthand, tt.shorthand)
		}
	}
}

func TestExecutorsCommand_ListsIntegrations(t *testing.T) {
	buf := new(bytes.Buffer)
	executorsCmd.SetOut(buf)
	listExecutors(executorsCmd)

	output := buf.String()
	for _, tag := range []string{"command", "apachebench", "siege", "molotov", "k6", "vegeta", "selenium-runner"} {
		if !strings.Contains(output, tag) {
			t.Errorf("executors output missing %q", tag)
		}
	}
}

func TestExecutorsCommand_Verbose(t *testing.T) {
	buf := new(bytes.Buffer)
	executorsCmd.SetOut(buf)
	if err := executorsCmd.Flags().Set("verbose", "true"); err != nil {
		t.Fatalf("setting verbose: %v", err)
	}
	defer executorsCmd.Flags().Set("verbose", "false")

	listExecutors(executorsCmd)

	output := buf.String()
	if !strings.Contains(output, "(required)") {
		t.Error("verbose output does not mark required fields")
	}
	if !strings.Contains(output, "script") {
		t.Error("verbose output missing configuration field names")
	}
}

func TestValidatePlan_Valid(t *testing.T) {
	path := writePlanFile(t, `
name: smoke
settings:
  policy: parallel
executions:
  - executor: k6
    script: ./test.js
  - executor: command
    cmd: "true"
`)

	buf := new(bytes.Buffer)
	validateCmd.SetOut(buf)

	if err := validatePlan(validateCmd, path); err != nil {
		t.Fatalf("validatePlan() error = %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "2 execution(s)") {
		t.Errorf("validate output = %q, want execution count", output)
	}
	if !strings.Contains(output, "parallel") {
		t.Errorf("validate output = %q, want policy", output)
	}
}

func TestValidatePlan_UnknownExecutor(t *testing.T) {
	path := writePlanFile(t, `
executions:
  - executor: locust
    script: ./test.py
`)

	err := validatePlan(validateCmd, path)
	if err == nil {
		t.Fatal("validatePlan() accepted an unknown executor type")
	}
	if !strings.Contains(err.Error(), "locust") {
		t.Errorf("error %q does not name the unknown type", err)
	}
}

func TestValidatePlan_MissingRequiredField(t *testing.T) {
	path := writePlanFile(t, `
executions:
  - executor: k6
    vus: 10
`)

	if err := validatePlan(validateCmd, path); err == nil {
		t.Fatal("validatePlan() accepted a k6 execution without a script")
	}
}

func TestValidatePlan_MissingFile(t *testing.T) {
	if err := validatePlan(validateCmd, filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("validatePlan() accepted a missing plan file")
	}
}

func TestValidatePlan_WithOverrides(t *testing.T) {
	path := writePlanFile(t, `
executions:
  - executor: command
    cmd: "true"
`)

	cmd := &cobra.Command{}
	cmd.Flags().StringArrayP("option", "o", nil, "")
	cmd.Flags().String("settings-dir", "", "")
	if err := cmd.Flags().Set("option", "settings.policy=parallel"); err != nil {
		t.Fatalf("setting option: %v", err)
	}

	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	if err := validatePlan(cmd, path); err != nil {
		t.Fatalf("validatePlan() with override error = %v", err)
	}
	if !strings.Contains(buf.String(), "parallel") {
		t.Errorf("override did not take effect: %q", buf.String())
	}
}
