package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wesleyorama2/stampede/internal/config"
)

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing plan: %v", err)
	}
	return path
}

func TestLoadPlan_Basic(t *testing.T) {
	path := writePlan(t, `
name: smoke
settings:
  policy: parallel
  timeout: 10m
executions:
  - executor: k6
    script: load.js
    vus: 25
  - executor: vegeta
    targets: targets.txt
`)

	plan, err := config.LoadPlan(path, "", nil)
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}

	if plan.Name != "smoke" {
		t.Errorf("Name = %q, want %q", plan.Name, "smoke")
	}
	if plan.Settings.Policy != config.PolicyParallel {
		t.Errorf("Policy = %q, want parallel", plan.Settings.Policy)
	}
	if len(plan.Executions) != 2 {
		t.Fatalf("len(Executions) = %d, want 2", len(plan.Executions))
	}

	k6 := plan.Executions[0]
	if k6.Executor != "k6" || k6.Name != "k6" {
		t.Errorf("first execution = %q/%q, want k6/k6", k6.Executor, k6.Name)
	}
	if k6.Config["script"] != "load.js" {
		t.Errorf("script = %v, want load.js", k6.Config["script"])
	}
	if vus, ok := k6.Config["vus"].(int); !ok || vus != 25 {
		t.Errorf("vus = %v (%T), want 25", k6.Config["vus"], k6.Config["vus"])
	}
}

func TestLoadPlan_MissingFile(t *testing.T) {
	_, err := config.LoadPlan(filepath.Join(t.TempDir(), "absent.yml"), "", nil)
	if err == nil {
		t.Fatal("LoadPlan() expected error for missing file, got nil")
	}
}

func TestLoadPlan_UnnamedDuplicateTypes(t *testing.T) {
	path := writePlan(t, `
executions:
  - executor: k6
    script: a.js
  - executor: k6
    script: b.js
`)

	plan, err := config.LoadPlan(path, "", nil)
	if err != nil {
		t.Fatalf("LoadPlan() error = %v, want two unnamed k6 executions to be legal", err)
	}
	if len(plan.Executions) != 2 {
		t.Fatalf("len(Executions) = %d, want 2", len(plan.Executions))
	}
}

func TestLoadPlan_Overrides(t *testing.T) {
	path := writePlan(t, `
settings:
  timeout: 5m
executions:
  - executor: k6
    script: load.js
    vus: 10
`)

	plan, err := config.LoadPlan(path, "", []string{
		"settings.timeout=10m",
		"settings.best-effort=true",
		"executions.0.vus=50",
	})
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}

	if plan.Settings.Timeout != "10m" {
		t.Errorf("Timeout = %q, want 10m", plan.Settings.Timeout)
	}
	if !plan.Settings.BestEffort {
		t.Error("BestEffort = false, want true")
	}
	if vus, _ := plan.Executions[0].Config["vus"].(int); vus != 50 {
		t.Errorf("vus = %v, want 50", plan.Executions[0].Config["vus"])
	}
}

func TestLoadPlan_SettingsLayers(t *testing.T) {
	settingsDir := t.TempDir()
	// Lexical order: 10-base.yml loads before 20-site.yml.
	base := filepath.Join(settingsDir, "10-base.yml")
	site := filepath.Join(settingsDir, "20-site.yml")
	os.WriteFile(base, []byte("settings:\n  policy: parallel\n  timeout: 5m\n"), 0644)
	os.WriteFile(site, []byte("settings:\n  timeout: 15m\n"), 0644)

	path := writePlan(t, `
executions:
  - executor: command
    cmd: "true"
`)

	plan, err := config.LoadPlan(path, settingsDir, nil)
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}

	if plan.Settings.Policy != config.PolicyParallel {
		t.Errorf("Policy = %q, want parallel from the base layer", plan.Settings.Policy)
	}
	if plan.Settings.Timeout != "15m" {
		t.Errorf("Timeout = %q, want 15m from the later layer", plan.Settings.Timeout)
	}
}

func TestLoadPlan_PlanBeatsSettingsLayer(t *testing.T) {
	settingsDir := t.TempDir()
	os.WriteFile(filepath.Join(settingsDir, "defaults.yml"),
		[]byte("settings:\n  policy: parallel\n"), 0644)

	path := writePlan(t, `
settings:
  policy: sequential
executions:
  - executor: command
    cmd: "true"
`)

	plan, err := config.LoadPlan(path, settingsDir, nil)
	if err != nil {
		t.Fatalf("LoadPlan() error = %v", err)
	}
	if plan.Settings.Policy != config.PolicySequential {
		t.Errorf("Policy = %q, want the plan's own value", plan.Settings.Policy)
	}
}

func TestApplyOverride_Malformed(t *testing.T) {
	doc := map[string]interface{}{}
	if err := config.ApplyOverride(doc, "no-equals-sign"); err == nil {
		t.Fatal("ApplyOverride() expected error for malformed override")
	}
}

func TestApplyOverride_ListIndexOutOfRange(t *testing.T) {
	doc := map[string]interface{}{
		"executions": []interface{}{map[string]interface{}{}},
	}
	if err := config.ApplyOverride(doc, "executions.5.vus=10"); err == nil {
		t.Fatal("ApplyOverride() expected error for out-of-range index")
	}
}

func TestDeepMerge(t *testing.T) {
	base := map[string]interface{}{
		"settings": map[string]interface{}{"policy": "parallel", "timeout": "5m"},
		"name":     "base",
	}
	override := map[string]interface{}{
		"settings": map[string]interface{}{"timeout": "10m"},
	}

	merged := config.DeepMerge(base, override)

	settings := merged["settings"].(map[string]interface{})
	if settings["policy"] != "parallel" {
		t.Errorf("policy = %v, want parallel preserved from base", settings["policy"])
	}
	if settings["timeout"] != "10m" {
		t.Errorf("timeout = %v, want 10m from override", settings["timeout"])
	}
	if merged["name"] != "base" {
		t.Errorf("name = %v, want base", merged["name"])
	}
}
