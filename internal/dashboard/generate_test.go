package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderMissingEnv(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "")
	if _, err := Render(t.TempDir(), Options{}); err == nil {
		t.Fatalf("expected error for missing env vars")
	}
}

func TestRenderSuccess(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")

	dir := t.TempDir()
	paths, err := Render(dir, Options{Table: "lab_trials"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != filepath.Join(dir, "grafana-dashboard.json") {
		t.Fatalf("unexpected paths %v", paths)
	}

	b, err := os.ReadFile(paths[0])
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	if !strings.Contains(string(b), "uid1") {
		t.Fatalf("greptime uid not rendered")
	}
	if !strings.Contains(string(b), "FROM lab_trials") {
		t.Fatalf("table not rendered")
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("dashboard is not valid JSON: %v", err)
	}
}

func TestRenderDefaultTable(t *testing.T) {
	t.Setenv("GREPTIMEDB_DATASOURCE_UID", "uid1")
	paths, err := Render(t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	b, _ := os.ReadFile(paths[0])
	if !strings.Contains(string(b), "FROM demand_trials") {
		t.Fatalf("default table not used")
	}
}
