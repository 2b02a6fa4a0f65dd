package scenarios

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScenario(t *testing.T) {
	all, err := LoadAll(".")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) == 0 {
		t.Fatal("no scenarios found")
	}
	for _, sc := range all {
		t.Run(sc.Name, func(t *testing.T) {
			RunScenario(t, sc)
		})
	}
}

func TestLoadAllInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(":"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadAll(dir); err == nil {
		t.Fatal("expected unmarshal error")
	}
}

func TestLoadAllDuplicateName(t *testing.T) {
	dir := t.TempDir()
	body := []byte("name: same\nparameters: p.yaml\nsystem: A\nstep_s: 60\n")
	for _, f := range []string{"a.yaml", "b.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, f), body, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := LoadAll(dir); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestLoadAllEmptyDir(t *testing.T) {
	all, err := LoadAll(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no scenarios, got %d", len(all))
	}
}
