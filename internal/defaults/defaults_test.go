package defaults

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestListDefaults(t *testing.T) {
	files, err := ListDefaults()
	if err != nil {
		t.Fatalf("ListDefaults failed: %v", err)
	}

	expected := []string{"config.yaml", "persona.md"}
	if len(files) != len(expected) {
		t.Errorf("Expected %d files, got %d: %v", len(expected), len(files), files)
	}

	for _, exp := range expected {
		if !slices.Contains(files, exp) {
			t.Errorf("Expected file %s not found in %v", exp, files)
		}
	}
}

func TestGetDefault(t *testing.T) {
	content, err := GetDefault("config.yaml")
	if err != nil {
		t.Fatalf("GetDefault failed: %v", err)
	}

	if len(content) == 0 {
		t.Error("config.yaml content is empty")
	}
}

func TestDataDirOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("SAGA_DATA_DIR", tmpDir)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir failed: %v", err)
	}
	if dir != tmpDir {
		t.Errorf("Expected %s, got %s", tmpDir, dir)
	}
}

func TestEnsureDataDir(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "saga")
	t.Setenv("SAGA_DATA_DIR", tmpDir)

	dir, err := EnsureDataDir()
	if err != nil {
		t.Fatalf("EnsureDataDir failed: %v", err)
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Data directory was not created")
	}

	for _, name := range []string{"config.yaml", "persona.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
			t.Errorf("%s was not copied", name)
		}
	}
}

func TestEnsureDataDirDoesNotOverwrite(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "saga")
	t.Setenv("SAGA_DATA_DIR", tmpDir)

	if _, err := EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir failed: %v", err)
	}

	personaPath := filepath.Join(tmpDir, "persona.md")
	if err := os.WriteFile(personaPath, []byte("edited"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir failed: %v", err)
	}
	data, _ := os.ReadFile(personaPath)
	if string(data) != "edited" {
		t.Error("EnsureDataDir overwrote a user-edited file")
	}

	// Reset does overwrite
	if err := Reset(tmpDir); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	data, _ = os.ReadFile(personaPath)
	if string(data) == "edited" {
		t.Error("Reset did not restore the default file")
	}
}
