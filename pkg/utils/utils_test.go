package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCreateTempDirAndCleanup(t *testing.T) {
	dir, err := CreateTempDir()
	if err != nil {
		t.Fatalf("CreateTempDir() error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(dir), "audiobot-") {
		t.Errorf("dir = %q, want audiobot- prefix", dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("created dir missing: %v", err)
	}

	if err := Cleanup(dir); err != nil {
		t.Fatalf("Cleanup() error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("dir still exists after Cleanup")
	}
}

func TestCleanupRefusesOutsideTemp(t *testing.T) {
	if err := Cleanup("/etc"); err == nil {
		t.Fatal("Cleanup accepted a directory outside the temp folder")
	}
}

func TestCleanupEmptyPath(t *testing.T) {
	if err := Cleanup(""); err != nil {
		t.Fatalf("Cleanup(\"\") error: %v", err)
	}
}
