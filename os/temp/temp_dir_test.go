package temp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "record.job")
	if err := WriteFile(path, []byte("one"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := WriteFile(path, []byte("two"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "two" {
		t.Fatalf("Expected \"two\", got %q (%v)", data, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("Expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestWriteFileMissingDir(t *testing.T) {
	if err := WriteFile(filepath.Join(t.TempDir(), "no", "such"), []byte("x"), 0644); err == nil {
		t.Fatalf("Expected an error writing into a missing directory")
	}
}

func TestIsTempName(t *testing.T) {
	if !IsTempName("/q/.00000001C0A80001.job.1234") {
		t.Fatalf("Expected a dot file to be a temp name")
	}
	if IsTempName("/q/00000001C0A80001.job") {
		t.Fatalf("Expected a record not to be a temp name")
	}
}
