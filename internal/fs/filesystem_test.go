package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
)

func TestDefaultFactory(t *testing.T) {
	factory := NewDefaultFactory()

	if _, ok := factory.Production().(*afero.OsFs); !ok {
		t.Error("Expected production filesystem to be *afero.OsFs")
	}

	if _, ok := factory.Memory().(*afero.MemMapFs); !ok {
		t.Error("Expected memory filesystem to be *afero.MemMapFs")
	}

	if _, ok := factory.Media().(*afero.ReadOnlyFs); !ok {
		t.Error("Expected media filesystem to be *afero.ReadOnlyFs")
	}
}

func TestMemoryFilesystemIsolation(t *testing.T) {
	factory := NewDefaultFactory()
	memFS1 := factory.Memory()
	memFS2 := factory.Memory()

	if err := afero.WriteFile(memFS1, "/test1.wav", []byte("content1"), 0644); err != nil {
		t.Fatalf("Failed to write to memFS1: %v", err)
	}

	exists, _ := afero.Exists(memFS2, "/test1.wav")
	if exists {
		t.Error("Expected file from memFS1 not to exist in memFS2 (isolation broken)")
	}
}

func TestMediaFilesystemIsReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	media := NewDefaultFactory().Media()

	data, err := afero.ReadFile(media, path)
	if err != nil {
		t.Fatalf("Expected media fs to read files: %v", err)
	}
	if string(data) != "RIFF" {
		t.Errorf("Unexpected content %q", data)
	}

	if err := afero.WriteFile(media, filepath.Join(dir, "out.wav"), []byte("x"), 0644); err == nil {
		t.Error("Expected writes through the media fs to fail")
	}
}
