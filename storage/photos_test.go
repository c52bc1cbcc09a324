package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSave(t *testing.T) {
	store, err := NewPhotoStore(t.TempDir(), "http://localhost:8080/photos/")
	if err != nil {
		t.Fatalf("NewPhotoStore failed: %v", err)
	}

	data := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	objectName, publicURL, err := store.Save(data)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if !strings.HasPrefix(objectName, "reports/") || !strings.HasSuffix(objectName, ".jpg") {
		t.Errorf("unexpected object name %q", objectName)
	}
	if publicURL != "http://localhost:8080/photos/"+objectName {
		t.Errorf("unexpected public URL %q", publicURL)
	}

	stored, err := os.ReadFile(filepath.Join(store.Dir(), filepath.FromSlash(objectName)))
	if err != nil {
		t.Fatalf("stored object unreadable: %v", err)
	}
	if string(stored) != string(data) {
		t.Error("stored bytes differ from input")
	}
}

func TestSaveGeneratesDistinctNames(t *testing.T) {
	store, err := NewPhotoStore(t.TempDir(), "http://localhost:8080/photos")
	if err != nil {
		t.Fatalf("NewPhotoStore failed: %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		name, _, err := store.Save([]byte("x"))
		if err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if seen[name] {
			t.Fatalf("object name collision: %s", name)
		}
		seen[name] = true
	}
}
