package fs

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOSFilesystemManager(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "Sent", "2024-01-01-RFQ")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(sub, "doc.pdf")
	if err := os.WriteFile(file, []byte("quote"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewOSFilesystemManager([]string{"*.tmp"})

	t.Run("ReadDir lists entries", func(t *testing.T) {
		entries, err := m.ReadDir(filepath.Join(dir, "Sent"))
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) != 1 || entries[0].Name() != "2024-01-01-RFQ" || !entries[0].IsDir() {
			t.Errorf("ReadDir() = %v, want single directory 2024-01-01-RFQ", entries)
		}
	})

	t.Run("Open reads file content", func(t *testing.T) {
		r, err := m.Open(file)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "quote" {
			t.Errorf("content = %q, want %q", data, "quote")
		}
	})

	t.Run("Open rejects directories", func(t *testing.T) {
		if _, err := m.Open(sub); err == nil {
			t.Error("Open(directory) error = nil, want error")
		}
	})

	t.Run("CreationTime is recent", func(t *testing.T) {
		created, err := m.CreationTime(sub)
		if err != nil {
			t.Fatalf("CreationTime() error = %v", err)
		}
		if time.Since(created) > time.Hour || created.After(time.Now().Add(time.Minute)) {
			t.Errorf("CreationTime() = %v, want close to now", created)
		}
	})

	t.Run("CreationTime fails for missing path", func(t *testing.T) {
		if _, err := m.CreationTime(filepath.Join(dir, "missing")); err == nil {
			t.Error("CreationTime(missing) error = nil, want error")
		}
	})

	t.Run("Abs cleans relative paths", func(t *testing.T) {
		abs, err := m.Abs("a/../b")
		if err != nil {
			t.Fatal(err)
		}
		if !filepath.IsAbs(abs) || filepath.Base(abs) != "b" {
			t.Errorf("Abs() = %q", abs)
		}
	})

	t.Run("IsIgnored applies configured patterns", func(t *testing.T) {
		if !m.IsIgnored("scratch.tmp") {
			t.Error("IsIgnored(scratch.tmp) = false, want true")
		}
		if m.IsIgnored("doc.pdf") {
			t.Error("IsIgnored(doc.pdf) = true, want false")
		}
	})
}
