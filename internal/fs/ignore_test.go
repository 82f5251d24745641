package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines, comments and invalid globs", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "*.bak", "[unclosed"})
		// The ignore file itself is always present.
		if len(m.patterns) != 2 {
			t.Fatalf("expected 2 patterns, got %d", len(m.patterns))
		}
		if m.patterns[1].pattern != "*.bak" {
			t.Errorf("expected *.bak, got %s", m.patterns[1].pattern)
		}
	})

	t.Run("classifies path vs basename patterns", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"Thumbs.db", "**/drafts/*"})
		if m.patterns[1].matchPath {
			t.Error("Thumbs.db should not be a path pattern")
		}
		if !m.patterns[2].matchPath {
			t.Error("**/drafts/* should be a path pattern")
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{
			name:         "office lock file in root",
			patterns:     []string{"~$*"},
			relativePath: "~$quote.docx",
			want:         true,
		},
		{
			name:         "basename glob matches in subdirectory",
			patterns:     []string{"~$*"},
			relativePath: filepath.Join("drawings", "~$quote.docx"),
			want:         true,
		},
		{
			name:         "basename glob does not match regular file",
			patterns:     []string{"~$*"},
			relativePath: "quote.docx",
			want:         false,
		},
		{
			name:         "ignore file is always ignored",
			patterns:     nil,
			relativePath: IgnoreFileName,
			want:         true,
		},
		{
			name:         "doublestar path pattern matches at depth",
			patterns:     []string{"**/drafts/*"},
			relativePath: filepath.Join("a", "b", "drafts", "v1.pdf"),
			want:         true,
		},
		{
			name:         "doublestar path pattern matches at top level",
			patterns:     []string{"**/drafts/*"},
			relativePath: filepath.Join("drafts", "v1.pdf"),
			want:         true,
		},
		{
			name:         "path pattern does not match other folder",
			patterns:     []string{"**/drafts/*"},
			relativePath: filepath.Join("final", "v1.pdf"),
			want:         false,
		},
		{
			name:         "no user patterns",
			patterns:     nil,
			relativePath: "quote.pdf",
			want:         false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			if got := m.Match(tt.relativePath); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("missing file returns nil", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile(filepath.Join(t.TempDir(), IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("patterns = %v, want nil", patterns)
		}
	})

	t.Run("reads lines", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), IgnoreFileName)
		if err := os.WriteFile(path, []byte("# lock files\n~$*\nThumbs.db\n"), 0644); err != nil {
			t.Fatal(err)
		}
		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(patterns) != 3 {
			t.Fatalf("len(patterns) = %d, want 3", len(patterns))
		}
		if patterns[1] != "~$*" {
			t.Errorf("patterns[1] = %q, want %q", patterns[1], "~$*")
		}
	})
}
