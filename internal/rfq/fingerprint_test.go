package rfq_test

import (
	"errors"
	"reflect"
	"testing"

	"rfq-tracker/internal/rfq"
	"rfq-tracker/internal/testutil"
)

func newFingerprinter(fsmgr rfq.FilesystemManager, logger rfq.Logger) *rfq.Fingerprinter {
	return rfq.NewFingerprinter(fsmgr, newScanner(fsmgr, logger), logger)
}

func TestFingerprinter_Fingerprint(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/s/quote.pdf", []byte("quote"))
	fsmgr.AddFile("/s/appendix/a.xlsx", []byte("rates"))
	fsmgr.AddFile("/s/appendix/b.txt", []byte("notes"))

	digest, err := newFingerprinter(fsmgr, rfq.NewNopLogger()).Fingerprint("/s")
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	want := testutil.FolderHash(map[string][]byte{
		"quote.pdf":       []byte("quote"),
		"appendix/a.xlsx": []byte("rates"),
		"appendix/b.txt":  []byte("notes"),
	})
	if digest.Hash != want {
		t.Errorf("Hash = %s, want %s", digest.Hash, want)
	}

	wantFiles := []string{"/s/appendix/a.xlsx", "/s/appendix/b.txt", "/s/quote.pdf"}
	if !reflect.DeepEqual(digest.Files, wantFiles) {
		t.Errorf("Files = %v, want %v", digest.Files, wantFiles)
	}
}

func TestFingerprinter_Deterministic(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/a/24001/Sent/rfq/doc.pdf", []byte("request"))
	fsmgr.AddFile("/a/24001/Sent/rfq/sub/spec.txt", []byte("spec"))
	fsmgr.Copy("/a/24001/Sent/rfq", "/b/elsewhere/renamed")

	fp := newFingerprinter(fsmgr, rfq.NewNopLogger())
	first, err := fp.Fingerprint("/a/24001/Sent/rfq")
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	again, err := fp.Fingerprint("/a/24001/Sent/rfq")
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	copied, err := fp.Fingerprint("/b/elsewhere/renamed")
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	if first.Hash != again.Hash {
		t.Error("hashing the same folder twice gave different hashes")
	}
	if first.Hash != copied.Hash {
		t.Error("a copy of the folder hashed differently")
	}
}

func TestFingerprinter_Sensitivity(t *testing.T) {
	base := func() *testutil.MockFilesystemManager {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/s/doc.pdf", []byte("v1"))
		return fsmgr
	}
	hash := func(t *testing.T, fsmgr *testutil.MockFilesystemManager) string {
		t.Helper()
		d, err := newFingerprinter(fsmgr, rfq.NewNopLogger()).Fingerprint("/s")
		if err != nil {
			t.Fatalf("Fingerprint() error = %v", err)
		}
		return d.Hash
	}
	original := hash(t, base())

	tests := []struct {
		name   string
		mutate func(*testutil.MockFilesystemManager)
		same   bool
	}{
		{
			name:   "content change",
			mutate: func(m *testutil.MockFilesystemManager) { m.AddFile("/s/doc.pdf", []byte("v2")) },
		},
		{
			name:   "added file",
			mutate: func(m *testutil.MockFilesystemManager) { m.AddFile("/s/extra.txt", []byte("x")) },
		},
		{
			name: "renamed file",
			mutate: func(m *testutil.MockFilesystemManager) {
				*m = *testutil.NewMockFilesystemManager()
				m.AddFile("/s/renamed.pdf", []byte("v1"))
			},
		},
		{
			name:   "filtered file added",
			mutate: func(m *testutil.MockFilesystemManager) { m.AddFile("/s/Thumbs.db", []byte("cache")) },
			same:   true,
		},
		{
			name: "ignored file added",
			mutate: func(m *testutil.MockFilesystemManager) {
				m.SetIgnorePatterns([]string{"~$*"})
				m.AddFile("/s/~$doc.docx", []byte("lock"))
			},
			same: true,
		},
		{
			name:   "empty subfolder added",
			mutate: func(m *testutil.MockFilesystemManager) { m.AddDirectory("/s/empty") },
			same:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsmgr := base()
			tt.mutate(fsmgr)
			got := hash(t, fsmgr)
			if (got == original) != tt.same {
				t.Errorf("hash unchanged = %v, want %v", got == original, tt.same)
			}
		})
	}
}

func TestFingerprinter_EmptyFolder(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddDirectory("/s/nested/deeper")

	digest, err := newFingerprinter(fsmgr, rfq.NewNopLogger()).Fingerprint("/s")
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	if digest.Hash != rfq.EmptyContentHash {
		t.Errorf("Hash = %s, want EmptyContentHash", digest.Hash)
	}
	if rfq.EmptyContentHash != testutil.SHA256Hex(nil) {
		t.Errorf("EmptyContentHash = %s, want SHA-256 of no bytes", rfq.EmptyContentHash)
	}
	if digest.Files == nil || len(digest.Files) != 0 {
		t.Errorf("Files = %#v, want empty non-nil slice", digest.Files)
	}
}

func TestFingerprinter_UnreadableFile(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/s/good.pdf", []byte("good"))
	fsmgr.AddFile("/s/locked.pdf", []byte("locked"))
	fsmgr.FailOpen("/s/locked.pdf", errors.New("permission denied"))
	logger := testutil.NewRecordingLogger()

	digest, err := newFingerprinter(fsmgr, logger).Fingerprint("/s")
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	want := testutil.FolderHash(map[string][]byte{"good.pdf": []byte("good")})
	if digest.Hash != want {
		t.Errorf("Hash = %s, want hash of readable files only", digest.Hash)
	}
	if !reflect.DeepEqual(digest.Files, []string{"/s/good.pdf"}) {
		t.Errorf("Files = %v", digest.Files)
	}
	if !logger.Contains("WARN", "unreadable file") {
		t.Errorf("expected warning, got:\n%s", logger)
	}
}

func TestFingerprinter_UnreadableFolder(t *testing.T) {
	t.Run("top level is an error", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddDirectory("/s")
		fsmgr.FailReadDir("/s", errors.New("permission denied"))

		if _, err := newFingerprinter(fsmgr, rfq.NewNopLogger()).Fingerprint("/s"); err == nil {
			t.Error("Fingerprint() expected error")
		}
	})

	t.Run("subfolder is skipped", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/s/doc.pdf", []byte("doc"))
		fsmgr.AddFile("/s/private/x.pdf", []byte("x"))
		fsmgr.FailReadDir("/s/private", errors.New("permission denied"))

		digest, err := newFingerprinter(fsmgr, rfq.NewNopLogger()).Fingerprint("/s")
		if err != nil {
			t.Fatalf("Fingerprint() error = %v", err)
		}
		if digest.Hash != testutil.FolderHash(map[string][]byte{"doc.pdf": []byte("doc")}) {
			t.Error("unreadable subfolder contributed to the hash")
		}
	})
}
