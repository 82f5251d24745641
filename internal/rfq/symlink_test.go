package rfq_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	rfqfs "rfq-tracker/internal/fs"
	"rfq-tracker/internal/rfq"
	"rfq-tracker/internal/testutil"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(link), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
}

func TestFingerprinter_Symlinks(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "Received", "2024-01-10-Resp")
	writeFile(t, filepath.Join(sub, "resp.pdf"), "resp")
	writeFile(t, filepath.Join(root, "other", "real.pdf"), "linked")
	writeFile(t, filepath.Join(root, "other", "nested", "n.txt"), "nested")

	symlink(t, filepath.Join(root, "other", "real.pdf"), filepath.Join(sub, "link.pdf"))
	symlink(t, filepath.Join(root, "other", "nested"), filepath.Join(sub, "nested"))
	symlink(t, sub, filepath.Join(sub, "loop"))
	symlink(t, filepath.Join(root, "missing"), filepath.Join(sub, "broken.pdf"))

	fsmgr := rfqfs.NewOSFilesystemManager(nil)
	logger := testutil.NewRecordingLogger()
	digest, err := newFingerprinter(fsmgr, logger).Fingerprint(sub)
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}

	want := testutil.FolderHash(map[string][]byte{
		"link.pdf":     []byte("linked"),
		"nested/n.txt": []byte("nested"),
		"resp.pdf":     []byte("resp"),
	})
	if digest.Hash != want {
		t.Errorf("Hash = %s, want %s", digest.Hash, want)
	}
	wantFiles := []string{
		filepath.Join(sub, "link.pdf"),
		filepath.Join(sub, "nested", "n.txt"),
		filepath.Join(sub, "resp.pdf"),
	}
	if !reflect.DeepEqual(digest.Files, wantFiles) {
		t.Errorf("Files = %v, want %v", digest.Files, wantFiles)
	}

	if !logger.Contains("WARN", "symlink loop") {
		t.Errorf("expected loop warning, got:\n%s", logger)
	}
	if !logger.Contains("WARN", "unresolvable link") {
		t.Errorf("expected dangling link warning, got:\n%s", logger)
	}
}

func TestScanner_SymlinkedFolders(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "24001")
	writeFile(t, filepath.Join(root, "shared", "Acme", "Sent", "a", "doc.pdf"), "doc")
	writeFile(t, filepath.Join(root, "shared", "resp", "resp.pdf"), "resp")
	if err := os.MkdirAll(filepath.Join(project, "RFQ", "Beta", "Received"), 0755); err != nil {
		t.Fatal(err)
	}

	symlink(t, filepath.Join(root, "shared", "Acme"), filepath.Join(project, "RFQ", "Acme"))
	symlink(t, filepath.Join(root, "shared", "resp"), filepath.Join(project, "RFQ", "Beta", "Received", "linked"))

	result := newScanner(rfqfs.NewOSFilesystemManager(nil), rfq.NewNopLogger()).Scan(project)
	if len(result.Partners) != 2 {
		t.Fatalf("len(Partners) = %d, want 2: %+v", len(result.Partners), result.Partners)
	}

	acme, beta := result.Partners[0], result.Partners[1]
	if acme.Name != "Acme" || !reflect.DeepEqual(acme.Sent, []string{filepath.Join(project, "RFQ", "Acme", "Sent", "a")}) {
		t.Errorf("Acme = %+v", acme)
	}
	if beta.Name != "Beta" || !reflect.DeepEqual(beta.Received, []string{filepath.Join(project, "RFQ", "Beta", "Received", "linked")}) {
		t.Errorf("Beta = %+v", beta)
	}
}

func TestCrawlService_SymlinkedProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "elsewhere", "24002", "RFQ", "Acme", "Sent", "a", "doc.pdf"), "doc")
	symlink(t, filepath.Join(root, "elsewhere", "24002"), filepath.Join(root, "projects", "24002"))

	service := rfq.NewCrawlService(rfqfs.NewOSFilesystemManager(nil), rfq.DefaultOptions(),
		rfq.NewDryRunSink(rfq.NewNopLogger()), nil, rfq.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator())

	summary, err := service.Crawl(context.Background(), filepath.Join(root, "projects"))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if summary.Projects != 1 || summary.Planned != 1 {
		t.Errorf("summary = %+v, want the linked project crawled", summary)
	}
}
