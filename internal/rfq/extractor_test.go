package rfq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"rfq-tracker/internal/rfq"
	"rfq-tracker/internal/testutil"
)

func newExtractor(fsmgr rfq.FilesystemManager, clock rfq.Clock, logger rfq.Logger) *rfq.Extractor {
	scanner := newScanner(fsmgr, logger)
	return rfq.NewExtractor(fsmgr, scanner, rfq.NewFingerprinter(fsmgr, scanner, logger), clock, logger)
}

func TestExtractor_ExtractProject(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/root/12345/1-RFQ/Supplier RFQ Quotes/SupplierA/Sent/2024-01-10 RFQ/doc.pdf", []byte("request"))
	fsmgr.AddFile("/root/12345/1-RFQ/Supplier RFQ Quotes/SupplierA/Received/2024-01-12 Quote/quote.pdf", []byte("quote"))
	fsmgr.AddFile("/root/12345/1-RFQ/Contractor RFQ Quotes/BuildCo/Sent/tender/scope.docx", []byte("scope"))

	local := time.FixedZone("AEST", 10*60*60)
	created := time.Date(2024, 1, 10, 18, 0, 0, 0, local)
	fsmgr.SetCreationTime("/root/12345/1-RFQ/Supplier RFQ Quotes/SupplierA/Sent/2024-01-10 RFQ", created)

	clock := testutil.FixedClock()
	bundle, err := newExtractor(fsmgr, clock, rfq.NewNopLogger()).ExtractProject(context.Background(), "/root/12345")
	if err != nil {
		t.Fatalf("ExtractProject() error = %v", err)
	}

	if bundle.Project.ProjectNumber != "12345" || bundle.Project.Path != "/root/12345" {
		t.Errorf("Project = %+v", bundle.Project)
	}
	if !bundle.Project.LastScanned.Equal(clock.Now()) {
		t.Errorf("LastScanned = %v, want %v", bundle.Project.LastScanned, clock.Now())
	}

	if len(bundle.Suppliers) != 2 {
		t.Fatalf("len(Suppliers) = %d, want 2", len(bundle.Suppliers))
	}
	byName := make(map[string]rfq.Supplier)
	for _, s := range bundle.Suppliers {
		byName[s.SupplierName] = s
	}
	if got := byName["SupplierA"].EffectivePartnerType(); got != rfq.PartnerSupplier {
		t.Errorf("SupplierA partner type = %s", got)
	}
	if got := byName["BuildCo"].EffectivePartnerType(); got != rfq.PartnerContractor {
		t.Errorf("BuildCo partner type = %s", got)
	}
	if got := byName["BuildCo"].Path; got != "/root/12345/1-RFQ/Contractor RFQ Quotes/BuildCo" {
		t.Errorf("BuildCo path = %s", got)
	}

	if len(bundle.Submissions) != 3 {
		t.Fatalf("len(Submissions) = %d, want 3", len(bundle.Submissions))
	}
	var sent *rfq.Submission
	for i := range bundle.Submissions {
		sub := &bundle.Submissions[i]
		if sub.ID != "" || !sub.FirstSeen.IsZero() || sub.LastChecked != nil {
			t.Errorf("submission %s carries store fields: %+v", sub.FolderName, sub)
		}
		if sub.FolderName == "2024-01-10 RFQ" {
			sent = sub
		}
	}
	if sent == nil {
		t.Fatal("sent submission not found")
	}

	if sent.Type != rfq.DirectionSent || sent.SupplierName != "SupplierA" {
		t.Errorf("sent submission = %+v", sent)
	}
	if sent.Date.Location() != time.UTC || !sent.Date.Equal(created) {
		t.Errorf("Date = %v, want %v in UTC", sent.Date, created)
	}
	if want := testutil.FolderHash(map[string][]byte{"doc.pdf": []byte("request")}); sent.ContentHash != want {
		t.Errorf("ContentHash = %s, want %s", sent.ContentHash, want)
	}
	wantFile := "/root/12345/1-RFQ/Supplier RFQ Quotes/SupplierA/Sent/2024-01-10 RFQ/doc.pdf"
	if len(sent.Files) != 1 || sent.Files[0] != wantFile {
		t.Errorf("Files = %v", sent.Files)
	}
}

func TestExtractor_NotProjectFolder(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddDirectory("/root/Project_Template")

	_, err := newExtractor(fsmgr, testutil.FixedClock(), rfq.NewNopLogger()).
		ExtractProject(context.Background(), "/root/Project_Template")
	if !errors.Is(err, rfq.ErrNotProjectFolder) {
		t.Errorf("ExtractProject() error = %v, want ErrNotProjectFolder", err)
	}
}

func TestExtractor_NoRFQFolder(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/root/24001/Drawings/plan.dwg", []byte("plan"))

	bundle, err := newExtractor(fsmgr, testutil.FixedClock(), rfq.NewNopLogger()).
		ExtractProject(context.Background(), "/root/24001")
	if err != nil {
		t.Fatalf("ExtractProject() error = %v", err)
	}
	if bundle.Suppliers == nil || len(bundle.Suppliers) != 0 {
		t.Errorf("Suppliers = %#v, want empty non-nil", bundle.Suppliers)
	}
	if bundle.Submissions == nil || len(bundle.Submissions) != 0 {
		t.Errorf("Submissions = %#v, want empty non-nil", bundle.Submissions)
	}
}

func TestExtractor_CreationTimeUnavailable(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	folder := "/root/24001/RFQ/Acme/Received/quote"
	fsmgr.AddFile(folder+"/q.pdf", []byte("q"))
	fsmgr.FailCreationTime(folder, errors.New("stat failed"))
	clock := testutil.FixedClock()
	logger := testutil.NewRecordingLogger()

	bundle, err := newExtractor(fsmgr, clock, logger).ExtractProject(context.Background(), "/root/24001")
	if err != nil {
		t.Fatalf("ExtractProject() error = %v", err)
	}
	if len(bundle.Submissions) != 1 {
		t.Fatalf("len(Submissions) = %d, want 1", len(bundle.Submissions))
	}
	if got := bundle.Submissions[0].Date; !got.Equal(clock.Now()) {
		t.Errorf("Date = %v, want clock time %v", got, clock.Now())
	}
	if !logger.Contains("ERROR", "creation time") {
		t.Errorf("expected error log, got:\n%s", logger)
	}
}

func TestExtractor_UnreadableSubmissionSkipped(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/root/24001/RFQ/Acme/Sent/a/a.pdf", []byte("a"))
	fsmgr.AddFile("/root/24001/RFQ/Acme/Sent/b/b.pdf", []byte("b"))
	fsmgr.FailReadDir("/root/24001/RFQ/Acme/Sent/b", errors.New("permission denied"))
	logger := testutil.NewRecordingLogger()

	bundle, err := newExtractor(fsmgr, testutil.FixedClock(), logger).ExtractProject(context.Background(), "/root/24001")
	if err != nil {
		t.Fatalf("ExtractProject() error = %v", err)
	}
	if len(bundle.Submissions) != 1 || bundle.Submissions[0].FolderName != "a" {
		t.Errorf("Submissions = %+v, want only folder a", bundle.Submissions)
	}
	if !logger.Contains("ERROR", "building submission") {
		t.Errorf("expected error log, got:\n%s", logger)
	}
}

func TestExtractor_Cancelled(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/root/24001/RFQ/Acme/Sent/a/a.pdf", []byte("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bundle, err := newExtractor(fsmgr, testutil.FixedClock(), rfq.NewNopLogger()).ExtractProject(ctx, "/root/24001")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ExtractProject() error = %v, want context.Canceled", err)
	}
	if bundle == nil {
		t.Fatal("expected partial bundle")
	}
	if len(bundle.Suppliers) != 1 || len(bundle.Submissions) != 0 {
		t.Errorf("partial bundle = %d suppliers, %d submissions", len(bundle.Suppliers), len(bundle.Submissions))
	}
}
