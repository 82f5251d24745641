package rfq

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrCrawlTimedOut is returned when the crawl context deadline passes.
// Documents written before the deadline are kept.
var ErrCrawlTimedOut = errors.New("crawl timed out")

// CrawlSummary totals a crawl.
type CrawlSummary struct {
	RunID string
	ReconcileResult
	Projects       int
	ProjectsFailed int
	Skipped        int
}

// CrawlService walks a root folder and hands each project bundle to a Sink.
// Projects are processed one at a time; a failing project is logged and does
// not stop the crawl.
type CrawlService struct {
	fsmgr     FilesystemManager
	scanner   *Scanner
	extractor *Extractor
	sink      Sink
	store     Store
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewCrawlService wires a crawl. store may be nil for dry runs, in which case
// no run history is recorded.
func NewCrawlService(fsmgr FilesystemManager, opts Options, sink Sink, store Store, logger Logger, clock Clock, idgen IDGenerator) *CrawlService {
	scanner := NewScanner(fsmgr, opts, nil, logger)
	fingerprinter := NewFingerprinter(fsmgr, scanner, logger)
	return &CrawlService{
		fsmgr:     fsmgr,
		scanner:   scanner,
		extractor: NewExtractor(fsmgr, scanner, fingerprinter, clock, logger),
		sink:      sink,
		store:     store,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// Crawl processes every project folder directly under root. It returns an
// error only when the root cannot be read, the run cannot be recorded, or
// ctx ends; ErrCrawlTimedOut signals an expired deadline.
func (s *CrawlService) Crawl(ctx context.Context, root string) (*CrawlSummary, error) {
	absRoot, err := s.fsmgr.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root path: %w", err)
	}
	info, err := s.fsmgr.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}
	entries, err := s.fsmgr.ReadDir(absRoot)
	if err != nil {
		return nil, fmt.Errorf("reading root path: %w", err)
	}

	run, err := s.startRun(ctx, absRoot)
	if err != nil {
		return nil, err
	}
	summary := &CrawlSummary{}
	if run != nil {
		summary.RunID = run.ID
	}
	s.logger.Info("crawl started", "root", absRoot, "entries", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, s.interrupted(ctx, run, summary, err)
		}
		name := entry.Name()
		typ, err := entryType(s.fsmgr, absRoot, entry)
		if err != nil {
			s.logger.Warn("skipping unresolvable link", "path", filepath.Join(absRoot, name), "error", err)
			continue
		}
		if !typ.IsDir() {
			continue
		}
		if s.scanner.ShouldSkipFolder(name) {
			s.logger.Debug("skipping folder", "path", filepath.Join(absRoot, name))
			summary.Skipped++
			continue
		}
		if !IsProjectFolder(name) {
			s.logger.Debug("not a project folder", "path", filepath.Join(absRoot, name))
			summary.Skipped++
			continue
		}

		if err := s.crawlProject(ctx, filepath.Join(absRoot, name), summary); err != nil {
			return summary, s.interrupted(ctx, run, summary, err)
		}
	}

	s.finishRun(ctx, run, summary, RunSuccess)
	s.logger.Info("crawl finished", "root", absRoot, "projects", summary.Projects,
		"failed_projects", summary.ProjectsFailed, "inserted", summary.Inserted,
		"touched", summary.Touched, "failed_submissions", summary.Failed)
	return summary, nil
}

// crawlProject extracts and saves one project. Only context errors are
// returned; everything else is logged and counted.
func (s *CrawlService) crawlProject(ctx context.Context, path string, summary *CrawlSummary) error {
	number := filepath.Base(path)

	bundle, err := s.extractor.ExtractProject(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Error("extracting project", "project", number, "error", err)
		summary.ProjectsFailed++
		return nil
	}

	result, err := s.sink.Save(ctx, bundle)
	summary.ReconcileResult.Add(result)
	summary.Projects++
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Error("saving project", "project", number, "error", err)
		summary.ProjectsFailed++
	}
	return nil
}

func (s *CrawlService) interrupted(ctx context.Context, run *CrawlRun, summary *CrawlSummary, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		s.finishRun(ctx, run, summary, RunTimedOut)
		s.logger.Warn("crawl timed out", "projects", summary.Projects)
		return fmt.Errorf("%w after %d projects: %w", ErrCrawlTimedOut, summary.Projects, err)
	}
	s.finishRun(ctx, run, summary, RunError)
	return fmt.Errorf("crawl interrupted: %w", err)
}
