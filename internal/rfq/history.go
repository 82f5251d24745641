package rfq

import (
	"context"
	"fmt"
	"time"
)

// RunStatus is the final state of a crawl run.
type RunStatus string

const (
	RunRunning  RunStatus = "running"
	RunSuccess  RunStatus = "success"
	RunError    RunStatus = "error"
	RunTimedOut RunStatus = "timed_out"
)

// CrawlRun records one non-dry crawl invocation.
type CrawlRun struct {
	ID             string     `json:"id" bson:"_id"`
	RootPath       string     `json:"root_path" bson:"root_path"`
	StartedAt      time.Time  `json:"started_at" bson:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	Status         RunStatus  `json:"status" bson:"status"`
	Projects       int        `json:"projects" bson:"projects"`
	ProjectsFailed int        `json:"projects_failed" bson:"projects_failed"`
	Inserted       int        `json:"inserted" bson:"inserted"`
	Touched        int        `json:"touched" bson:"touched"`
	Failed         int        `json:"failed" bson:"failed"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *CrawlRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// History returns the most recent crawl runs, newest first.
func (s *CrawlService) History(ctx context.Context, limit int) ([]*CrawlRun, error) {
	if s.store == nil {
		return nil, fmt.Errorf("no store configured")
	}
	if limit <= 0 {
		limit = 50
	}
	runs, err := s.store.ListCrawlRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing crawl runs: %w", err)
	}
	return runs, nil
}

func (s *CrawlService) startRun(ctx context.Context, root string) (*CrawlRun, error) {
	if s.store == nil {
		return nil, nil
	}
	run := &CrawlRun{
		ID:        s.idgen.New(),
		RootPath:  root,
		StartedAt: s.clock.Now().UTC(),
		Status:    RunRunning,
	}
	// Recorded even when ctx has already expired, so the run ends as timed_out.
	if err := s.store.CreateCrawlRun(context.WithoutCancel(ctx), run); err != nil {
		return nil, fmt.Errorf("recording crawl run: %w", err)
	}
	return run, nil
}

func (s *CrawlService) finishRun(ctx context.Context, run *CrawlRun, summary *CrawlSummary, status RunStatus) {
	if run == nil {
		return
	}
	finished := s.clock.Now().UTC()
	run.FinishedAt = &finished
	run.Status = status
	run.Projects = summary.Projects
	run.ProjectsFailed = summary.ProjectsFailed
	run.Inserted = summary.Inserted
	run.Touched = summary.Touched
	run.Failed = summary.Failed

	// The crawl context may already be past its deadline.
	if err := s.store.FinishCrawlRun(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Error("finishing crawl run", "run", run.ID, "error", err)
	}
}
