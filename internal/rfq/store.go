package rfq

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateSubmission is returned by Store.InsertSubmission when a document
// with the same versioning key already exists.
var ErrDuplicateSubmission = errors.New("submission version already exists")

// Store persists projects, suppliers, submissions and crawl runs.
//
// Lookups that find nothing return (nil, nil).
type Store interface {
	// UpsertProject replaces the project document keyed by project number.
	UpsertProject(ctx context.Context, p *Project) error

	// UpsertSuppliers inserts or overwrites suppliers keyed by
	// (project number, supplier name).
	UpsertSuppliers(ctx context.Context, suppliers []Supplier) error

	FindSubmission(ctx context.Context, key SubmissionKey) (*Submission, error)

	// InsertSubmission creates a new submission version.
	// Returns ErrDuplicateSubmission if the versioning key is taken.
	InsertSubmission(ctx context.Context, s *Submission) error

	// TouchSubmission sets last_checked on an existing submission and nothing else.
	TouchSubmission(ctx context.Context, id string, checked time.Time) error

	CreateCrawlRun(ctx context.Context, run *CrawlRun) error
	FinishCrawlRun(ctx context.Context, run *CrawlRun) error

	// ListCrawlRuns returns the most recent runs, newest first.
	ListCrawlRuns(ctx context.Context, limit int) ([]*CrawlRun, error)

	Close() error
}

// Snapshotter is implemented by stores that can copy themselves to a file.
type Snapshotter interface {
	BackupTo(destPath string) error
}
