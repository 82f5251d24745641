package app

import "rfq-tracker/internal/rfq"

// Operation tracks the CLI command being run. Only a completed non-dry crawl
// leaves a store worth snapshotting; RunID is set once the crawl has recorded
// its run.
type Operation struct {
	Command  string
	RootPath string
	DryRun   bool
	RunID    string
	Status   rfq.RunStatus
}

// NewOperation creates an operation that has not crawled yet.
func NewOperation(command string, dryRun bool) *Operation {
	return &Operation{
		Command: command,
		DryRun:  dryRun,
		Status:  rfq.RunSuccess,
	}
}

// Crawled returns true if a crawl wrote to the store during this operation.
func (op *Operation) Crawled() bool {
	return !op.DryRun && op.RunID != ""
}

// SnapshotName is the archive object name for this operation's snapshot.
func (op *Operation) SnapshotName(encrypted bool) string {
	name := snapshotPrefix + op.RunID + ".db"
	if encrypted {
		name += encryptedSuffix
	}
	return name
}

const (
	snapshotPrefix  = "snapshots/"
	encryptedSuffix = ".age"
)
