package rfq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sink receives extracted bundles.
type Sink interface {
	Save(ctx context.Context, bundle *Bundle) (*ReconcileResult, error)
}

// ReconcileResult counts what happened to one bundle.
type ReconcileResult struct {
	Suppliers int
	Inserted  int
	Touched   int
	Failed    int
	// Planned counts submissions a dry run would have reconciled.
	Planned int
}

// Add accumulates other into r.
func (r *ReconcileResult) Add(other *ReconcileResult) {
	if other == nil {
		return
	}
	r.Suppliers += other.Suppliers
	r.Inserted += other.Inserted
	r.Touched += other.Touched
	r.Failed += other.Failed
	r.Planned += other.Planned
}

// SubmissionState is what the store knows about an extracted submission.
type SubmissionState int

const (
	// StateUnseen means no document has this versioning key.
	StateUnseen SubmissionState = iota
	// StateSeenUnchanged means a document with identical content exists.
	StateSeenUnchanged
)

func (s SubmissionState) String() string {
	switch s {
	case StateUnseen:
		return "unseen"
	case StateSeenUnchanged:
		return "seen_unchanged"
	default:
		return fmt.Sprintf("SubmissionState(%d)", int(s))
	}
}

// SubmissionOutcome is the write performed for a submission.
type SubmissionOutcome string

const (
	OutcomeInserted SubmissionOutcome = "inserted"
	OutcomeTouched  SubmissionOutcome = "touched"
)

// Reconciler merges bundles into a Store. Existing submission versions are
// never modified beyond last_checked.
type Reconciler struct {
	store  Store
	idgen  IDGenerator
	logger Logger
}

var _ Sink = (*Reconciler)(nil)

// NewReconciler creates a Reconciler writing to store.
func NewReconciler(store Store, idgen IDGenerator, logger Logger) *Reconciler {
	return &Reconciler{store: store, idgen: idgen, logger: logger}
}

// Save writes the project, then its suppliers, then each submission. A
// project or supplier failure stops the bundle; submission failures are
// counted and joined into the returned error. Writes already made are kept.
func (r *Reconciler) Save(ctx context.Context, bundle *Bundle) (*ReconcileResult, error) {
	result := &ReconcileResult{}
	number := bundle.Project.ProjectNumber

	if err := r.store.UpsertProject(ctx, &bundle.Project); err != nil {
		return result, fmt.Errorf("saving project %s: %w", number, err)
	}

	if len(bundle.Suppliers) > 0 {
		if err := r.store.UpsertSuppliers(ctx, bundle.Suppliers); err != nil {
			return result, fmt.Errorf("saving suppliers of project %s: %w", number, err)
		}
	}
	result.Suppliers = len(bundle.Suppliers)

	checked := bundle.Project.LastScanned
	var errs []error
	for i := range bundle.Submissions {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		sub := &bundle.Submissions[i]
		outcome, err := r.reconcile(ctx, sub, checked)
		if err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("submission %s/%s/%s: %w", number, sub.SupplierName, sub.FolderName, err))
			continue
		}
		switch outcome {
		case OutcomeInserted:
			result.Inserted++
		case OutcomeTouched:
			result.Touched++
		}
	}

	r.logger.Info("project saved", "project", number,
		"suppliers", result.Suppliers, "inserted", result.Inserted, "touched", result.Touched, "failed", result.Failed)
	return result, errors.Join(errs...)
}

func (r *Reconciler) reconcile(ctx context.Context, sub *Submission, checked time.Time) (SubmissionOutcome, error) {
	state, existing, err := r.classify(ctx, sub)
	if err != nil {
		return "", err
	}
	return r.transition(ctx, state, sub, existing, checked)
}

// classify looks up the submission's versioning key.
func (r *Reconciler) classify(ctx context.Context, sub *Submission) (SubmissionState, *Submission, error) {
	existing, err := r.store.FindSubmission(ctx, sub.Key())
	if err != nil {
		return StateUnseen, nil, fmt.Errorf("looking up submission: %w", err)
	}
	if existing == nil {
		return StateUnseen, nil, nil
	}
	return StateSeenUnchanged, existing, nil
}

// transition performs the single write allowed for state:
// unseen submissions are inserted, seen ones are touched.
func (r *Reconciler) transition(ctx context.Context, state SubmissionState, sub, existing *Submission, checked time.Time) (SubmissionOutcome, error) {
	switch state {
	case StateUnseen:
		return r.insert(ctx, sub, checked)
	case StateSeenUnchanged:
		if err := r.store.TouchSubmission(ctx, existing.ID, checked); err != nil {
			return "", fmt.Errorf("touching submission: %w", err)
		}
		sub.ID = existing.ID
		r.logger.Debug("submission unchanged", "project", sub.ProjectNumber, "supplier", sub.SupplierName,
			"folder", sub.FolderName, "hash", sub.ContentHash)
		return OutcomeTouched, nil
	default:
		return "", fmt.Errorf("unknown submission state %v", state)
	}
}

func (r *Reconciler) insert(ctx context.Context, sub *Submission, checked time.Time) (SubmissionOutcome, error) {
	sub.ID = r.idgen.New()
	sub.FirstSeen = checked

	err := r.store.InsertSubmission(ctx, sub)
	if errors.Is(err, ErrDuplicateSubmission) {
		// Another writer inserted the same version between lookup and insert.
		state, existing, cerr := r.classify(ctx, sub)
		if cerr != nil {
			return "", cerr
		}
		if state != StateSeenUnchanged {
			return "", err
		}
		return r.transition(ctx, state, sub, existing, checked)
	}
	if err != nil {
		return "", fmt.Errorf("inserting submission: %w", err)
	}

	r.logger.Info("new submission version", "project", sub.ProjectNumber, "supplier", sub.SupplierName,
		"type", string(sub.Type), "folder", sub.FolderName, "hash", sub.ContentHash)
	return OutcomeInserted, nil
}

// DryRunSink logs every document a Reconciler would write and writes nothing.
type DryRunSink struct {
	logger Logger
}

var _ Sink = (*DryRunSink)(nil)

// NewDryRunSink creates a DryRunSink.
func NewDryRunSink(logger Logger) *DryRunSink {
	return &DryRunSink{logger: logger}
}

func (d *DryRunSink) Save(_ context.Context, bundle *Bundle) (*ReconcileResult, error) {
	number := bundle.Project.ProjectNumber

	if err := d.log("projects", number, bundle.Project); err != nil {
		return nil, err
	}
	for _, s := range bundle.Suppliers {
		if err := d.log("suppliers", number, s); err != nil {
			return nil, err
		}
	}
	for _, s := range bundle.Submissions {
		if err := d.log("submissions", number, s); err != nil {
			return nil, err
		}
	}

	return &ReconcileResult{
		Suppliers: len(bundle.Suppliers),
		Planned:   len(bundle.Submissions),
	}, nil
}

func (d *DryRunSink) log(collection, projectNumber string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding %s document: %w", collection, err)
	}
	d.logger.Info("dry run", "collection", collection, "project", projectNumber, "document", string(data))
	return nil
}
