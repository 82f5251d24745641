package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"rfq-tracker/internal/database/migrations"
	"rfq-tracker/internal/rfq"
)

// SQLiteStore implements rfq.Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens a SQLite store. path can be a file path or ":memory:".
// The schema is not migrated; call Migrate or CheckMigrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// DB exposes the underlying connection for the read-only query layer.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Migrate applies pending schema migrations.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the schema is up to date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// Projects

func (s *SQLiteStore) UpsertProject(ctx context.Context, p *rfq.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (project_number, path, last_scanned)
		VALUES (?, ?, ?)
		ON CONFLICT (project_number) DO UPDATE SET
			path = excluded.path,
			last_scanned = excluded.last_scanned`,
		p.ProjectNumber, p.Path, p.LastScanned.UTC())
	if err != nil {
		return fmt.Errorf("upserting project: %w", err)
	}
	return nil
}

// FindProject returns the project with the given number.
func (s *SQLiteStore) FindProject(ctx context.Context, number string) (*rfq.Project, error) {
	var p rfq.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT project_number, path, last_scanned FROM projects WHERE project_number = ?`, number,
	).Scan(&p.ProjectNumber, &p.Path, &p.LastScanned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding project: %w", err)
	}
	return &p, nil
}

// Suppliers

// UpsertSuppliers writes all suppliers in one transaction. A supplier's
// category survives an upsert that does not carry one.
func (s *SQLiteStore) UpsertSuppliers(ctx context.Context, suppliers []rfq.Supplier) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO suppliers (project_number, supplier_name, partner_type, path, category)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (project_number, supplier_name) DO UPDATE SET
			partner_type = excluded.partner_type,
			path = excluded.path,
			category = COALESCE(excluded.category, suppliers.category)`)
	if err != nil {
		return fmt.Errorf("preparing supplier upsert: %w", err)
	}
	defer stmt.Close()

	for _, sup := range suppliers {
		if _, err := stmt.ExecContext(ctx,
			sup.ProjectNumber, sup.SupplierName, nullPartnerType(sup.PartnerType), sup.Path, nullString(sup.Category),
		); err != nil {
			return fmt.Errorf("upserting supplier %s: %w", sup.SupplierName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing suppliers: %w", err)
	}
	return nil
}

// FindSupplier returns one supplier of a project.
func (s *SQLiteStore) FindSupplier(ctx context.Context, projectNumber, name string) (*rfq.Supplier, error) {
	var (
		sup         rfq.Supplier
		partnerType sql.NullString
		category    sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT project_number, supplier_name, partner_type, path, category
		FROM suppliers WHERE project_number = ? AND supplier_name = ?`, projectNumber, name,
	).Scan(&sup.ProjectNumber, &sup.SupplierName, &partnerType, &sup.Path, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding supplier: %w", err)
	}
	sup.PartnerType = partnerTypeFromNull(partnerType)
	if category.Valid {
		sup.Category = &category.String
	}
	return &sup, nil
}

// Submissions

const submissionColumns = `id, project_number, supplier_name, type, folder_name, folder_path,
	date, content_hash, files, partner_type, first_seen, last_checked`

func (s *SQLiteStore) FindSubmission(ctx context.Context, key rfq.SubmissionKey) (*rfq.Submission, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE project_number = ? AND supplier_name = ? AND folder_name = ? AND content_hash = ?`,
		key.ProjectNumber, key.SupplierName, key.FolderName, key.ContentHash)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding submission: %w", err)
	}
	return sub, nil
}

func (s *SQLiteStore) InsertSubmission(ctx context.Context, sub *rfq.Submission) error {
	files, err := json.Marshal(nonNilFiles(sub.Files))
	if err != nil {
		return fmt.Errorf("encoding file list: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.ProjectNumber, sub.SupplierName, string(sub.Type), sub.FolderName, sub.FolderPath,
		sub.Date.UTC(), sub.ContentHash, string(files), nullPartnerType(sub.PartnerType),
		sub.FirstSeen.UTC(), nullTime(sub.LastChecked))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("inserting submission: %w", rfq.ErrDuplicateSubmission)
		}
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TouchSubmission(ctx context.Context, id string, checked time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE submissions SET last_checked = ? WHERE id = ?`, checked.UTC(), id)
	if err != nil {
		return fmt.Errorf("touching submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touching submission: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

// ListSubmissions returns all versions for a supplier, newest first.
func (s *SQLiteStore) ListSubmissions(ctx context.Context, projectNumber, supplierName string) ([]*rfq.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+submissionColumns+` FROM submissions
		WHERE project_number = ? AND supplier_name = ?
		ORDER BY date DESC, first_seen DESC`, projectNumber, supplierName)
	if err != nil {
		return nil, fmt.Errorf("listing submissions: %w", err)
	}
	defer rows.Close()

	var subs []*rfq.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CountSubmissions returns the number of submission documents.
func (s *SQLiteStore) CountSubmissions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting submissions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*rfq.Submission, error) {
	var (
		sub         rfq.Submission
		typ         string
		files       string
		partnerType sql.NullString
		lastChecked sql.NullTime
	)
	if err := row.Scan(&sub.ID, &sub.ProjectNumber, &sub.SupplierName, &typ, &sub.FolderName, &sub.FolderPath,
		&sub.Date, &sub.ContentHash, &files, &partnerType, &sub.FirstSeen, &lastChecked); err != nil {
		return nil, err
	}
	sub.Type = rfq.Direction(typ)
	sub.PartnerType = partnerTypeFromNull(partnerType)
	if lastChecked.Valid {
		t := lastChecked.Time
		sub.LastChecked = &t
	}
	if err := json.Unmarshal([]byte(files), &sub.Files); err != nil {
		return nil, fmt.Errorf("decoding file list: %w", err)
	}
	return &sub, nil
}

// Crawl runs

func (s *SQLiteStore) CreateCrawlRun(ctx context.Context, run *rfq.CrawlRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, root_path, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.ID, run.RootPath, run.StartedAt.UTC(), string(run.Status))
	if err != nil {
		return fmt.Errorf("creating crawl run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FinishCrawlRun(ctx context.Context, run *rfq.CrawlRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_runs SET
			finished_at = ?, status = ?, projects = ?, projects_failed = ?,
			inserted = ?, touched = ?, failed = ?
		WHERE id = ?`,
		nullTime(run.FinishedAt), string(run.Status), run.Projects, run.ProjectsFailed,
		run.Inserted, run.Touched, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("finishing crawl run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCrawlRuns(ctx context.Context, limit int) ([]*rfq.CrawlRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root_path, started_at, finished_at, status, projects, projects_failed, inserted, touched, failed
		FROM crawl_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing crawl runs: %w", err)
	}
	defer rows.Close()

	var runs []*rfq.CrawlRun
	for rows.Next() {
		var (
			run      rfq.CrawlRun
			finished sql.NullTime
			status   string
		)
		if err := rows.Scan(&run.ID, &run.RootPath, &run.StartedAt, &finished, &status,
			&run.Projects, &run.ProjectsFailed, &run.Inserted, &run.Touched, &run.Failed); err != nil {
			return nil, fmt.Errorf("scanning crawl run: %w", err)
		}
		run.Status = rfq.RunStatus(status)
		if finished.Valid {
			t := finished.Time
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullPartnerType(p *rfq.PartnerType) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func partnerTypeFromNull(ns sql.NullString) *rfq.PartnerType {
	if !ns.Valid {
		return nil
	}
	return rfq.PartnerTypePtr(rfq.PartnerType(ns.String))
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nonNilFiles(files []string) []string {
	if files == nil {
		return []string{}
	}
	return files
}

// Compile-time checks
var (
	_ rfq.Store       = (*SQLiteStore)(nil)
	_ rfq.Snapshotter = (*SQLiteStore)(nil)
)
