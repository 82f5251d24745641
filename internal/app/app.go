package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rfq-tracker/internal/archive"
	"rfq-tracker/internal/config"
	"rfq-tracker/internal/database"
	"rfq-tracker/internal/encryption"
	"rfq-tracker/internal/fs"
	"rfq-tracker/internal/query"
	"rfq-tracker/internal/rfq"
)

// Options adjust how an RFQApp is wired for one CLI invocation.
type Options struct {
	// Command names the CLI command, e.g. "crawl" or "report".
	Command string
	// DryRun crawls without opening the store.
	DryRun bool
	// Verbose forces debug logging.
	Verbose bool
	// Console receives log output in addition to the log file. nil disables it.
	Console io.Writer
}

// RFQApp is the application layer between the CLI and the crawl service.
// It constructs all dependencies from config and snapshots the store on
// Close after a crawl.
type RFQApp struct {
	cfg       *config.Config
	store     rfq.Store
	fsmgr     *fs.OSFilesystemManager
	encryptor rfq.Encryptor
	archive   rfq.Archive
	service   *rfq.CrawlService
	op        *Operation
	logger    rfq.Logger
	logFile   *os.File
}

// NewRFQApp creates a fully wired RFQApp. Failing to reach the store is
// fatal. The caller must call Close when done.
func NewRFQApp(ctx context.Context, cfg *config.Config, opts Options) (*RFQApp, error) {
	level := parseLevel(cfg.LogLevel)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	opID := time.Now().UTC().Format("20060102T150405Z")
	sl, logFile, err := newLogger(cfg.LogDir, opID, level, opts.Console)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	patterns := append([]string{}, cfg.Filesystem.Ignore...)
	if cfg.Filesystem.IgnoreFile != "" {
		extra, err := fs.ParseIgnoreFile(cfg.Filesystem.IgnoreFile)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("reading ignore file: %w", err)
		}
		patterns = append(patterns, extra...)
	}
	fsmgr := fs.NewOSFilesystemManager(patterns)

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	a := &RFQApp{
		cfg:       cfg,
		fsmgr:     fsmgr,
		encryptor: enc,
		op:        NewOperation(opts.Command, opts.DryRun),
		logger:    logger,
		logFile:   logFile,
	}

	crawlOpts := rfq.Options{
		FilterTags:     cfg.FilterTags,
		FileFilterTags: cfg.FileFilterTags,
		RFQFolderNames: cfg.RFQFolderNames,
	}

	if opts.DryRun {
		a.service = rfq.NewCrawlService(fsmgr, crawlOpts, rfq.NewDryRunSink(logger), nil,
			logger, rfq.RealClock{}, rfq.UUIDGenerator{})
		return a, nil
	}

	store, err := database.NewStoreFromConfig(ctx, cfg.Database)
	if err != nil {
		logger.Error("store unreachable", "type", cfg.Database.Type, "error", err)
		logFile.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.store = store
	a.service = rfq.NewCrawlService(fsmgr, crawlOpts,
		rfq.NewReconciler(store, rfq.UUIDGenerator{}, logger), store,
		logger, rfq.RealClock{}, rfq.UUIDGenerator{})
	return a, nil
}

// Crawl crawls rawRoot, or the configured root_path when rawRoot is empty.
func (a *RFQApp) Crawl(ctx context.Context, rawRoot string) (*rfq.CrawlSummary, error) {
	root := rawRoot
	if root == "" {
		root = a.cfg.RootPath
	}
	if root == "" {
		return nil, fmt.Errorf("no root path given and root_path not configured")
	}
	a.op.RootPath = root

	summary, err := a.service.Crawl(ctx, root)
	if summary != nil {
		a.op.RunID = summary.RunID
	}
	switch {
	case errors.Is(err, rfq.ErrCrawlTimedOut):
		a.op.Status = rfq.RunTimedOut
	case err != nil:
		a.op.Status = rfq.RunError
	}
	return summary, err
}

// History returns the most recent crawl runs.
func (a *RFQApp) History(ctx context.Context, limit int) ([]*rfq.CrawlRun, error) {
	if a.store == nil {
		return nil, fmt.Errorf("history is not available in a dry run")
	}
	return a.service.History(ctx, limit)
}

// Query returns the read-only query layer. Only SQLite stores support it.
func (a *RFQApp) Query() (*query.Reader, error) {
	sqliteStore, ok := a.store.(*database.SQLiteStore)
	if !ok {
		return nil, fmt.Errorf("reports require a sqlite database, have %q", a.cfg.Database.Type)
	}
	return query.NewReader(sqliteStore.DB())
}

// Archive returns the snapshot archive, creating and validating it on first use.
func (a *RFQApp) Archive(ctx context.Context) (rfq.Archive, error) {
	if a.archive != nil {
		return a.archive, nil
	}
	ar, err := archive.NewArchiveFromConfig(ctx, a.cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	if err := ar.ValidateSetup(); err != nil {
		return nil, fmt.Errorf("validating archive: %w", err)
	}
	a.archive = ar
	return ar, nil
}

// Encryptor returns the snapshot encryptor.
func (a *RFQApp) Encryptor() rfq.Encryptor {
	return a.encryptor
}

// SetupKeys generates the snapshot key pair.
func (a *RFQApp) SetupKeys(passphrase string) error {
	if err := a.encryptor.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up snapshot keys: %w", err)
	}
	a.logger.Info("snapshot keys created", "public_key", a.cfg.Encryption.PublicKeyPath)
	return nil
}

// ListSnapshots returns the snapshot names in the archive.
func (a *RFQApp) ListSnapshots(ctx context.Context) ([]string, error) {
	ar, err := a.Archive(ctx)
	if err != nil {
		return nil, err
	}
	names, err := ar.List(snapshotPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return names, nil
}

// RestoreSnapshot downloads snapshot name into destPath, which must not
// exist. Encrypted snapshots call passphrase to unlock the private key.
func (a *RFQApp) RestoreSnapshot(ctx context.Context, name, destPath string, passphrase func() (string, error)) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("destination already exists: %s", destPath)
	}
	if !strings.HasPrefix(name, snapshotPrefix) {
		name = snapshotPrefix + name
	}
	ar, err := a.Archive(ctx)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".rfq-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		tmp.Close()
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if strings.HasSuffix(name, encryptedSuffix) {
		err = a.fetchEncrypted(ar, name, tmp, passphrase)
	} else {
		err = ar.Get(name, tmp)
	}
	if err != nil {
		return fmt.Errorf("restoring %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("moving snapshot into place: %w", err)
	}

	success = true
	a.logger.Info("snapshot restored", "name", name, "path", destPath)
	return nil
}

func (a *RFQApp) fetchEncrypted(ar rfq.Archive, name string, w io.Writer, passphrase func() (string, error)) error {
	pass, err := passphrase()
	if err != nil {
		return fmt.Errorf("reading passphrase: %w", err)
	}
	dc, err := a.encryptor.Unlock(pass)
	if err != nil {
		return err
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(ar.Get(name, pw))
	}()
	err = dc.Decrypt(pr, w)
	pr.CloseWithError(err)
	return err
}

// Close snapshots the store after a non-dry crawl (when enabled) and
// releases all resources.
func (a *RFQApp) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	var snapshotPath string
	if a.op.Crawled() && a.cfg.Snapshot.Enabled {
		path, err := a.snapshotStore()
		keep(err)
		snapshotPath = path
	}
	if snapshotPath != "" {
		defer os.RemoveAll(filepath.Dir(snapshotPath))
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			keep(fmt.Errorf("closing store: %w", err))
		}
	}

	if snapshotPath != "" {
		if err := a.uploadSnapshot(snapshotPath); err != nil {
			a.logger.Error("uploading snapshot", "run", a.op.RunID, "error", err)
			keep(err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// snapshotStore copies the store into a fresh temp directory and returns the
// copy's path, or "" when the store cannot be snapshotted.
func (a *RFQApp) snapshotStore() (string, error) {
	snap, ok := a.store.(rfq.Snapshotter)
	if !ok {
		a.logger.Warn("store does not support snapshots, skipping", "type", a.cfg.Database.Type)
		return "", nil
	}

	dir, err := os.MkdirTemp("", "rfq-snapshot-*")
	if err != nil {
		return "", fmt.Errorf("creating snapshot directory: %w", err)
	}
	// VACUUM INTO requires that the target does not exist.
	path := filepath.Join(dir, database.SQLiteFileName)
	if err := snap.BackupTo(path); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("snapshotting store: %w", err)
	}
	return path, nil
}

func (a *RFQApp) uploadSnapshot(path string) error {
	ar, err := a.Archive(context.Background())
	if err != nil {
		return err
	}

	encrypt := a.cfg.Snapshot.Encrypt
	if encrypt {
		if !a.encryptor.IsConfigured() {
			return fmt.Errorf("snapshot encryption enabled but no keys found; run 'rfq snapshot keygen'")
		}
		encPath := path + encryptedSuffix
		if err := a.encryptFile(path, encPath); err != nil {
			return err
		}
		path = encPath
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	name := a.op.SnapshotName(encrypt)
	if err := ar.Put(name, f, info.Size()); err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}
	a.logger.Info("snapshot uploaded", "name", name, "size", info.Size())
	return nil
}

func (a *RFQApp) encryptFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	if err := a.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing encrypted snapshot: %w", err)
	}
	return nil
}
