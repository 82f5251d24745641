package rfq

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
)

// hashChunkSize bounds the memory used per file while hashing.
const hashChunkSize = 64 * 1024

// EmptyContentHash is the fingerprint of a folder with no files.
var EmptyContentHash = func() string {
	sum := sha256.Sum256(nil)
	return hex.EncodeToString(sum[:])
}()

// FolderDigest is the content identity of a submission folder.
type FolderDigest struct {
	Hash string
	// Files are the absolute paths that contributed to Hash, sorted.
	Files []string
}

// fileRecord is one entry of the canonical serialization. Fields are
// declared in sorted key order.
type fileRecord struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// Fingerprinter computes content hashes of submission folders.
type Fingerprinter struct {
	fsmgr   FilesystemManager
	scanner *Scanner
	logger  Logger
}

// NewFingerprinter creates a Fingerprinter. The scanner supplies the file
// filter policy.
func NewFingerprinter(fsmgr FilesystemManager, scanner *Scanner, logger Logger) *Fingerprinter {
	return &Fingerprinter{fsmgr: fsmgr, scanner: scanner, logger: logger}
}

// Fingerprint hashes every non-filtered file below folder. The result depends
// only on relative paths and file contents. Files that cannot be read are
// logged and left out.
func (f *Fingerprinter) Fingerprint(folder string) (*FolderDigest, error) {
	absFolder, err := f.fsmgr.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving folder: %w", err)
	}

	var rels []string
	if err := f.collect(absFolder, "", nil, &rels); err != nil {
		return nil, fmt.Errorf("listing %s: %w", absFolder, err)
	}
	slices.Sort(rels)

	buf := make([]byte, hashChunkSize)
	records := make([]fileRecord, 0, len(rels))
	files := make([]string, 0, len(rels))
	for _, rel := range rels {
		abs := filepath.Join(absFolder, filepath.FromSlash(rel))
		sum, err := f.hashFile(abs, buf)
		if err != nil {
			f.logger.Warn("skipping unreadable file", "path", abs, "error", err)
			continue
		}
		records = append(records, fileRecord{Path: rel, SHA256: sum})
		files = append(files, abs)
	}

	if len(records) == 0 {
		return &FolderDigest{Hash: EmptyContentHash, Files: files}, nil
	}

	canonical, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("serializing file records: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return &FolderDigest{Hash: hex.EncodeToString(sum[:]), Files: files}, nil
}

// collect appends the slash-separated relative paths of regular files below
// dir. Symlinks are followed unless they point back at a folder already being
// walked. Unreadable subdirectories are logged and skipped; only the
// top-level folder being unreadable is an error.
func (f *Fingerprinter) collect(dir, rel string, ancestors []fs.FileInfo, out *[]string) error {
	entries, err := f.fsmgr.ReadDir(dir)
	if err != nil {
		if rel == "" {
			return err
		}
		f.logger.Warn("skipping unreadable folder", "path", dir, "error", err)
		return nil
	}
	if info, err := f.fsmgr.Stat(dir); err == nil {
		ancestors = append(ancestors, info)
	}

	for _, e := range entries {
		childRel := path.Join(rel, e.Name())
		childPath := filepath.Join(dir, e.Name())

		typ, err := entryType(f.fsmgr, dir, e)
		if err != nil {
			f.logger.Warn("skipping unresolvable link", "path", childPath, "error", err)
			continue
		}

		switch {
		case typ.IsDir():
			if e.Type()&fs.ModeSymlink != 0 && f.loops(childPath, ancestors) {
				f.logger.Warn("skipping symlink loop", "path", childPath)
				continue
			}
			if err := f.collect(childPath, childRel, ancestors, out); err != nil {
				return err
			}
		case typ.IsRegular():
			if f.scanner.ShouldSkipFile(e.Name()) || f.fsmgr.IsIgnored(childRel) {
				continue
			}
			*out = append(*out, childRel)
		default:
			f.logger.Warn("skipping non-regular file", "path", childPath, "mode", typ.String())
		}
	}
	return nil
}

// loops reports whether the folder a link points to is one of ancestors.
func (f *Fingerprinter) loops(link string, ancestors []fs.FileInfo) bool {
	target, err := f.fsmgr.Stat(link)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(ancestors, func(a fs.FileInfo) bool { return os.SameFile(a, target) })
}

func (f *Fingerprinter) hashFile(name string, buf []byte) (string, error) {
	r, err := f.fsmgr.Open(name)
	if err != nil {
		return "", err
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
