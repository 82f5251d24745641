package rfq

import (
	"io"
	"io/fs"
	"path/filepath"
	"time"
)

// FilesystemManager abstracts the read-only filesystem access the crawler needs,
// so scanning and hashing can be tested without touching disk.
type FilesystemManager interface {
	// ReadDir returns the entries of a directory. Order is not significant.
	ReadDir(path string) ([]fs.DirEntry, error)

	Stat(path string) (fs.FileInfo, error)

	// Open opens a regular file for reading.
	Open(path string) (io.ReadCloser, error)

	// CreationTime returns the best creation timestamp the platform offers.
	CreationTime(path string) (time.Time, error)

	// Abs resolves path to a clean absolute path.
	Abs(path string) (string, error)

	// IsIgnored reports whether a file, given relative to the folder being
	// listed, matches a configured ignore pattern.
	IsIgnored(relativePath string) bool
}

// entryType returns the file type of e, resolving a symlink to the type of
// its target. A dangling link returns the Stat error.
func entryType(fsmgr FilesystemManager, dir string, e fs.DirEntry) (fs.FileMode, error) {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.Type(), nil
	}
	info, err := fsmgr.Stat(filepath.Join(dir, e.Name()))
	if err != nil {
		return 0, err
	}
	return info.Mode().Type(), nil
}
