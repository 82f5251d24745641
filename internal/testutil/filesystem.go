package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	rfqfs "rfq-tracker/internal/fs"
	"rfq-tracker/internal/rfq"
)

// MockFile represents a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	Ctime       time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Paths are
// absolute and slash-separated. Parent directories are created implicitly.
type MockFilesystemManager struct {
	files       map[string]*MockFile
	ignore      *rfqfs.IgnoreMatcher
	failOpen    map[string]error
	failReadDir map[string]error
	failCtime   map[string]error
	now         time.Time
}

// NewMockFilesystemManager creates a new mock filesystem containing only "/".
func NewMockFilesystemManager() *MockFilesystemManager {
	m := &MockFilesystemManager{
		files:       make(map[string]*MockFile),
		ignore:      rfqfs.NewIgnoreMatcher(nil),
		failOpen:    make(map[string]error),
		failReadDir: make(map[string]error),
		failCtime:   make(map[string]error),
		now:         time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	m.files["/"] = &MockFile{Permissions: fs.ModeDir | 0755, IsDirectory: true}
	return m
}

// SetIgnorePatterns replaces the ignore patterns used by IsIgnored.
func (m *MockFilesystemManager) SetIgnorePatterns(patterns []string) {
	m.ignore = rfqfs.NewIgnoreMatcher(patterns)
}

// AddFile adds a file, creating parent directories as needed.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	path = filepath.Clean(path)
	m.AddDirectory(filepath.Dir(path))
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     m.now,
		Ctime:       m.now,
	}
}

// AddDirectory adds a directory and its parents. Existing entries are kept.
func (m *MockFilesystemManager) AddDirectory(path string) {
	path = filepath.Clean(path)
	for p := path; ; p = filepath.Dir(p) {
		if _, ok := m.files[p]; !ok {
			m.files[p] = &MockFile{
				Permissions: fs.ModeDir | 0755,
				ModTime:     m.now,
				Ctime:       m.now,
				IsDirectory: true,
			}
		}
		if p == "/" || p == "." {
			break
		}
	}
}

// SetCreationTime sets the creation time reported for path.
func (m *MockFilesystemManager) SetCreationTime(path string, t time.Time) {
	if f, ok := m.files[filepath.Clean(path)]; ok {
		f.Ctime = t
	}
}

// FailOpen makes Open return err for path.
func (m *MockFilesystemManager) FailOpen(path string, err error) {
	m.failOpen[filepath.Clean(path)] = err
}

// FailReadDir makes ReadDir return err for path.
func (m *MockFilesystemManager) FailReadDir(path string, err error) {
	m.failReadDir[filepath.Clean(path)] = err
}

// FailCreationTime makes CreationTime return err for path.
func (m *MockFilesystemManager) FailCreationTime(path string, err error) {
	m.failCtime[filepath.Clean(path)] = err
}

// Copy duplicates every entry below src to dst, keeping contents.
func (m *MockFilesystemManager) Copy(src, dst string) {
	src, dst = filepath.Clean(src), filepath.Clean(dst)
	snapshot := make(map[string]*MockFile, len(m.files))
	for p, f := range m.files {
		snapshot[p] = f
	}
	for p, f := range snapshot {
		rel, err := filepath.Rel(src, p)
		if err != nil || rel == ".." || (len(rel) > 2 && rel[:3] == "../") {
			continue
		}
		target := filepath.Join(dst, rel)
		if f.IsDirectory {
			m.AddDirectory(target)
			continue
		}
		m.AddFile(target, append([]byte(nil), f.Content...))
	}
}

func (m *MockFilesystemManager) ReadDir(path string) ([]fs.DirEntry, error) {
	path = filepath.Clean(path)
	if err, ok := m.failReadDir[path]; ok {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: err}
	}
	dir, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: fs.ErrNotExist}
	}
	if !dir.IsDirectory {
		return nil, &fs.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
	}

	var entries []fs.DirEntry
	for p, f := range m.files {
		if p == path || filepath.Dir(p) != path {
			continue
		}
		entries = append(entries, fs.FileInfoToDirEntry(newMockFileInfo(p, f)))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	path = filepath.Clean(path)
	f, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return newMockFileInfo(path, f), nil
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	path = filepath.Clean(path)
	if err, ok := m.failOpen[path]; ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	f, ok := m.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

func (m *MockFilesystemManager) CreationTime(path string) (time.Time, error) {
	path = filepath.Clean(path)
	if err, ok := m.failCtime[path]; ok {
		return time.Time{}, err
	}
	f, ok := m.files[path]
	if !ok {
		return time.Time{}, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return f.Ctime, nil
}

func (m *MockFilesystemManager) Abs(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join("/", path)
	}
	return filepath.Clean(path), nil
}

func (m *MockFilesystemManager) IsIgnored(relativePath string) bool {
	return m.ignore.Match(relativePath)
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name string
	file *MockFile
}

func newMockFileInfo(path string, f *MockFile) *mockFileInfo {
	return &mockFileInfo{name: filepath.Base(path), file: f}
}

func (i *mockFileInfo) Name() string       { return i.name }
func (i *mockFileInfo) Size() int64        { return int64(len(i.file.Content)) }
func (i *mockFileInfo) Mode() fs.FileMode  { return i.file.Permissions }
func (i *mockFileInfo) ModTime() time.Time { return i.file.ModTime }
func (i *mockFileInfo) IsDir() bool        { return i.file.IsDirectory }
func (i *mockFileInfo) Sys() any           { return i.file }

// Compile-time check
var _ rfq.FilesystemManager = (*MockFilesystemManager)(nil)
