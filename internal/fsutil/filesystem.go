// Package fsutil provides a small filesystem abstraction so ingestion and
// CSV persistence can run against an in-memory filesystem in tests.
package fsutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileSystem abstracts the filesystem operations used by the sonar
// ingestion and persistence code. Use OSFileSystem in production and
// MemoryFileSystem in tests.
type FileSystem interface {
	// Open opens the named file for reading.
	Open(name string) (io.ReadCloser, error)

	// Create creates or truncates the named file for writing.
	Create(name string) (io.WriteCloser, error)

	// ListFiles returns the names (not paths) of regular files in dir,
	// sorted lexically.
	ListFiles(dir string) ([]string, error)

	// Exists reports whether the named file or directory exists.
	Exists(name string) bool
}

// OSFileSystem implements FileSystem using the os package.
type OSFileSystem struct{}

// Open opens the named file.
func (OSFileSystem) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Create creates the named file.
func (OSFileSystem) Create(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// ListFiles lists regular files in dir.
func (OSFileSystem) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists checks if a file or directory exists.
func (OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// MemoryFileSystem is an in-memory FileSystem for tests.
type MemoryFileSystem struct {
	mu    sync.Mutex
	files map[string][]byte
}

// NewMemoryFileSystem returns an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{files: make(map[string][]byte)}
}

// WriteFile stores data under name, replacing any previous contents.
func (m *MemoryFileSystem) WriteFile(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(name)] = append([]byte(nil), data...)
}

// ReadFile returns the stored contents of name.
func (m *MemoryFileSystem) ReadFile(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[filepath.Clean(name)]
	return data, ok
}

// Open opens the named file.
func (m *MemoryFileSystem) Open(name string) (io.ReadCloser, error) {
	data, ok := m.ReadFile(name)
	if !ok {
		return nil, fmt.Errorf("open %s: %w", name, os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Create creates the named file. Contents are committed on Close.
func (m *MemoryFileSystem) Create(name string) (io.WriteCloser, error) {
	return &memoryFile{fs: m, name: name}, nil
}

// ListFiles lists files whose directory component matches dir.
func (m *MemoryFileSystem) ListFiles(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clean := filepath.Clean(dir)
	var names []string
	for path := range m.files {
		if filepath.Dir(path) == clean {
			names = append(names, filepath.Base(path))
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("list %s: %w", dir, os.ErrNotExist)
	}
	sort.Strings(names)
	return names, nil
}

// Exists checks if a file exists.
func (m *MemoryFileSystem) Exists(name string) bool {
	_, ok := m.ReadFile(name)
	return ok
}

type memoryFile struct {
	fs   *MemoryFileSystem
	name string
	buf  bytes.Buffer
}

func (f *memoryFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *memoryFile) Close() error {
	f.fs.WriteFile(f.name, f.buf.Bytes())
	return nil
}
