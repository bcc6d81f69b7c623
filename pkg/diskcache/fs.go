package diskcache

import (
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// FileInfo describes one cache file on disk.
type FileInfo struct {
	// Path is the file's full path.
	Path string

	// CreatedAt is when the entry was written. The engine rewrites a file
	// on every store, so the file's modification time is the write time;
	// birth time is not portably reachable and is not needed.
	CreatedAt time.Time

	// Size is the file size in bytes.
	Size int64
}

// FileSystem is the storage capability the engine consumes. The engine never
// touches raw storage directly; injecting a FileSystem is how tests run the
// whole engine against an in-memory disk.
type FileSystem interface {
	// CreateDir creates the directory and any missing parents.
	CreateDir(path string) error

	// Exists reports whether a file or directory exists at path.
	Exists(path string) bool

	// WriteFile creates or overwrites the file with data.
	WriteFile(path string, data []byte) error

	// ReadFile returns the file's contents.
	ReadFile(path string) ([]byte, error)

	// Remove deletes a single file.
	Remove(path string) error

	// RemoveAll deletes a directory tree.
	RemoveAll(path string) error

	// Stat returns the file's attributes.
	Stat(path string) (FileInfo, error)

	// ListFiles returns every regular file directly under dir whose name
	// carries the given extension (without the leading dot).
	ListFiles(dir, ext string) ([]FileInfo, error)
}

// aferoFS adapts an afero filesystem to the FileSystem capability.
type aferoFS struct {
	fs afero.Fs
}

// NewFileSystem wraps an afero filesystem as a FileSystem.
func NewFileSystem(fs afero.Fs) FileSystem {
	return &aferoFS{fs: fs}
}

// NewOSFileSystem returns the production FileSystem backed by the real disk.
func NewOSFileSystem() FileSystem {
	return NewFileSystem(afero.NewOsFs())
}

func (a *aferoFS) CreateDir(path string) error {
	return a.fs.MkdirAll(path, 0o755)
}

func (a *aferoFS) Exists(path string) bool {
	ok, err := afero.Exists(a.fs, path)
	return err == nil && ok
}

func (a *aferoFS) WriteFile(path string, data []byte) error {
	return afero.WriteFile(a.fs, path, data, 0o644)
}

func (a *aferoFS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

func (a *aferoFS) Remove(path string) error {
	return a.fs.Remove(path)
}

func (a *aferoFS) RemoveAll(path string) error {
	return a.fs.RemoveAll(path)
}

func (a *aferoFS) Stat(path string) (FileInfo, error) {
	info, err := a.fs.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Path: path, CreatedAt: info.ModTime(), Size: info.Size()}, nil
}

func (a *aferoFS) ListFiles(dir, ext string) ([]FileInfo, error) {
	entries, err := afero.ReadDir(a.fs, dir)
	if err != nil {
		return nil, err
	}

	suffix := "." + ext
	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != suffix {
			continue
		}
		files = append(files, FileInfo{
			Path:      filepath.Join(dir, entry.Name()),
			CreatedAt: entry.ModTime(),
			Size:      entry.Size(),
		})
	}
	return files, nil
}
