package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/unkn0wn-root/patchcat/internal/errdef"
)

// FileBackend keeps one <name>.json document per workspace in dir.
type FileBackend struct {
	dir string
	mu  sync.Mutex
}

func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

func (f *FileBackend) path(name string) string {
	return filepath.Join(f.dir, sanitizeName(name)+".json")
}

func (f *FileBackend) Read(_ context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, errdef.Wrap(errdef.CodeFilesystem, err, "read snapshot")
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

func (f *FileBackend) Write(_ context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create snapshot dir")
	}
	return writeFileAtomic(f.path(name), data, 0o600)
}

func (f *FileBackend) Close() error { return nil }

// writeFileAtomic writes through a temp file and rename so a reader never sees a
// partial snapshot.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".patchcat-*.tmp")
	if err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create temp file")
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, errors.Join(err, tmp.Close()), "write temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, errors.Join(err, tmp.Close()), "chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "replace %s", filepath.Base(path))
	}
	return nil
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}
