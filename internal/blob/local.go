package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// LocalBackend keeps objects as files under a directory.
type LocalBackend struct {
	dir string
}

// Local returns a backend rooted at dir. The directory is created on first write.
func Local(dir string) *LocalBackend {
	return &LocalBackend{dir: dir}
}

// Path returns the filesystem path for name.
func (b *LocalBackend) Path(name string) string {
	return filepath.Join(b.dir, name)
}

// Read implements Backend.
func (b *LocalBackend) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(ErrNotExist, "blob: read %s", name)
		}
		return nil, eris.Wrapf(err, "blob: read %s", name)
	}
	return data, nil
}

// Write implements Backend. The file is written to a temp sibling and renamed
// into place.
func (b *LocalBackend) Write(_ context.Context, name string, data []byte) error {
	path := b.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "blob: create dir for %s", name)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "blob: create temp for %s", name)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return eris.Wrapf(err, "blob: write %s", name)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return eris.Wrapf(err, "blob: close %s", name)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return eris.Wrapf(err, "blob: chmod %s", name)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return eris.Wrapf(err, "blob: rename %s", name)
	}
	return nil
}

// Append implements Backend.
func (b *LocalBackend) Append(_ context.Context, name string, data []byte) error {
	path := b.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "blob: create dir for %s", name)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "blob: open %s for append", name)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return eris.Wrapf(err, "blob: append %s", name)
	}
	return eris.Wrapf(f.Close(), "blob: close %s", name)
}
