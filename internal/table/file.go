package table

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// FileStore keeps the document on the local filesystem.
type FileStore struct {
	Path string
}

func (f FileStore) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Save writes to a temporary file in the same directory and renames it over
// the target path so readers never observe a partial document.
func (f FileStore) Save(ctx context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".lead-dispatch-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

func (f FileStore) String() string { return f.Path }
