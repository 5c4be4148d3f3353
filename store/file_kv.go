package store

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileKV keeps one JSON file per key under a state directory. It is the
// default backend for local single-user archives.
type FileKV struct {
	dir string
}

func NewFileKV(dir string) *FileKV {
	return &FileKV{dir: dir}
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

func (f *FileKV) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "fail to read state file")
	}
	return data, nil
}

func (f *FileKV) Set(key string, value []byte) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return errors.Wrap(err, "fail to create state dir")
	}
	return os.WriteFile(f.path(key), value, 0644)
}

func (f *FileKV) Delete(key string) error {
	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
