package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileKV implements KeyValue with one JSON file per key in a directory.
// It is the older, synchronous medium only read by the migration bridge.
type FileKV struct {
	dir string
}

// NewFileKV creates a file-backed medium rooted at dir
func NewFileKV(dir string) *FileKV {
	return &FileKV{dir: dir}
}

func (f *FileKV) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(f.dir, safe+".json")
}

// Get reads the file for key
func (f *FileKV) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set writes the file for key, creating the directory if needed
func (f *FileKV) Set(key string, value []byte) error {
	if err := os.MkdirAll(f.dir, 0700); err != nil {
		return fmt.Errorf("failed to create legacy directory: %w", err)
	}
	return os.WriteFile(f.path(key), value, 0600)
}

// Remove deletes the file for key
func (f *FileKV) Remove(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
