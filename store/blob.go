package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BlobStorer is the id-addressed byte store for template bytes. Rendered
// artifacts are never put here as state: they are pure functions of
// (template, answers) and recomputed per request.
type BlobStorer interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
}

type FileBlobStore struct {
	dir string
}

func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating blob directory: %w", err)
	}
	return &FileBlobStore{dir: dir}, nil
}

func (s *FileBlobStore) Put(key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *FileBlobStore) Get(key string) ([]byte, error) {
	return os.ReadFile(s.path(key))
}

func (s *FileBlobStore) path(key string) string {
	safe := make([]string, 0, 2)
	for _, part := range strings.Split(key, "/") {
		safe = append(safe, safeFilename(part))
	}
	return filepath.Join(append([]string{s.dir}, safe...)...)
}

func safeFilename(name string) string {
	var b strings.Builder
	for _, c := range name {
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '.' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
