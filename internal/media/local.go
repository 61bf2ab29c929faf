package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var _ Store = (*LocalStore)(nil)

// LocalStore keeps objects on the local filesystem and serves them under a
// URL prefix.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Put writes content to the file named by key.
func (s *LocalStore) Put(_ context.Context, key string, content io.Reader, _ string) (string, error) {
	full := s.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %q: %w", key, err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("creating file %q: %w", key, err)
	}
	if _, err := io.Copy(f, content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing file %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing file %q: %w", key, err)
	}
	return s.URL(key), nil
}

// Delete removes the file named by key. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file %q: %w", key, err)
	}
	return nil
}

// URL returns the public URL of key.
func (s *LocalStore) URL(key string) string {
	return s.baseURL + path.Clean("/"+key)
}

// path maps key to a file under root. Cleaning against "/" keeps ".."
// segments from escaping the root.
func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+key)))
}
