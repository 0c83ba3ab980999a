// Package objstore holds uploaded files: on the local filesystem or in Azure Blob Storage.
package objstore

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

var ErrInvalidKey = errors.New("objstore: invalid key")

// FS stores objects under a directory served at baseURL (see the /media route of the API).
type FS struct {
	dir     string
	baseURL string
}

var _ core.ObjectStore = (*FS)(nil)

func NewFS(dir, baseURL string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating media directory")
	}
	return &FS{dir: dir, baseURL: baseURL}, nil
}

func (s *FS) Dir() string { return s.dir }

func (s *FS) path(key string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

func (s *FS) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errors.Wrap(err, "creating object directory")
	}
	if err = os.WriteFile(p, data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing object")
	}
	return s.baseURL + "/" + path.Clean(key), nil
}

func (s *FS) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing object")
	}
	return nil
}
