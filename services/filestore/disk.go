// Package filestoresvc implements core.FileStorage on the local disk and on Azure Blob Storage.
package filestoresvc

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
)

// DiskStorage keeps the objects in a directory served by the API under its base URL.
type DiskStorage struct {
	dir     string
	baseURL string
}

var _ core.FileStorage = (*DiskStorage)(nil)

func NewDiskStorage(dir, baseURL string) (*DiskStorage, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(dir, "dir"),
		vala.StringNotEmpty(baseURL, "baseURL"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "validating disk storage options")
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage directory")
	}
	return &DiskStorage{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir is the root directory of the stored objects.
func (s *DiskStorage) Dir() string { return s.dir }

func (s *DiskStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", errors.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *DiskStorage) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
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
	return s.baseURL + "/" + strings.TrimPrefix(key, "/"), nil
}

func (s *DiskStorage) Delete(_ context.Context, url string) error {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return core.ErrForeignObject
	}
	p, err := s.path(strings.TrimPrefix(url, prefix))
	if err != nil {
		return core.ErrForeignObject
	}
	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing object")
	}
	return nil
}
