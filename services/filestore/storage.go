package filestoresvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
)

// Backends
const (
	BackendDisk   = "disk"
	BackendAzblob = "azblob"
)

// New returns the storage selected by the configuration.
func New(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Backend {
	case BackendDisk, "":
		return NewDiskStorage(conf.Storage.Dir, conf.Storage.BaseURL)
	case BackendAzblob:
		s, err := NewAzureBlobStorage(conf.Storage.AzureConnString, conf.Storage.AzureContainer)
		if err != nil {
			return nil, err
		}
		if err = s.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}
