package core

import (
	"context"
	"errors"
)

// ErrForeignObject is returned by FileStorage.Delete when the URL was not issued by the storage.
var ErrForeignObject = errors.New("object does not belong to this storage")

// FileStorage stores public objects (images) and hands out their URLs.
type FileStorage interface {
	// Save stores data under key and returns its public URL.
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete removes the object behind a URL previously returned by Save.
	Delete(ctx context.Context, url string) error
}

// FileReleaser deletes the stored files their owners stopped using.
type FileReleaser interface {
	// Release deletes the file behind url when ownerID uploaded it and no row references it anymore.
	// Failures are logged, not returned.
	Release(ctx context.Context, ownerID, url string)
}

// NopReleaser keeps every file.
var NopReleaser FileReleaser = nopReleaser{}

type nopReleaser struct{}

func (nopReleaser) Release(context.Context, string, string) {}
