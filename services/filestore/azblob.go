package filestoresvc

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
)

// AzureBlobStorage keeps the objects in a public Azure Blob Storage container.
type AzureBlobStorage struct {
	client    *azblob.Client
	container string
	baseURL   string
}

var _ core.FileStorage = (*AzureBlobStorage)(nil)

func NewAzureBlobStorage(connString, container string) (*AzureBlobStorage, error) {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(connString, "connString"),
		vala.StringNotEmpty(container, "container"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "validating azure storage options")
	}

	client, err := azblob.NewClientFromConnectionString(connString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating azure blob client")
	}
	return &AzureBlobStorage{
		client:    client,
		container: container,
		baseURL:   strings.TrimSuffix(client.URL(), "/") + "/" + container,
	}, nil
}

// EnsureContainer creates the container when it does not exist yet.
func (s *AzureBlobStorage) EnsureContainer(ctx context.Context) error {
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return errors.Wrap(err, "creating container")
	}
	return nil
}

func (s *AzureBlobStorage) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	_, err := s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", errors.Wrap(err, "uploading blob")
	}
	return s.baseURL + "/" + key, nil
}

func (s *AzureBlobStorage) Delete(ctx context.Context, url string) error {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return core.ErrForeignObject
	}
	_, err := s.client.DeleteBlob(ctx, s.container, strings.TrimPrefix(url, prefix), nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return errors.Wrap(err, "deleting blob")
	}
	return nil
}
