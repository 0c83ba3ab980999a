package objstore

import (
	"context"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

// blobClient is the part of *azblob.Client used here.
type blobClient interface {
	URL() string
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
	DeleteBlob(ctx context.Context, containerName, blobName string, o *azblob.DeleteBlobOptions) (azblob.DeleteBlobResponse, error)
}

// AzureBlob stores objects as blobs of a publicly readable container.
type AzureBlob struct {
	client    blobClient
	container string
}

var _ core.ObjectStore = (*AzureBlob)(nil)

func NewAzureBlob(ctx context.Context, connectionString, container string) (*AzureBlob, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating blob client")
	}
	return newAzureBlob(ctx, client, container)
}

func newAzureBlob(ctx context.Context, client blobClient, container string) (*AzureBlob, error) {
	_, err := client.CreateContainer(ctx, container, &azblob.CreateContainerOptions{
		Access: to.Ptr(azblob.PublicAccessTypeBlob),
	})
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, errors.Wrap(err, "creating blob container")
	}
	return &AzureBlob{client: client, container: container}, nil
}

func (s *AzureBlob) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	_, err := s.client.UploadBuffer(ctx, s.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(contentType)},
	})
	if err != nil {
		return "", errors.Wrap(err, "uploading blob")
	}
	return strings.TrimRight(s.client.URL(), "/") + "/" + s.container + "/" + key, nil
}

func (s *AzureBlob) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, key, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return errors.Wrap(err, "deleting blob")
	}
	return nil
}
