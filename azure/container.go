// Package azure implements blobstart.Container on Azure Blob Storage using the
// azblob SDK.
//
// Authentication is chosen from the Config in this order: connection string,
// shared key (account name + key), then azidentity's DefaultAzureCredential.
package azure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/sagarc03/blobstart"
)

// Config holds the account settings for the Azure backend.
type Config struct {
	AccountName      string
	AccountKey       string
	Endpoint         string // optional, derived from AccountName when empty
	ConnectionString string // optional, takes precedence over the other fields
}

// Endpoint returns the public blob service endpoint for an account.
func Endpoint(accountName string) string {
	return "https://" + accountName + ".blob.core.windows.net"
}

// ServiceURL returns the configured endpoint, or the public one for the account.
func (c Config) ServiceURL() string {
	if c.Endpoint != "" {
		return strings.TrimSuffix(c.Endpoint, "/")
	}
	return Endpoint(c.AccountName)
}

// Container is a blobstart.Container backed by an azblob container client.
type Container struct {
	name   string
	client *container.Client
}

var _ blobstart.Container = (*Container)(nil)

// New builds a container client for name. No request is sent until the first
// operation, so missing credentials surface on first use.
func New(cfg Config, name string) (*Container, error) {
	client, err := newServiceClient(cfg)
	if err != nil {
		return nil, err
	}

	return &Container{
		name:   name,
		client: client.ServiceClient().NewContainerClient(name),
	}, nil
}

func newServiceClient(cfg Config) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client from connection string: %w", err)
		}
		slog.Debug("using connection string authentication for Azure Storage")
		return client, nil
	}

	serviceURL := cfg.ServiceURL()

	if cfg.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create credential: %w", err)
		}

		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client: %w", err)
		}
		slog.Debug("using shared key authentication for Azure Storage", "endpoint", serviceURL)
		return client, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create default credential: %w", err)
	}

	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client with OAuth: %w", err)
	}
	slog.Debug("using DefaultAzureCredential for Azure Storage", "endpoint", serviceURL)
	return client, nil
}

func (c *Container) Name() string { return c.name }

func (c *Container) URL() string { return c.client.URL() }

func (c *Container) BlobURL(name string) string {
	return c.client.NewBlobClient(name).URL()
}

func (c *Container) Exists(ctx context.Context) (bool, error) {
	_, err := c.client.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.ContainerBeingDeleted) {
		return false, nil
	}
	return false, fmt.Errorf("get container properties: %w", err)
}

func (c *Container) Create(ctx context.Context) error {
	_, err := c.client.Create(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return blobstart.ErrContainerExists
		}
		return fmt.Errorf("create container: %w", err)
	}
	return nil
}

func (c *Container) UploadFile(ctx context.Context, name, path string) error {
	f, err := os.Open(path) //#nosec G304 -- path is user-provided input
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := c.client.NewBlockBlobClient(name).UploadFile(ctx, f, nil); err != nil {
		return fmt.Errorf("upload blob %s: %w", name, err)
	}
	return nil
}

func (c *Container) DownloadFile(ctx context.Context, name, path string) (int64, error) {
	f, err := os.Create(path) //#nosec G304 -- path is derived from the download directory
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := c.client.NewBlobClient(name).DownloadFile(ctx, f, nil)
	closeErr := f.Close()
	if err != nil {
		_ = os.Remove(path)
		return 0, mapBlobError("download blob", name, err)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close file: %w", closeErr)
	}
	return n, nil
}

func (c *Container) List(ctx context.Context) ([]blobstart.BlobInfo, error) {
	var blobs []blobstart.BlobInfo

	pager := c.client.NewListBlobsFlatPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil, fmt.Errorf("container %s: %w", c.name, blobstart.ErrNotFound)
			}
			return nil, fmt.Errorf("list blobs: %w", err)
		}
		if page.Segment == nil {
			continue
		}

		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}
			blobs = append(blobs, toBlobInfo(item))
		}
	}

	return blobs, nil
}

func (c *Container) Delete(ctx context.Context, name string) error {
	if _, err := c.client.NewBlobClient(name).Delete(ctx, nil); err != nil {
		return mapBlobError("delete blob", name, err)
	}
	return nil
}

func toBlobInfo(item *container.BlobItem) blobstart.BlobInfo {
	info := blobstart.BlobInfo{Name: *item.Name}

	p := item.Properties
	if p == nil {
		return info
	}
	if p.ContentLength != nil {
		info.Size = *p.ContentLength
	}
	if p.ContentType != nil {
		info.ContentType = *p.ContentType
	}
	if p.ETag != nil {
		info.ETag = strings.Trim(string(*p.ETag), `"`)
	}
	if p.LastModified != nil {
		info.LastModified = *p.LastModified
	}
	return info
}

func mapBlobError(op, name string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("%s %s: %w", op, name, errors.Join(blobstart.ErrNotFound, err))
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}
