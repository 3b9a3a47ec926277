// Package s3 implements blobstart.Container on any S3-compatible service
// using minio-go. A container maps to a bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sagarc03/blobstart"
)

// DefaultRegion is used when no region is configured. Setting a region up
// front avoids a bucket-location lookup before every first request.
const DefaultRegion = "us-east-1"

// Config holds connection settings for an S3-compatible endpoint.
type Config struct {
	Endpoint  string // host[:port] or URL; the scheme, if present, decides Secure
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

// Container is a blobstart.Container backed by a single bucket.
type Container struct {
	bucket string
	client *minio.Client
}

var _ blobstart.Container = (*Container)(nil)

// New creates a minio client for the endpoint. No request is sent until the
// first operation.
func New(cfg Config, bucket string) (*Container, error) {
	host, secure, err := splitEndpoint(cfg.Endpoint, cfg.Secure)
	if err != nil {
		return nil, err
	}

	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &Container{bucket: bucket, client: client}, nil
}

func splitEndpoint(endpoint string, secure bool) (string, bool, error) {
	if endpoint == "" {
		return "", false, fmt.Errorf("s3 endpoint: %w", blobstart.ErrInvalidInput)
	}
	if !strings.Contains(endpoint, "://") {
		return endpoint, secure, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, fmt.Errorf("s3 endpoint scheme %q: %w", u.Scheme, blobstart.ErrInvalidInput)
	}
}

func (c *Container) Name() string { return c.bucket }

func (c *Container) URL() string {
	return strings.TrimSuffix(c.client.EndpointURL().String(), "/") + "/" + c.bucket
}

func (c *Container) BlobURL(name string) string {
	return c.URL() + "/" + name
}

func (c *Container) Exists(ctx context.Context) (bool, error) {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return false, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	return exists, nil
}

func (c *Container) Create(ctx context.Context) error {
	if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return blobstart.ErrContainerExists
		}
		return fmt.Errorf("failed to create bucket %q: %w", c.bucket, err)
	}
	return nil
}

func (c *Container) UploadFile(ctx context.Context, name, path string) error {
	_, err := c.client.FPutObject(ctx, c.bucket, name, path, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to upload object %q to bucket %q: %w", name, c.bucket, err)
	}
	return nil
}

func (c *Container) DownloadFile(ctx context.Context, name, path string) (int64, error) {
	if err := c.client.FGetObject(ctx, c.bucket, name, path, minio.GetObjectOptions{}); err != nil {
		return 0, mapObjectError("download object", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat downloaded file: %w", err)
	}
	return info.Size(), nil
}

func (c *Container) List(ctx context.Context) ([]blobstart.BlobInfo, error) {
	var blobs []blobstart.BlobInfo

	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, mapObjectError("list objects in bucket", c.bucket, obj.Err)
		}
		blobs = append(blobs, blobstart.BlobInfo{
			Name:         obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			ETag:         strings.Trim(obj.ETag, `"`),
			LastModified: obj.LastModified,
		})
	}

	return blobs, nil
}

// Delete removes the object. S3 deletes are idempotent, so the object is
// stat'ed first to report blobstart.ErrNotFound like the other backends.
func (c *Container) Delete(ctx context.Context, name string) error {
	if _, err := c.client.StatObject(ctx, c.bucket, name, minio.StatObjectOptions{}); err != nil {
		return mapObjectError("delete object", name, err)
	}
	if err := c.client.RemoveObject(ctx, c.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return mapObjectError("delete object", name, err)
	}
	return nil
}

func mapObjectError(op, name string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", op, name, errors.Join(blobstart.ErrNotFound, err))
	}
	return fmt.Errorf("%s %s: %w", op, name, err)
}
