// Package filesystem provides a local directory backend for blobstart.
// Each container is a subdirectory of the root; blobs are files inside it.
// Writes are atomic: content is staged in <root>/.tmp-<name> and renamed into
// place. Etags are SHA256-based.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sagarc03/blobstart"
)

// stagingPrefix can never start a container name, so staging directories
// stay out of every container's blob namespace.
const stagingPrefix = ".tmp-"

// Container stores blobs in the directory <root>/<name>.
type Container struct {
	root string
	name string
}

var _ blobstart.Container = (*Container)(nil)

// New returns a Container for name under the root directory. The container
// directory is not created until Create is called.
func New(root, name string) (*Container, error) {
	if root == "" {
		return nil, fmt.Errorf("filesystem root: %w", blobstart.ErrInvalidInput)
	}
	if !blobstart.IsValidContainerName(name) {
		return nil, fmt.Errorf("container name %q: %w", name, blobstart.ErrInvalidInput)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	return &Container{root: abs, name: name}, nil
}

func (c *Container) Name() string { return c.name }

func (c *Container) dir() string { return filepath.Join(c.root, c.name) }

func (c *Container) stagingDir() string { return stagingPrefix + c.name }

// URL returns a file:// URL for the container directory.
func (c *Container) URL() string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(c.dir())}
	return u.String()
}

func (c *Container) BlobURL(name string) string {
	return c.URL() + "/" + url.PathEscape(name)
}

func (c *Container) Exists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	info, err := os.Stat(c.dir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat container: %w", err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("container path %s is not a directory", c.dir())
	}
	return true, nil
}

func (c *Container) Create(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(c.root, 0o750); err != nil {
		return fmt.Errorf("create root: %w", err)
	}
	if err := os.Mkdir(c.dir(), 0o750); err != nil {
		if errors.Is(err, os.ErrExist) {
			return blobstart.ErrContainerExists
		}
		return fmt.Errorf("create container: %w", err)
	}
	return nil
}

// open returns a sandboxed root for the container directory.
func (c *Container) open() (*os.Root, error) {
	root, err := os.OpenRoot(c.dir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("container %s: %w", c.name, blobstart.ErrNotFound)
		}
		return nil, fmt.Errorf("open container: %w", err)
	}
	return root, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}

// UploadFile atomically copies the local file into the container using a temp
// file and rename. Intermediate directories are created for nested blob names.
func (c *Container) UploadFile(ctx context.Context, name, localPath string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if !blobstart.IsValidBlobName(name) {
		return fmt.Errorf("blob name %q: %w", name, blobstart.ErrInvalidInput)
	}

	src, err := os.Open(localPath) //#nosec G304 -- localPath is user-provided input
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = src.Close() }()

	container, err := c.open()
	if err != nil {
		return err
	}
	_ = container.Close()

	root, err := os.OpenRoot(c.root)
	if err != nil {
		return fmt.Errorf("open root: %w", err)
	}
	defer func() { _ = root.Close() }()

	if err := root.MkdirAll(c.stagingDir(), 0o750); err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}

	dest := filepath.Join(c.name, filepath.FromSlash(name))
	_, err = write(ctx, root, c.stagingDir(), dest, src)
	return err
}

// write stages content under tmpDir and renames it to dest. Both paths are
// relative to root.
func write(ctx context.Context, root *os.Root, tmpDir, dest string, content io.Reader) (string, error) {
	tmpFile := filepath.Join(tmpDir, tmpFileName())
	t, createErr := root.Create(tmpFile)
	if createErr != nil {
		return "", fmt.Errorf("could not open temp file: %w", createErr)
	}

	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := root.Remove(tmpFile); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	w := io.MultiWriter(h, t)

	if _, err := io.Copy(w, &ctxReader{ctx: ctx, r: content}); err != nil {
		return "", fmt.Errorf("could not copy file contents: %w", err)
	}

	if err := t.Sync(); err != nil {
		return "", fmt.Errorf("could not sync written file: %w", err)
	}
	if err := t.Close(); err != nil {
		return "", fmt.Errorf("could not close written file: %w", err)
	}

	if err := root.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("could not create intermediate directories: %w", err)
	}

	if renameErr := root.Rename(tmpFile, dest); renameErr != nil {
		return "", fmt.Errorf("failed to rename file: %w", renameErr)
	}

	success = true
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DownloadFile copies the blob to localPath, creating parent directories.
func (c *Container) DownloadFile(ctx context.Context, name, localPath string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !blobstart.IsValidBlobName(name) {
		return 0, fmt.Errorf("blob name %q: %w", name, blobstart.ErrInvalidInput)
	}

	root, err := c.open()
	if err != nil {
		return 0, err
	}
	defer func() { _ = root.Close() }()

	src, err := root.Open(filepath.FromSlash(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("blob %s: %w", name, blobstart.ErrNotFound)
		}
		return 0, fmt.Errorf("open blob: %w", err)
	}
	defer func() { _ = src.Close() }()

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("create directory: %w", err)
		}
	}

	dst, err := os.Create(localPath) //#nosec G304 -- localPath is derived from the download directory
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	written, copyErr := io.Copy(dst, &ctxReader{ctx: ctx, r: src})
	if copyErr != nil {
		_ = dst.Close()
		return 0, fmt.Errorf("write file: %w", copyErr)
	}
	if err := dst.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}

	return written, nil
}

// Delete removes a blob. Returns blobstart.ErrNotFound if it does not exist.
func (c *Container) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !blobstart.IsValidBlobName(name) {
		return fmt.Errorf("blob name %q: %w", name, blobstart.ErrInvalidInput)
	}

	root, err := c.open()
	if err != nil {
		return err
	}
	defer func() { _ = root.Close() }()

	if err := root.Remove(filepath.FromSlash(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("blob %s: %w", name, blobstart.ErrNotFound)
		}
		return fmt.Errorf("could not delete file: %w", err)
	}
	return nil
}

// List recursively walks the container directory and returns every blob in
// lexical order.
func (c *Container) List(ctx context.Context) ([]blobstart.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	root, err := c.open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = root.Close() }()

	var entries []blobstart.BlobInfo

	if err := walkDir(ctx, root, ".", &entries); err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return entries, nil
}

func walkDir(ctx context.Context, root *os.Root, dir string, entries *[]blobstart.BlobInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dirEntries, err := fs.ReadDir(root.FS(), dir)
	if err != nil {
		return err
	}

	for _, entry := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		entryPath := path.Join(dir, entry.Name())

		if entry.IsDir() {
			if err := walkDir(ctx, root, entryPath, entries); err != nil {
				return err
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		etag, err := hashFile(root, entryPath)
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}

		*entries = append(*entries, blobstart.BlobInfo{
			Name:         entryPath,
			Size:         info.Size(),
			ETag:         etag,
			ContentType:  detectContentType(entryPath),
			LastModified: info.ModTime(),
		})
	}

	return nil
}

func hashFile(root *os.Root, name string) (string, error) {
	f, err := root.Open(filepath.FromSlash(name))
	if err != nil {
		return "", err
	}

	h := sha256.New()
	_, copyErr := io.Copy(h, f)

	if closeErr := f.Close(); closeErr != nil {
		slog.Warn("failed to close file", "path", name, "err", closeErr)
	}

	if copyErr != nil {
		return "", copyErr
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func detectContentType(name string) string {
	contentType := mime.TypeByExtension(path.Ext(name))

	if contentType == "" {
		return "application/octet-stream"
	}

	return contentType
}

func tmpFileName() string {
	return uuid.New().String()
}
