package session

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sagarc03/blobstart"
)

// UploadPath uploads path to the container. A regular file is stored under its
// base name; a directory is walked recursively in name order and every
// regular file below it is stored under its own base name, so files with the
// same name in different directories overwrite each other.
//
// Symlinks to files are followed. Symlinked directories are skipped.
// onFile, when non-nil, is called before each upload. The number of uploaded
// files is returned along with the first error.
func UploadPath(ctx context.Context, c blobstart.Container, path string, onFile func(path string)) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	u := uploader{container: c, onFile: onFile}
	if info.IsDir() {
		err = u.walk(ctx, path)
	} else {
		err = u.file(ctx, path, info)
	}
	return u.count, err
}

type uploader struct {
	container blobstart.Container
	onFile    func(string)
	count     int
}

func (u *uploader) walk(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, entry.Name())

		if entry.Type()&fs.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				slog.Warn("skipping broken symlink", "path", path, "err", err)
				continue
			}
			if info.IsDir() {
				slog.Warn("skipping symlinked directory", "path", path)
				continue
			}
			if err := u.file(ctx, path, info); err != nil {
				return err
			}
			continue
		}

		if entry.IsDir() {
			if err := u.walk(ctx, path); err != nil {
				return err
			}
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := u.file(ctx, path, info); err != nil {
			return err
		}
	}

	return nil
}

func (u *uploader) file(ctx context.Context, path string, info fs.FileInfo) error {
	if !info.Mode().IsRegular() {
		slog.Debug("skipping non-regular file", "path", path, "mode", info.Mode().String())
		return nil
	}

	if u.onFile != nil {
		u.onFile(path)
	}

	name := filepath.Base(path)
	if err := u.container.UploadFile(ctx, name, path); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}
	u.count++
	slog.Debug("uploaded", "path", path, "blob", name)
	return nil
}
