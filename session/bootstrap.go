package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sagarc03/blobstart"
)

// Bootstrap makes sure the container exists, creating it when absent, and
// reports which of the two happened. A Create that loses a race with another
// client counts as already existing.
func Bootstrap(ctx context.Context, c blobstart.Container, f Formatter, w io.Writer) (bool, error) {
	exists, err := c.Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check container %s: %w", c.Name(), err)
	}

	created := false
	if !exists {
		err = c.Create(ctx)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, blobstart.ErrContainerExists):
			slog.Debug("container created concurrently", "container", c.Name())
		default:
			return false, fmt.Errorf("create container %s: %w", c.Name(), err)
		}
	}

	if err := f.ContainerReady(w, c.URL(), created); err != nil {
		return created, err
	}
	return created, nil
}
