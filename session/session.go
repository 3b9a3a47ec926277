package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/blobstart"
	"github.com/sagarc03/blobstart/config"
)

// Session runs the interactive command loop against one container.
type Session struct {
	cfg       *config.Config
	container blobstart.Container
	formatter Formatter

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	remove func(string) error
	now    func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithInput sets the command source. Defaults to os.Stdin.
func WithInput(r io.Reader) Option {
	return func(s *Session) { s.in = r }
}

// WithOutput sets the progress and error writers. Defaults to os.Stdout and
// os.Stderr.
func WithOutput(out, errOut io.Writer) Option {
	return func(s *Session) {
		s.out = out
		s.errOut = errOut
	}
}

// WithFormatter sets the output formatter. Defaults to HumanFormatter.
func WithFormatter(f Formatter) Option {
	return func(s *Session) { s.formatter = f }
}

// WithRemover replaces os.Remove for the exit cleanup.
func WithRemover(remove func(string) error) Option {
	return func(s *Session) { s.remove = remove }
}

// WithClock replaces time.Now for elapsed time reporting.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a Session. The config and container are required.
func New(cfg *config.Config, c blobstart.Container, opts ...Option) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", blobstart.ErrInvalidInput)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: container is required", blobstart.ErrInvalidInput)
	}

	s := &Session{
		cfg:       cfg,
		container: c,
		formatter: &HumanFormatter{},
		in:        os.Stdin,
		out:       os.Stdout,
		errOut:    os.Stderr,
		remove:    os.Remove,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run bootstraps the container and then reads commands until Exit, end of
// input or context cancellation. Command failures are reported and the loop
// continues; only bootstrap, input and output failures end Run with an error.
func (s *Session) Run(ctx context.Context) error {
	defer s.removeSample()

	if _, err := Bootstrap(ctx, s.container, s.formatter, s.out); err != nil {
		return err
	}

	if err := s.formatter.Menu(s.out); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, readErr := s.readLines(ctx)

	for {
		if err := s.formatter.Prompt(s.out); err != nil {
			return err
		}

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}

		if !ok {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := <-readErr; err != nil {
				return fmt.Errorf("read command: %w", err)
			}
			slog.Debug("end of input")
			return s.exit()
		}

		cmd, known := ParseCommand(line)
		if !known {
			slog.Debug("ignoring unknown command", "input", line)
			continue
		}

		if cmd == CommandExit {
			return s.exit()
		}

		if err := s.dispatch(ctx, cmd); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("command failed", "command", cmd.String(), "err", err)
			_ = s.formatter.Error(s.errOut, err)
		}
	}
}

// readLines feeds input lines to a channel so the loop can also watch ctx.
// The channel is closed at end of input or when ctx is done; readErr then
// yields the scan error, if any.
func (s *Session) readLines(ctx context.Context) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- scanner.Err()
	}()

	return lines, readErr
}

func (s *Session) dispatch(ctx context.Context, cmd Command) error {
	switch cmd {
	case CommandUpload:
		return s.upload(ctx)
	case CommandList:
		return s.list(ctx)
	case CommandGet:
		return s.get(ctx)
	case CommandDelete:
		return s.delete(ctx)
	default:
		return fmt.Errorf("%w: unsupported command %s", blobstart.ErrInvalidInput, cmd)
	}
}

func (s *Session) upload(ctx context.Context) error {
	if err := s.formatter.UploadStarted(s.out, s.container.URL()); err != nil {
		return err
	}

	source := s.cfg.Session.Source
	start := s.now()

	n, err := UploadPath(ctx, s.container, source, func(path string) {
		_ = s.formatter.FileUploading(s.out, path)
	})
	if err != nil {
		return err
	}

	return s.formatter.UploadFinished(s.out, source, n, s.now().Sub(start))
}

func (s *Session) list(ctx context.Context) error {
	if err := s.formatter.ListStarted(s.out, s.container.URL()); err != nil {
		return err
	}

	blobs, err := s.container.List(ctx)
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}

	for _, b := range blobs {
		if err := s.formatter.BlobListed(s.out, b); err != nil {
			return err
		}
	}
	return nil
}

// get downloads every blob in the container to <download dir>/<container>.
func (s *Session) get(ctx context.Context) error {
	if err := s.formatter.DownloadStarted(s.out, s.container.BlobURL(s.cfg.Session.Blob)); err != nil {
		return err
	}

	dir := filepath.Join(s.cfg.Session.DownloadDir, s.container.Name())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	start := s.now()

	blobs, err := s.container.List(ctx)
	if err != nil {
		return fmt.Errorf("list blobs: %w", err)
	}

	out := &syncWriter{w: s.out}
	var downloaded atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.cfg.Transfer.Concurrency))

	for _, b := range blobs {
		rel := filepath.FromSlash(b.Name)
		if !blobstart.IsValidBlobName(b.Name) || !filepath.IsLocal(rel) {
			slog.Warn("skipping blob with unsafe name", "blob", b.Name)
			continue
		}
		target := filepath.Join(dir, rel)

		g.Go(func() error {
			if err := s.formatter.BlobDownloading(out, b.Name); err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create dir for %s: %w", b.Name, err)
			}

			size, err := s.container.DownloadFile(gctx, b.Name, target)
			if err != nil {
				return fmt.Errorf("download %s: %w", b.Name, err)
			}
			downloaded.Add(1)

			abs, err := filepath.Abs(target)
			if err != nil {
				abs = target
			}
			return s.formatter.BlobDownloaded(out, abs, size)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return s.formatter.DownloadFinished(out, dir, int(downloaded.Load()), s.now().Sub(start))
}

// delete removes the blob named at startup. Blobs uploaded from a directory
// under other names are not affected.
func (s *Session) delete(ctx context.Context) error {
	name := s.cfg.Session.Blob
	if err := s.formatter.DeleteStarted(s.out, s.container.BlobURL(name)); err != nil {
		return err
	}

	if err := s.container.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}

	return s.formatter.Deleted(s.out, name)
}

func (s *Session) exit() error {
	if err := s.formatter.Goodbye(s.out); err != nil {
		slog.Debug("write goodbye", "err", err)
	}

	if err := s.remove(s.cfg.Session.DownloadFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove download file", "path", s.cfg.Session.DownloadFile, "err", err)
	}
	return nil
}

func (s *Session) removeSample() {
	if !s.cfg.Session.Sample || s.cfg.Session.Source == "" {
		return
	}
	if err := s.remove(s.cfg.Session.Source); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("remove sample file", "path", s.cfg.Session.Source, "err", err)
	}
}
