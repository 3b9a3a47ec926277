package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/blobstart"
	"github.com/sagarc03/blobstart/config"
	"github.com/sagarc03/blobstart/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	cfg       *config.Config
	container *fakeContainer
	remover   *recordingRemover
	out       bytes.Buffer
	errOut    bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		cfg:       testConfig(t),
		container: newFakeContainer(config.DefaultContainer),
		remover:   &recordingRemover{},
	}
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	var (
		mu  sync.Mutex
		now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func (h *harness) run(t *testing.T, input string, opts ...session.Option) error {
	t.Helper()

	opts = append([]session.Option{
		session.WithInput(strings.NewReader(input)),
		session.WithOutput(&h.out, &h.errOut),
		session.WithRemover(h.remover.Remove),
		session.WithClock(steppingClock(5 * time.Millisecond)),
	}, opts...)

	s, err := session.New(h.cfg, h.container, opts...)
	require.NoError(t, err)
	return s.Run(context.Background())
}

func TestNew_RequiresConfigAndContainer(t *testing.T) {
	_, err := session.New(nil, newFakeContainer("mycontainer"))
	assert.ErrorIs(t, err, blobstart.ErrInvalidInput)

	_, err = session.New(testConfig(t), nil)
	assert.ErrorIs(t, err, blobstart.ErrInvalidInput)
}

func TestRun_MenuAndPrompt(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "E\n"))

	out := h.out.String()
	assert.Contains(t, out, "Creating a container : https://fake.blob/mycontainer\n")
	assert.Contains(t, out, "Enter a command\n(U)Upload Blob | (L)List Blobs | (G)Get Blob | (D)Delete Blobs | (E)Exit\n")
	assert.Equal(t, 1, strings.Count(out, "Enter a command\n"))
	assert.Equal(t, 1, strings.Count(out, "# Enter a command : "))
	assert.True(t, strings.HasSuffix(out, "Cleaning up the sample and exiting.\n"))
}

func TestRun_ExistingContainerIsNotCreated(t *testing.T) {
	h := newHarness(t)
	h.container.exists = true

	require.NoError(t, h.run(t, "E\n"))

	assert.Zero(t, h.container.Count("create"))
	assert.Contains(t, h.out.String(), "Container already exists : https://fake.blob/mycontainer\n")
}

func TestRun_BootstrapFailure(t *testing.T) {
	h := newHarness(t)
	h.container.existsErr = errors.New("auth failed")

	err := h.run(t, "E\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth failed")
	assert.NotContains(t, h.out.String(), "# Enter a command : ")
}

func TestRun_UnknownInputReprompts(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "x\nu\n\nupload\nE\n"))

	assert.Equal(t, 5, strings.Count(h.out.String(), "# Enter a command : "))
	assert.Equal(t, []string{"exists", "create"}, h.container.Calls())
	assert.Empty(t, h.errOut.String())
}

func TestRun_CommandsTolerateSurroundingWhitespace(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "  L \r\nE\n"))

	assert.Equal(t, 1, h.container.Count("list"))
}

func TestRun_ExitRemovesDownloadFileOnce(t *testing.T) {
	t.Run("exit command", func(t *testing.T) {
		h := newHarness(t)

		require.NoError(t, h.run(t, "E\nL\n"))

		assert.Equal(t, []string{h.cfg.Session.DownloadFile}, h.remover.Paths())
		assert.Zero(t, h.container.Count("list"))
	})

	t.Run("end of input", func(t *testing.T) {
		h := newHarness(t)

		require.NoError(t, h.run(t, ""))

		assert.Equal(t, []string{h.cfg.Session.DownloadFile}, h.remover.Paths())
		assert.Contains(t, h.out.String(), "Cleaning up the sample and exiting.")
	})

	t.Run("missing download file", func(t *testing.T) {
		h := newHarness(t)
		h.remover.err = os.ErrNotExist

		assert.NoError(t, h.run(t, "E\n"))
		assert.Len(t, h.remover.Paths(), 1)
	})

	t.Run("remove failure", func(t *testing.T) {
		h := newHarness(t)
		h.remover.err = errors.New("permission denied")

		assert.NoError(t, h.run(t, "E\n"))
	})
}

func TestRun_RemovesGeneratedSample(t *testing.T) {
	h := newHarness(t)
	h.cfg.Session.Sample = true

	require.NoError(t, h.run(t, "E\n"))

	assert.Equal(t, []string{h.cfg.Session.DownloadFile, h.cfg.Session.Source}, h.remover.Paths())
}

func TestRun_KeepsUserSource(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "E\n"))

	assert.NotContains(t, h.remover.Paths(), h.cfg.Session.Source)
	assert.FileExists(t, h.cfg.Session.Source)
}

func TestRun_UploadFile(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "U\nE\n"))

	require.Len(t, h.container.uploads, 1)
	assert.Equal(t, "sample.txt", h.container.uploads[0].Name)
	assert.Equal(t, []byte(config.SampleContent), h.container.blobs["sample.txt"])

	out := h.out.String()
	assert.Contains(t, out, "Uploading the sample file into the container from a file: https://fake.blob/mycontainer\n")
	assert.Contains(t, out, "Uploading: "+h.cfg.Session.Source+"\n")
	assert.Contains(t, out, "Time spent uploading: "+h.cfg.Session.Source+": 5 ms\n")
}

func TestRun_UploadDirectory(t *testing.T) {
	h := newHarness(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "nested", "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "nested", "deeper", "c.txt"), "c")
	h.cfg.Session.Source = dir

	require.NoError(t, h.run(t, "U\nE\n"))

	names := make([]string, 0, len(h.container.uploads))
	for _, u := range h.container.uploads {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, names)
	assert.Equal(t, 3, strings.Count(h.out.String(), "Uploading: "))
}

func TestRun_ListInCollaboratorOrder(t *testing.T) {
	h := newHarness(t)
	h.container.exists = true
	h.container.put("zeta.txt", []byte("z"))
	h.container.put("alpha.txt", []byte("a"))

	require.NoError(t, h.run(t, "L\nE\n"))

	out := h.out.String()
	assert.Contains(t, out, "Listing blobs in the container: https://fake.blob/mycontainer\n")
	zeta := strings.Index(out, "This is the blob name: zeta.txt\n")
	alpha := strings.Index(out, "This is the blob name: alpha.txt\n")
	require.NotEqual(t, -1, zeta)
	require.NotEqual(t, -1, alpha)
	assert.Less(t, zeta, alpha)
}

func TestRun_GetDownloadsEveryBlob(t *testing.T) {
	h := newHarness(t)
	h.container.exists = true
	h.container.put("one.txt", []byte("1"))
	h.container.put("dir/two.txt", []byte("22"))

	require.NoError(t, h.run(t, "G\nE\n"))

	dir := filepath.Join(h.cfg.Session.DownloadDir, config.DefaultContainer)
	one, err := os.ReadFile(filepath.Join(dir, "one.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(one))

	two, err := os.ReadFile(filepath.Join(dir, "dir", "two.txt"))
	require.NoError(t, err)
	assert.Equal(t, "22", string(two))

	abs, err := filepath.Abs(filepath.Join(dir, "one.txt"))
	require.NoError(t, err)

	out := h.out.String()
	assert.Contains(t, out, "Get(Download) the blob: https://fake.blob/mycontainer/myblob\n")
	assert.Contains(t, out, "This is the blob name: one.txt\n")
	assert.Contains(t, out, "Downloaded: "+abs+"\n")
	assert.Contains(t, out, "Downloaded to: "+dir+" 5 ms\n")
}

func TestRun_GetEmptyContainerCreatesDir(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, "G\nE\n"))

	assert.DirExists(t, filepath.Join(h.cfg.Session.DownloadDir, config.DefaultContainer))
	assert.Zero(t, h.container.Count("download"))
}

func TestRun_GetSkipsUnsafeNames(t *testing.T) {
	h := newHarness(t)
	h.container.exists = true
	h.container.put("../escape.txt", []byte("x"))
	h.container.put("ok.txt", []byte("y"))

	require.NoError(t, h.run(t, "G\nE\n"))

	assert.Equal(t, 1, h.container.Count("download"))
	assert.NoFileExists(t, filepath.Join(h.cfg.Session.DownloadDir, "escape.txt"))
}

func TestRun_GetBoundedConcurrency(t *testing.T) {
	for _, width := range []int{1, 2} {
		h := newHarness(t)
		h.cfg.Transfer.Concurrency = width
		h.container.exists = true
		h.container.downloadDelay = 20 * time.Millisecond
		for _, name := range []string{"a", "b", "c", "d", "e"} {
			h.container.put(name, []byte(name))
		}

		require.NoError(t, h.run(t, "G\nE\n"))

		assert.Equal(t, 5, h.container.Count("download"))
		assert.LessOrEqual(t, h.container.maxInFlight, width)
		assert.GreaterOrEqual(t, h.container.maxInFlight, 1)
	}
}

func TestRun_GetSequentialKeepsListOrder(t *testing.T) {
	h := newHarness(t)
	h.container.exists = true
	for _, name := range []string{"c", "a", "b"} {
		h.container.put(name, []byte(name))
	}

	require.NoError(t, h.run(t, "G\nE\n"))

	out := h.out.String()
	c := strings.Index(out, "This is the blob name: c\n")
	a := strings.Index(out, "This is the blob name: a\n")
	b := strings.Index(out, "This is the blob name: b\n")
	assert.True(t, c < a && a < b, "downloads out of order:\n%s", out)
}

func TestRun_DeleteTargetsConfiguredBlob(t *testing.T) {
	h := newHarness(t)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "first.txt"), "1")
	writeFile(t, filepath.Join(dir, "second.txt"), "2")
	h.cfg.Session.Source = dir
	h.container.put(config.DefaultBlob, []byte("x"))

	require.NoError(t, h.run(t, "U\nD\nD\nE\n"))

	assert.Equal(t, []string{config.DefaultBlob, config.DefaultBlob}, h.container.deletes)
	assert.Contains(t, h.container.blobs, "first.txt")
	assert.Contains(t, h.container.blobs, "second.txt")
	assert.Contains(t, h.out.String(), "Delete the blob: https://fake.blob/mycontainer/myblob\n")

	// The second delete finds nothing and is reported without ending the loop.
	assert.Contains(t, h.errOut.String(), "Error: delete myblob")
}

func TestRun_CommandErrorsContinueLoop(t *testing.T) {
	h := newHarness(t)
	h.container.listErr = errors.New("service unavailable")

	require.NoError(t, h.run(t, "L\nG\nL\nE\n"))

	assert.Equal(t, 3, h.container.Count("list"))
	assert.Equal(t, 3, strings.Count(h.errOut.String(), "service unavailable"))
	assert.Len(t, h.remover.Paths(), 1)
}

func TestRun_UploadMissingSourceContinues(t *testing.T) {
	h := newHarness(t)
	h.cfg.Session.Source = filepath.Join(t.TempDir(), "missing.txt")

	require.NoError(t, h.run(t, "U\nE\n"))

	assert.Zero(t, h.container.Count("upload"))
	assert.Contains(t, h.errOut.String(), "Error: stat ")
}

func TestRun_ContextCancel(t *testing.T) {
	h := newHarness(t)

	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	s, err := session.New(h.cfg, h.container,
		session.WithInput(pr),
		session.WithOutput(&bytes.Buffer{}, &bytes.Buffer{}),
		session.WithRemover(h.remover.Remove),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, h.remover.Paths())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestRun_InputError(t *testing.T) {
	h := newHarness(t)

	s, err := session.New(h.cfg, h.container,
		session.WithInput(failingReader{}),
		session.WithOutput(&h.out, &h.errOut),
		session.WithRemover(h.remover.Remove),
	)
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read command: tty gone")
	assert.Empty(t, h.remover.Paths())
}

func TestRun_JSONOutput(t *testing.T) {
	h := newHarness(t)
	h.container.put("a.txt", []byte("a"))

	require.NoError(t, h.run(t, "L\nE\n", session.WithFormatter(&session.JSONFormatter{})))

	var events []string
	for line := range strings.Lines(h.out.String()) {
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &ev), "line %q", line)
		events = append(events, ev["event"].(string))
	}
	assert.Equal(t, []string{"container_ready", "list_started", "blob", "exit"}, events)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}
