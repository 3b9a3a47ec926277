package session_test

import (
	"context"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/blobstart"
	"github.com/sagarc03/blobstart/config"
)

// fakeContainer is an in-memory blobstart.Container that records calls.
type fakeContainer struct {
	mu sync.Mutex

	name   string
	exists bool
	blobs  map[string][]byte
	order  []string

	calls   []string
	uploads []upload
	deletes []string

	existsErr   error
	createErr   error
	uploadErr   error
	listErr     error
	downloadErr error
	deleteErr   error

	downloadDelay time.Duration
	inFlight      int
	maxInFlight   int
}

type upload struct {
	Name string
	Path string
}

func newFakeContainer(name string) *fakeContainer {
	return &fakeContainer{name: name, blobs: map[string][]byte{}}
}

func (f *fakeContainer) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeContainer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeContainer) Count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeContainer) put(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[name]; !ok {
		f.order = append(f.order, name)
	}
	f.blobs[name] = data
}

func (f *fakeContainer) Name() string { return f.name }

func (f *fakeContainer) URL() string { return "https://fake.blob/" + f.name }

func (f *fakeContainer) BlobURL(name string) string { return f.URL() + "/" + name }

func (f *fakeContainer) Exists(context.Context) (bool, error) {
	f.record("exists")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exists, f.existsErr
}

func (f *fakeContainer) Create(context.Context) error {
	f.record("create")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.exists {
		return blobstart.ErrContainerExists
	}
	f.exists = true
	return nil
}

func (f *fakeContainer) UploadFile(_ context.Context, name, path string) error {
	f.record("upload")
	if f.uploadErr != nil {
		return f.uploadErr
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, upload{Name: name, Path: path})
	f.mu.Unlock()

	f.put(name, data)
	return nil
}

func (f *fakeContainer) DownloadFile(ctx context.Context, name, path string) (int64, error) {
	f.record("download")

	f.mu.Lock()
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	data, ok := f.blobs[name]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.downloadDelay > 0 {
		select {
		case <-time.After(f.downloadDelay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	if !ok {
		return 0, blobstart.ErrNotFound
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (f *fakeContainer) List(context.Context) ([]blobstart.BlobInfo, error) {
	f.record("list")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	out := make([]blobstart.BlobInfo, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, blobstart.BlobInfo{Name: name, Size: int64(len(f.blobs[name]))})
	}
	return out, nil
}

func (f *fakeContainer) Delete(_ context.Context, name string) error {
	f.record("delete")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, name)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.blobs[name]; !ok {
		return blobstart.ErrNotFound
	}
	delete(f.blobs, name)
	f.order = slices.DeleteFunc(f.order, func(n string) bool { return n == name })
	return nil
}

// recordingRemover records every path passed to it and always succeeds
// unless err is set.
type recordingRemover struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (r *recordingRemover) Remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return r.err
}

func (r *recordingRemover) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.paths)
}

// testConfig returns a session config rooted in a temp dir with a real
// source file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	source := dir + "/sample.txt"
	if err := os.WriteFile(source, []byte(config.SampleContent), 0o600); err != nil {
		t.Fatal(err)
	}

	return &config.Config{
		Storage: config.StorageConfig{Backend: string(blobstart.BackendAzure)},
		Session: config.SessionConfig{
			Container:    config.DefaultContainer,
			Blob:         config.DefaultBlob,
			Source:       source,
			DownloadFile: dir + "/" + config.DefaultDownloadFile,
			DownloadDir:  dir + "/" + config.DefaultDownloadDir,
		},
		Transfer: config.TransferConfig{Concurrency: 1},
		Log:      config.LogConfig{Level: "warn", Format: "text"},
	}
}
