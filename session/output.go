package session

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sagarc03/blobstart"
)

// Formatter renders session events. Each method writes at most one line so
// concurrent downloads never interleave within a line.
type Formatter interface {
	SampleCreated(w io.Writer, path string) error
	ContainerReady(w io.Writer, url string, created bool) error
	Menu(w io.Writer) error
	Prompt(w io.Writer) error

	UploadStarted(w io.Writer, containerURL string) error
	FileUploading(w io.Writer, path string) error
	UploadFinished(w io.Writer, source string, files int, elapsed time.Duration) error

	ListStarted(w io.Writer, containerURL string) error
	BlobListed(w io.Writer, blob blobstart.BlobInfo) error

	DownloadStarted(w io.Writer, blobURL string) error
	BlobDownloading(w io.Writer, name string) error
	BlobDownloaded(w io.Writer, path string, size int64) error
	DownloadFinished(w io.Writer, dir string, blobs int, elapsed time.Duration) error

	DeleteStarted(w io.Writer, blobURL string) error
	Deleted(w io.Writer, name string) error

	Goodbye(w io.Writer) error
	Error(w io.Writer, err error) error
}

// NewFormatter returns the appropriate formatter based on flags.
func NewFormatter(jsonOutput bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{}
}

// HumanFormatter outputs the quickstart's human-readable progress lines.
type HumanFormatter struct{}

var menuLine = func() string {
	items := make([]string, len(Commands))
	for i, c := range Commands {
		items[i] = "(" + c.Key() + ")" + menuLabel(c)
	}
	return strings.Join(items, " | ")
}()

func menuLabel(c Command) string {
	switch c {
	case CommandUpload:
		return "Upload Blob"
	case CommandList:
		return "List Blobs"
	case CommandGet:
		return "Get Blob"
	case CommandDelete:
		return "Delete Blobs"
	case CommandExit:
		return "Exit"
	default:
		return ""
	}
}

func (f *HumanFormatter) SampleCreated(w io.Writer, path string) error {
	_, err := fmt.Fprintf(w, ">> Creating a sample file at: %s\n", path)
	return err
}

func (f *HumanFormatter) ContainerReady(w io.Writer, url string, created bool) error {
	if created {
		_, err := fmt.Fprintf(w, "Creating a container : %s\n", url)
		return err
	}
	_, err := fmt.Fprintf(w, "Container already exists : %s\n", url)
	return err
}

func (f *HumanFormatter) Menu(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Enter a command\n%s\n", menuLine)
	return err
}

func (f *HumanFormatter) Prompt(w io.Writer) error {
	_, err := fmt.Fprintln(w, "# Enter a command : ")
	return err
}

func (f *HumanFormatter) UploadStarted(w io.Writer, containerURL string) error {
	_, err := fmt.Fprintf(w, "Uploading the sample file into the container from a file: %s\n", containerURL)
	return err
}

func (f *HumanFormatter) FileUploading(w io.Writer, path string) error {
	_, err := fmt.Fprintf(w, "Uploading: %s\n", path)
	return err
}

func (f *HumanFormatter) UploadFinished(w io.Writer, source string, _ int, elapsed time.Duration) error {
	_, err := fmt.Fprintf(w, "Time spent uploading: %s: %d ms\n", source, elapsed.Milliseconds())
	return err
}

func (f *HumanFormatter) ListStarted(w io.Writer, containerURL string) error {
	_, err := fmt.Fprintf(w, "Listing blobs in the container: %s\n", containerURL)
	return err
}

func (f *HumanFormatter) BlobListed(w io.Writer, blob blobstart.BlobInfo) error {
	_, err := fmt.Fprintf(w, "This is the blob name: %s\n", blob.Name)
	return err
}

func (f *HumanFormatter) DownloadStarted(w io.Writer, blobURL string) error {
	_, err := fmt.Fprintf(w, "Get(Download) the blob: %s\n", blobURL)
	return err
}

func (f *HumanFormatter) BlobDownloading(w io.Writer, name string) error {
	_, err := fmt.Fprintf(w, "This is the blob name: %s\n", name)
	return err
}

func (f *HumanFormatter) BlobDownloaded(w io.Writer, path string, _ int64) error {
	_, err := fmt.Fprintf(w, "Downloaded: %s\n", path)
	return err
}

func (f *HumanFormatter) DownloadFinished(w io.Writer, dir string, _ int, elapsed time.Duration) error {
	_, err := fmt.Fprintf(w, "Downloaded to: %s %d ms\n", dir, elapsed.Milliseconds())
	return err
}

func (f *HumanFormatter) DeleteStarted(w io.Writer, blobURL string) error {
	_, err := fmt.Fprintf(w, "Delete the blob: %s\n", blobURL)
	return err
}

func (f *HumanFormatter) Deleted(w io.Writer, name string) error {
	_, err := fmt.Fprintf(w, "Deleted: %s\n", name)
	return err
}

func (f *HumanFormatter) Goodbye(w io.Writer) error {
	_, err := fmt.Fprintln(w, "Cleaning up the sample and exiting.")
	return err
}

func (f *HumanFormatter) Error(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "Error: %v\n", err)
	return werr
}

// JSONFormatter outputs one JSON object per event. The menu and prompt are
// not emitted.
type JSONFormatter struct{}

type event struct {
	Event     string              `json:"event"`
	URL       string              `json:"url,omitempty"`
	Path      string              `json:"path,omitempty"`
	Name      string              `json:"name,omitempty"`
	Created   *bool               `json:"created,omitempty"`
	Count     *int                `json:"count,omitempty"`
	Size      *int64              `json:"size_bytes,omitempty"`
	ElapsedMS *int64              `json:"elapsed_ms,omitempty"`
	Blob      *blobstart.BlobInfo `json:"blob,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func (f *JSONFormatter) SampleCreated(w io.Writer, path string) error {
	return writeJSON(w, event{Event: "sample_created", Path: path})
}

func (f *JSONFormatter) ContainerReady(w io.Writer, url string, created bool) error {
	return writeJSON(w, event{Event: "container_ready", URL: url, Created: ptr(created)})
}

func (f *JSONFormatter) Menu(io.Writer) error { return nil }

func (f *JSONFormatter) Prompt(io.Writer) error { return nil }

func (f *JSONFormatter) UploadStarted(w io.Writer, containerURL string) error {
	return writeJSON(w, event{Event: "upload_started", URL: containerURL})
}

func (f *JSONFormatter) FileUploading(w io.Writer, path string) error {
	return writeJSON(w, event{Event: "file_uploading", Path: path})
}

func (f *JSONFormatter) UploadFinished(w io.Writer, source string, files int, elapsed time.Duration) error {
	return writeJSON(w, event{Event: "upload_finished", Path: source, Count: ptr(files), ElapsedMS: ptr(elapsed.Milliseconds())})
}

func (f *JSONFormatter) ListStarted(w io.Writer, containerURL string) error {
	return writeJSON(w, event{Event: "list_started", URL: containerURL})
}

func (f *JSONFormatter) BlobListed(w io.Writer, blob blobstart.BlobInfo) error {
	return writeJSON(w, event{Event: "blob", Blob: &blob})
}

func (f *JSONFormatter) DownloadStarted(w io.Writer, blobURL string) error {
	return writeJSON(w, event{Event: "download_started", URL: blobURL})
}

func (f *JSONFormatter) BlobDownloading(w io.Writer, name string) error {
	return writeJSON(w, event{Event: "blob_downloading", Name: name})
}

func (f *JSONFormatter) BlobDownloaded(w io.Writer, path string, size int64) error {
	return writeJSON(w, event{Event: "blob_downloaded", Path: path, Size: ptr(size)})
}

func (f *JSONFormatter) DownloadFinished(w io.Writer, dir string, blobs int, elapsed time.Duration) error {
	return writeJSON(w, event{Event: "download_finished", Path: dir, Count: ptr(blobs), ElapsedMS: ptr(elapsed.Milliseconds())})
}

func (f *JSONFormatter) DeleteStarted(w io.Writer, blobURL string) error {
	return writeJSON(w, event{Event: "delete_started", URL: blobURL})
}

func (f *JSONFormatter) Deleted(w io.Writer, name string) error {
	return writeJSON(w, event{Event: "deleted", Name: name})
}

func (f *JSONFormatter) Goodbye(w io.Writer) error {
	return writeJSON(w, event{Event: "exit"})
}

func (f *JSONFormatter) Error(w io.Writer, err error) error {
	return writeJSON(w, event{Event: "error", Error: err.Error()})
}

// writeJSON writes a value as a single JSON line.
func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// syncWriter serializes writes from concurrent downloads.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
