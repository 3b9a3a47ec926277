package e2e_test

import (
	"context"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// Azurite's well-known development account.
	azuriteAccount = "devstoreaccount1"
	azuriteKey     = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

	minioUser     = "minioadmin"
	minioPassword = "minioadmin"
)

var (
	azuriteOnce     sync.Once
	azuriteEndpoint string
	azuriteErr      error

	minioOnce     sync.Once
	minioEndpoint string
	minioErr      error
)

// requireDocker skips the test in -short mode. Container start failures are
// reported by the callers.
func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
}

// getAzuriteEndpoint returns the blob service URL of a shared Azurite
// container, e.g. http://localhost:32768/devstoreaccount1.
func getAzuriteEndpoint(t *testing.T) string {
	t.Helper()
	requireDocker(t)

	azuriteOnce.Do(func() {
		ctx := context.Background()

		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mcr.microsoft.com/azure-storage/azurite:latest",
				ExposedPorts: []string{"10000/tcp"},
				Cmd:          []string{"azurite-blob", "--blobHost", "0.0.0.0", "--blobPort", "10000", "--skipApiVersionCheck", "--loose"},
				WaitingFor:   wait.ForListeningPort("10000/tcp"),
			},
			Started: true,
		})
		if err != nil {
			azuriteErr = err
			return
		}
		registerTermination(c)

		endpoint, err := c.PortEndpoint(ctx, "10000/tcp", "http")
		if err != nil {
			azuriteErr = err
			return
		}
		azuriteEndpoint = endpoint + "/" + azuriteAccount
	})

	if azuriteErr != nil {
		t.Fatalf("failed to start azurite container: %v", azuriteErr)
	}
	return azuriteEndpoint
}

// getMinioEndpoint returns the http endpoint of a shared MinIO container.
func getMinioEndpoint(t *testing.T) string {
	t.Helper()
	requireDocker(t)

	minioOnce.Do(func() {
		ctx := context.Background()

		c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "minio/minio:latest",
				ExposedPorts: []string{"9000/tcp"},
				Cmd:          []string{"server", "/data"},
				Env: map[string]string{
					"MINIO_ROOT_USER":     minioUser,
					"MINIO_ROOT_PASSWORD": minioPassword,
				},
				WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
			},
			Started: true,
		})
		if err != nil {
			minioErr = err
			return
		}
		registerTermination(c)

		minioEndpoint, minioErr = c.PortEndpoint(ctx, "9000/tcp", "http")
	})

	if minioErr != nil {
		t.Fatalf("failed to start minio container: %v", minioErr)
	}
	return minioEndpoint
}

var (
	terminateMu sync.Mutex
	terminators []testcontainers.Container
)

// registerTermination queues a shared container for removal after all tests.
func registerTermination(c testcontainers.Container) {
	terminateMu.Lock()
	defer terminateMu.Unlock()
	terminators = append(terminators, c)
}

func terminateContainers() {
	terminateMu.Lock()
	defer terminateMu.Unlock()
	for _, c := range terminators {
		_ = testcontainers.TerminateContainer(c)
	}
	terminators = nil
}
