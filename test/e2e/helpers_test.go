//go:build e2e

package e2e

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pendergraft/buildcfg/internal/config"
	"github.com/pendergraft/buildcfg/internal/project"
	"github.com/pendergraft/buildcfg/internal/server"
	"github.com/pendergraft/buildcfg/internal/storage"
	"github.com/pendergraft/buildcfg/pkg/client"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	TestServer        *httptest.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("buildcfg"),
		postgres.WithUsername("buildcfg"),
		postgres.WithPassword("buildcfg"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = postgresContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	return postgresContainer, connString, nil
}

// startServerE starts the registry in-process against Postgres with API key
// auth on. The returned func stops the server's background work.
func startServerE(connString string) (*httptest.Server, storage.Store, context.CancelFunc, error) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Storage: config.StorageConfig{
			Type: "postgres",
			Postgres: config.PostgresConfig{
				URL: connString,
			},
		},
		Auth:      config.AuthConfig{Type: "api-key"},
		Logging:   config.LoggingConfig{Level: "debug", Format: "text"},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Security:  config.SecurityConfig{FilterEnabled: false, MaxBodySizeMB: 1},
		Proxy:     config.ProxyConfig{TrustProxy: false},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create store: %w", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := server.New(ctx, cfg, store, logger)
	if err != nil {
		cancel()
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to create server: %w", err)
	}

	return httptest.NewServer(srv.Handler()), store, cancel, nil
}

// newClient creates a new API client for the test server
func newClient(testServer *httptest.Server, apiKey string) *client.Client {
	return client.New(testServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, store storage.Store, name string) string {
	t.Helper()
	key, err := store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// uniqueProject returns a project name no other test uses, since all tests
// share one database.
func uniqueProject(prefix string) string {
	return prefix + "-" + uuid.New().String()[:8]
}

// templateDocument renders the built-in template. A non-empty sources path
// makes the document differ from the default one.
func templateDocument(t *testing.T, format project.Format, sources string) []byte {
	t.Helper()
	doc := project.Template()
	if sources != "" {
		doc.Paths.Sources = sources
	}
	data, err := project.EncodeDocument(doc, format)
	require.NoError(t, err, "Failed to encode template")
	return data
}

// pushTemplate publishes the template to a project and returns the snapshot.
func pushTemplate(t *testing.T, c *client.Client, projectName, sources string) *client.Snapshot {
	t.Helper()
	snap, err := c.Push(context.Background(), projectName, templateDocument(t, project.FormatTOML, sources), string(project.FormatTOML))
	require.NoError(t, err, "Failed to push snapshot")
	return snap
}

// assertHTTPError asserts that an error is an APIError with the expected code
func assertHTTPError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	require.Error(t, err, "Expected an error")
	require.Equal(t, expectedCode, getErrorCode(err), "Error code mismatch: %v", err)
}

func getErrorCode(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
