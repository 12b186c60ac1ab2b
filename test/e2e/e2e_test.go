//go:build e2e

package e2e

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
)

var testCtx *TestContext

func TestMain(m *testing.M) {
	flag.Parse()

	// testcontainers falls back to the default socket when neither is set
	if os.Getenv("DOCKER_HOST") == "" && os.Getenv("TESTCONTAINERS_DOCKER_SOCKET") == "" {
		log.Println("Using default Docker socket for testcontainers")
	}

	ctx := context.Background()
	testCtx = &TestContext{}

	log.Println("Starting Postgres container...")
	var err error
	testCtx.PostgresContainer, testCtx.ConnString, err = setupPostgresE(ctx)
	if err != nil {
		log.Fatalf("Failed to start postgres: %v", err)
	}
	log.Println("Postgres container started")

	log.Println("Starting test server...")
	var stop context.CancelFunc
	testCtx.TestServer, testCtx.Store, stop, err = startServerE(testCtx.ConnString)
	if err != nil {
		_ = testCtx.PostgresContainer.Terminate(ctx)
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Println("Test server started at:", testCtx.TestServer.URL)

	exitCode := m.Run()
	log.Println("E2E tests completed with exit code:", exitCode)

	testCtx.TestServer.Close()
	stop()
	testCtx.Store.Close()
	if err := testCtx.PostgresContainer.Terminate(ctx); err != nil {
		log.Printf("Failed to terminate postgres container: %v", err)
	}
	os.Exit(exitCode)
}
