//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/buildcfg/internal/project"
	"github.com/pendergraft/buildcfg/pkg/client"
)

// TestAuth_UnauthenticatedRead tests that read endpoints work without authentication
func TestAuth_UnauthenticatedRead(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "test-auth-read")
	name := uniqueProject("auth-read")
	snap := pushTemplate(t, newClient(testCtx.TestServer, apiKey), name, "")

	unauthedClient := newClient(testCtx.TestServer, "")
	ctx := context.Background()

	t.Run("history without auth", func(t *testing.T) {
		list, err := unauthedClient.History(ctx, name, client.ListOptions{})
		require.NoError(t, err)
		require.Len(t, list.Data, 1)
		assert.Equal(t, snap.ID, list.Data[0].ID)
	})

	t.Run("get snapshot without auth", func(t *testing.T) {
		got, err := unauthedClient.Get(ctx, name, snap.ID)
		require.NoError(t, err)
		assert.Equal(t, snap.Fingerprint, got.Fingerprint)
		assert.NotEmpty(t, got.Document)
	})

	t.Run("pull without auth", func(t *testing.T) {
		doc, err := unauthedClient.Pull(ctx, name, "latest", string(project.FormatYAML))
		require.NoError(t, err)
		assert.Equal(t, snap.ID, doc.ID)
	})
}

// TestAuth_UnauthenticatedWriteRejected tests that write operations require authentication
func TestAuth_UnauthenticatedWriteRejected(t *testing.T) {
	unauthedClient := newClient(testCtx.TestServer, "")
	ctx := context.Background()

	t.Run("push without auth", func(t *testing.T) {
		_, err := unauthedClient.Push(ctx, uniqueProject("unauth"), templateDocument(t, project.FormatTOML, ""), "toml")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})

	t.Run("delete without auth", func(t *testing.T) {
		err := unauthedClient.Delete(ctx, uniqueProject("unauth"), "latest")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})

	t.Run("whoami without auth", func(t *testing.T) {
		_, err := unauthedClient.Whoami(ctx)
		assertHTTPError(t, err, "UNAUTHORIZED")
	})
}

// TestAuth_InvalidKey tests that unknown and revoked keys are rejected
func TestAuth_InvalidKey(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown key", func(t *testing.T) {
		c := newClient(testCtx.TestServer, "bc_key_0000000000000000000000000000")
		_, err := c.Push(ctx, uniqueProject("bad-key"), templateDocument(t, project.FormatTOML, ""), "toml")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})

	t.Run("revoked key", func(t *testing.T) {
		apiKey := createTestAPIKey(t, testCtx.Store, "test-revoked")
		c := newClient(testCtx.TestServer, apiKey)

		id, err := c.Whoami(ctx)
		require.NoError(t, err)
		require.NoError(t, testCtx.Store.RevokeAPIKey(ctx, id.ID))

		_, err = c.Whoami(ctx)
		assertHTTPError(t, err, "UNAUTHORIZED")

		_, err = c.Push(ctx, uniqueProject("revoked"), templateDocument(t, project.FormatTOML, ""), "toml")
		assertHTTPError(t, err, "UNAUTHORIZED")
	})
}

// TestAuth_Whoami tests that a valid key reports its own name
func TestAuth_Whoami(t *testing.T) {
	apiKey := createTestAPIKey(t, testCtx.Store, "test-whoami")
	id, err := newClient(testCtx.TestServer, apiKey).Whoami(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-whoami", id.Name)
	assert.NotEmpty(t, id.ID)
}

// TestAuth_ProjectOwnership tests that only the first publisher may modify a project
func TestAuth_ProjectOwnership(t *testing.T) {
	ctx := context.Background()
	owner := newClient(testCtx.TestServer, createTestAPIKey(t, testCtx.Store, "test-owner"))
	other := newClient(testCtx.TestServer, createTestAPIKey(t, testCtx.Store, "test-other"))

	name := uniqueProject("owned")
	snap := pushTemplate(t, owner, name, "")

	t.Run("other key cannot push", func(t *testing.T) {
		_, err := other.Push(ctx, name, templateDocument(t, project.FormatTOML, "./other"), "toml")
		assertHTTPError(t, err, "FORBIDDEN")
	})

	t.Run("other key cannot delete", func(t *testing.T) {
		err := other.Delete(ctx, name, snap.ID)
		assertHTTPError(t, err, "FORBIDDEN")
	})

	t.Run("owner can push again", func(t *testing.T) {
		next := pushTemplate(t, owner, name, "./src")
		assert.Equal(t, snap.Revision+1, next.Revision)
	})
}
