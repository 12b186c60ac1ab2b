package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/buildcfg/internal/config"
	"github.com/pendergraft/buildcfg/internal/project"
	apiserver "github.com/pendergraft/buildcfg/internal/server"
	"github.com/pendergraft/buildcfg/internal/storage"
	"github.com/pendergraft/buildcfg/pkg/client"
)

// newRegistry starts an in-memory registry that requires API keys for
// writes and returns its URL and a valid key.
func newRegistry(t *testing.T) (string, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg, err := config.LoadFrom(func(key string) (string, bool) {
		if key == "AUTH_TYPE" {
			return "api-key", true
		}
		return "", false
	})
	require.NoError(t, err)

	store, err := storage.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	key, err := store.CreateAPIKey(context.Background(), "ci")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := apiserver.New(ctx, cfg, store, logger)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL, key
}

func TestPushPullHistory(t *testing.T) {
	_, dir := isolate(t)
	url, key := newRegistry(t)
	ctx := context.Background()
	c := client.New(url, key)

	require.NoError(t, runInit(&bytes.Buffer{}, dir, "toml", false))

	var out bytes.Buffer
	require.NoError(t, runPush(ctx, &out, c, "token-sale", true))
	assert.Contains(t, out.String(), "would be accepted")

	out.Reset()
	require.NoError(t, runPush(ctx, &out, c, "token-sale", false))
	assert.Contains(t, out.String(), "Pushed token-sale revision 1")

	out.Reset()
	require.NoError(t, runPush(ctx, &out, c, "token-sale", false))
	assert.Contains(t, out.String(), "Already up to date")

	// Switching the file format does not change the document.
	require.NoError(t, os.Remove(filepath.Join(dir, "buildcfg.toml")))
	require.NoError(t, runInit(&bytes.Buffer{}, dir, "json", false))
	out.Reset()
	require.NoError(t, runPush(ctx, &out, c, "token-sale", false))
	assert.Contains(t, out.String(), "Already up to date")

	t.Run("pull latest", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runPull(ctx, &out, c, "token-sale", "latest", project.FormatYAML, ""))

		doc, err := project.ParseDocument(out.Bytes(), project.FormatYAML)
		require.NoError(t, err)
		assert.Equal(t, project.Template().Fingerprint(), doc.Fingerprint())
	})

	t.Run("pull to file", func(t *testing.T) {
		var out bytes.Buffer
		path := filepath.Join(dir, "pulled.toml")
		require.NoError(t, runPull(ctx, &out, c, "token-sale", "latest", project.FormatTOML, path))
		assert.Contains(t, out.String(), "revision 1")

		t.Setenv("PRIVATE_KEY", devKey)
		r, err := project.LoadFile(path, project.OSEnv())
		require.NoError(t, err)
		accounts, err := r.RequireSigner(project.NetworkTest)
		require.NoError(t, err)
		assert.Equal(t, []string{devKey}, accounts)
	})

	t.Run("pull missing", func(t *testing.T) {
		err := runPull(ctx, &bytes.Buffer{}, c, "no-such-project", "latest", project.FormatTOML, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no snapshot latest")
	})

	t.Run("history", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runHistory(ctx, &out, c, "token-sale", client.ListOptions{Limit: 10}, false))
		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2)
		assert.True(t, strings.HasPrefix(lines[1], "1 "))
	})

	t.Run("projects", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runProjects(ctx, &out, c, client.ListOptions{}, false))
		assert.Contains(t, out.String(), "token-sale")
	})
}

func TestPush_RequiresKey(t *testing.T) {
	_, dir := isolate(t)
	url, _ := newRegistry(t)
	require.NoError(t, runInit(&bytes.Buffer{}, dir, "toml", false))

	err := runPush(context.Background(), &bytes.Buffer{}, client.New(url, ""), "token-sale", false)
	require.Error(t, err)
	assert.True(t, client.IsUnauthorized(err))
}

func TestPush_RefusesLiteralSecrets(t *testing.T) {
	_, dir := isolate(t)
	doc := strings.Replace(mustTemplate(t), "${ETHERSCAN}", "ABCDEF123456", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buildcfg.toml"), []byte(doc), 0644))

	// The client is never reached.
	err := runPush(context.Background(), &bytes.Buffer{}, client.New("http://127.0.0.1:1", ""), "token-sale", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etherscan.apiKey")
	assert.NotContains(t, err.Error(), "ABCDEF123456")
}

func mustTemplate(t *testing.T) string {
	t.Helper()
	data, err := project.EncodeDocument(project.Template(), project.FormatTOML)
	require.NoError(t, err)
	return string(data)
}
