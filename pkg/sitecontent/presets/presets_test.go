package presets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/site-content/pkg/sitecontent"
)

func TestNewDevelopment(t *testing.T) {
	t.Run("default configuration", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "dev-data")
		publisher, cleanup, err := NewDevelopment(WithDevDataDir(dir))
		require.NoError(t, err)
		require.NotNil(t, publisher)
		require.NotNil(t, cleanup)

		ctx := context.Background()
		doc, err := publisher.GetCurrentDocument(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, mustBytes(t, doc))

		require.NoError(t, publisher.ApplyEdit(ctx, "seo", map[string]string{"title": "Dev"}))
		result, err := publisher.Publish(ctx)
		require.NoError(t, err)
		assert.True(t, result.Published(), "development publishes commit to the local git repository")
		assert.NotEmpty(t, result.Revision)

		asset, err := publisher.UploadAsset(ctx, sitecontent.Upload{FileName: "note.txt", MediaType: "text/plain", Data: []byte("hello")})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(asset.URL, "/"))
		_, err = os.Stat(filepath.Join(dir, "public", asset.Key))
		assert.NoError(t, err)

		cleanup()
		_, err = os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "data directory should be removed after cleanup")
	})

	t.Run("keeps an existing document", func(t *testing.T) {
		dir := t.TempDir()
		contentFile := filepath.Join(dir, "content", "site.json")
		require.NoError(t, os.MkdirAll(filepath.Dir(contentFile), 0o755))
		require.NoError(t, os.WriteFile(contentFile, []byte(`{"seo": {"title": "Existing"}}`), 0o644))

		publisher, _, err := NewDevelopment(WithDevDataDir(dir), WithDevDocument([]byte(`{"seo": {"title": "Seed"}}`)))
		require.NoError(t, err)

		doc, err := publisher.GetCurrentDocument(context.Background())
		require.NoError(t, err)
		title, err := doc.Get("seo.title")
		require.NoError(t, err)
		assert.Equal(t, "Existing", title)
	})
}

func TestNewTesting(t *testing.T) {
	t.Run("default configuration", func(t *testing.T) {
		env := NewTesting(t, WithTestDocument([]byte(`{"seo": {"title": "Casa"}}`)))
		ctx := context.Background()

		_, err := env.Publisher.GetCurrentDocument(ctx)
		require.NoError(t, err)
		result, err := env.Publisher.Publish(ctx)
		require.NoError(t, err)
		assert.True(t, result.Published())
		assert.Len(t, env.Remote.Commits(), 1)
	})

	t.Run("without remote", func(t *testing.T) {
		env := NewTesting(t, WithoutTestRemote())
		assert.Nil(t, env.Remote)

		ctx := context.Background()
		_, err := env.Publisher.GetCurrentDocument(ctx)
		require.NoError(t, err)
		result, err := env.Publisher.Publish(ctx)
		require.NoError(t, err)
		assert.True(t, result.Degraded())
	})

	t.Run("custom authorizer", func(t *testing.T) {
		deny := sitecontent.AuthorizerFunc(func(context.Context) error { return sitecontent.ErrUnauthorized })
		env := NewTesting(t, WithTestAuthorizer(deny))

		_, err := env.Publisher.GetCurrentDocument(context.Background())
		assert.ErrorIs(t, err, sitecontent.ErrUnauthorized)
	})

	t.Run("isolation", func(t *testing.T) {
		a := NewTesting(t)
		b := NewTesting(t)
		ctx := context.Background()

		_, err := a.Publisher.GetCurrentDocument(ctx)
		require.NoError(t, err)
		_, err = a.Publisher.Publish(ctx)
		require.NoError(t, err)

		assert.Len(t, a.Remote.Commits(), 1)
		assert.Empty(t, b.Remote.Commits())
	})
}

func TestNewProduction(t *testing.T) {
	t.Run("requires session secret", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "fallback-secret-key-change-me")
		_, _, err := NewProduction(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SESSION_SECRET")
	})

	t.Run("requires remote store", func(t *testing.T) {
		t.Setenv("SESSION_SECRET", "production-secret")
		t.Setenv("REMOTE_DRIVER", "github")
		t.Setenv("GITHUB_TOKEN", "")
		_, _, err := NewProduction(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not configured")
	})

	t.Run("git repository", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("SESSION_SECRET", "production-secret")
		t.Setenv("ADMIN_PASSWORD", "s3cret")
		t.Setenv("REMOTE_DRIVER", "gitrepo")
		t.Setenv("GIT_REPO_DIR", filepath.Join(dir, "repo"))
		t.Setenv("CONTENT_FILE", filepath.Join(dir, "site.json"))
		t.Setenv("PUBLIC_DIR", filepath.Join(dir, "public"))
		t.Setenv("BLOB_DRIVER", "memory")

		publisher, authService, err := NewProduction(context.Background())
		require.NoError(t, err)
		require.NotNil(t, publisher)
		require.NotNil(t, authService)

		ctx := context.Background()
		_, err = publisher.CheckConnectivity(ctx)
		assert.ErrorIs(t, err, sitecontent.ErrUnauthorized)

		sess, err := authService.Login(ctx, "s3cret")
		require.NoError(t, err)
		authed := authService.ContextWithToken(ctx, sess.Token)
		report, err := publisher.CheckConnectivity(authed)
		require.NoError(t, err)
		assert.True(t, report.RemoteConfigured)
		assert.Equal(t, "gitrepo", report.RemoteStore)
	})
}

func mustBytes(t *testing.T, doc *sitecontent.Document) string {
	t.Helper()
	data, err := doc.Bytes()
	require.NoError(t, err)
	return string(data)
}
