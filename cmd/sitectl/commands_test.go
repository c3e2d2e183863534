package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// setupCLITest points the CLI at a temporary content file and a local git
// repository
func setupCLITest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	contentFile := filepath.Join(dir, "content", "site.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(contentFile), 0o755))
	require.NoError(t, os.WriteFile(contentFile, []byte(`{"seo": {"title": "Casa"}, "events": []}`), 0o644))

	t.Setenv("CONTENT_FILE", contentFile)
	t.Setenv("PUBLIC_DIR", filepath.Join(dir, "public"))
	t.Setenv("REMOTE_DRIVER", "gitrepo")
	t.Setenv("GIT_REPO_DIR", filepath.Join(dir, "repo"))
	t.Setenv("BLOB_DRIVER", "memory")
	t.Setenv("ENABLE_EVENT_LOGGING", "false")
	return dir
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestGetCommand(t *testing.T) {
	setupCLITest(t)

	out, err := runCLI(t, "", "get")
	require.NoError(t, err)
	assert.JSONEq(t, `{"seo": {"title": "Casa"}, "events": []}`, out)

	out, err = runCLI(t, "", "get", "seo.title")
	require.NoError(t, err)
	assert.JSONEq(t, `"Casa"`, out)

	_, err = runCLI(t, "", "get", "seo.missing")
	assert.ErrorIs(t, err, sitecontent.ErrPathNotFound)
}

func TestSetCommand(t *testing.T) {
	dir := setupCLITest(t)

	out, err := runCLI(t, "", "set", "seo.title", "Casa Nova")
	require.NoError(t, err)
	var result sitecontent.PublishResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, sitecontent.OutcomePublished, result.Outcome)
	assert.NotEmpty(t, result.Revision)

	data, err := os.ReadFile(filepath.Join(dir, "content", "site.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Casa Nova")

	t.Run("dry run", func(t *testing.T) {
		out, err := runCLI(t, "", "set", "--dry-run", "events", `[{"id": "e1"}]`)
		require.NoError(t, err)
		assert.Contains(t, out, `"e1"`)

		data, err := os.ReadFile(filepath.Join(dir, "content", "site.json"))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "e1")
	})
}

func TestPublishCommand(t *testing.T) {
	dir := setupCLITest(t)

	out, err := runCLI(t, `{"seo": {"title": "From stdin"}}`, "publish")
	require.NoError(t, err)
	assert.Contains(t, out, `"outcome": "published"`)

	data, err := os.ReadFile(filepath.Join(dir, "content", "site.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "From stdin")

	_, err = runCLI(t, `not json`, "publish")
	assert.Error(t, err)
}

func TestUploadCommand(t *testing.T) {
	dir := setupCLITest(t)

	t.Run("stores the file", func(t *testing.T) {
		path := filepath.Join(dir, "note.txt")
		require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

		out, err := runCLI(t, "", "upload", path)
		require.NoError(t, err)
		var asset sitecontent.Asset
		require.NoError(t, json.Unmarshal([]byte(out), &asset))
		assert.NotEmpty(t, asset.URL)
		assert.Equal(t, int64(5), asset.Size)
	})

	t.Run("rejects oversized files", func(t *testing.T) {
		path := filepath.Join(dir, "big.bin")
		require.NoError(t, os.WriteFile(path, make([]byte, sitecontent.MaxUploadSize+1), 0o644))

		_, err := runCLI(t, "", "upload", path)
		assert.ErrorIs(t, err, sitecontent.ErrUploadTooLarge)
	})
}

func TestCheckCommand(t *testing.T) {
	setupCLITest(t)

	out, err := runCLI(t, "", "check")
	require.NoError(t, err)
	var report sitecontent.ConnectivityReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.RemoteConfigured)
	assert.Equal(t, "gitrepo", report.RemoteStore)
	assert.True(t, report.BlobConfigured)
}

func TestEnvCommand(t *testing.T) {
	out, err := runCLI(t, "", "env")
	require.NoError(t, err)
	assert.Contains(t, out, "CONTENT_FILE")
	assert.Contains(t, out, "REMOTE_DRIVER")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, "Casa Nova", parseValue("Casa Nova"))
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, float64(3), parseValue("3"))
	assert.Equal(t, map[string]interface{}{"a": "b"}, parseValue(`{"a": "b"}`))
}
