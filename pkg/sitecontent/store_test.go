package sitecontent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/site-content/pkg/sitecontent"
	"github.com/tendant/site-content/pkg/sitecontent/storage/memory"
)

func setupStoreTest(t *testing.T, withRemote bool) (*sitecontent.ContentStore, *memory.Local, *memory.Remote) {
	t.Helper()
	local := memory.NewLocal([]byte(sampleDocument))
	if !withRemote {
		return sitecontent.NewContentStore(local, nil), local, nil
	}
	remote := memory.NewRemote()
	return sitecontent.NewContentStore(local, remote), local, remote
}

func TestContentStore_Read(t *testing.T) {
	store, _, _ := setupStoreTest(t, false)

	doc, err := store.Read(context.Background())
	require.NoError(t, err)
	v, err := doc.Get("seo.title")
	require.NoError(t, err)
	assert.Equal(t, "Casa", v)
}

func TestContentStore_ReadUnreadable(t *testing.T) {
	tests := []struct {
		name  string
		local *memory.Local
	}{
		{"missing", memory.NewLocal(nil)},
		{"invalid json", memory.NewLocal([]byte(`{"seo":`))},
		{"not an object", memory.NewLocal([]byte(`[]`))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := sitecontent.NewContentStore(tt.local, nil)
			_, err := store.Read(context.Background())
			assert.ErrorIs(t, err, sitecontent.ErrUnreadable)
		})
	}
}

func TestContentStore_WriteDegraded(t *testing.T) {
	store, local, _ := setupStoreTest(t, false)
	ctx := context.Background()

	doc := parseSample(t)
	next, err := doc.Set("seo.title", "Nuovo")
	require.NoError(t, err)

	result, err := store.Write(ctx, next)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, sitecontent.WarningRemoteUnconfigured, result.Warning)

	data, err := local.ReadDocument(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Nuovo"`)
}

func TestContentStore_WriteCreatesThenUpdates(t *testing.T) {
	store, _, remote := setupStoreTest(t, true)
	ctx := context.Background()
	doc := parseSample(t)

	first, err := store.Write(ctx, doc)
	require.NoError(t, err)
	assert.False(t, first.Degraded)
	assert.NotEmpty(t, first.Revision)

	next, err := doc.Set("seo.title", "Nuovo")
	require.NoError(t, err)
	second, err := store.Write(ctx, next)
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision)

	commits := remote.Commits()
	require.Len(t, commits, 2)
	assert.Empty(t, commits[0].Revision)
	assert.Equal(t, first.Revision, commits[1].Revision)
	assert.Equal(t, sitecontent.DefaultCommitMessage, commits[1].Message)
	assert.Equal(t, sitecontent.DefaultContentPath, commits[1].Path)

	file, err := remote.GetFile(ctx, sitecontent.DefaultContentPath)
	require.NoError(t, err)
	readBack, err := sitecontent.ParseDocument(file.Content)
	require.NoError(t, err)
	assert.True(t, next.Equal(readBack))
}

func TestContentStore_WriteUnchanged(t *testing.T) {
	store, _, remote := setupStoreTest(t, true)
	ctx := context.Background()
	doc := parseSample(t)

	first, err := store.Write(ctx, doc)
	require.NoError(t, err)

	again, err := store.Write(ctx, doc)
	require.NoError(t, err)
	assert.True(t, again.Unchanged)
	assert.Equal(t, first.Revision, again.Revision)
	assert.Len(t, remote.Commits(), 1)
}

func TestContentStore_WriteLocalFailureIsNotFatal(t *testing.T) {
	store, local, remote := setupStoreTest(t, true)
	local.FailWrites(errors.New("read-only filesystem"))

	result, err := store.Write(context.Background(), parseSample(t))
	require.NoError(t, err)
	assert.Error(t, result.LocalErr)
	assert.False(t, result.Degraded)
	assert.Len(t, remote.Commits(), 1)
}

func TestContentStore_WriteNothingPersisted(t *testing.T) {
	store, local, _ := setupStoreTest(t, false)
	ctx := context.Background()
	local.FailWrites(errors.New("read-only filesystem"))

	next, err := parseSample(t).Set("seo.title", "Nuovo")
	require.NoError(t, err)

	result, err := store.Write(ctx, next)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, sitecontent.ErrStorageUnavailable)
	assert.Contains(t, err.Error(), "read-only filesystem")

	local.FailWrites(nil)
	data, err := local.ReadDocument(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"Nuovo"`)
}

func TestContentStore_WriteRemoteFailure(t *testing.T) {
	store, local, remote := setupStoreTest(t, true)
	ctx := context.Background()
	remote.FailPuts(&sitecontent.RemoteError{Store: "memory", Op: "put", StatusCode: 401, Message: "Bad credentials"})

	doc, err := parseSample(t).Set("seo.title", "Nuovo")
	require.NoError(t, err)

	_, err = store.Write(ctx, doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, sitecontent.ErrRemoteRejected)

	data, err := local.ReadDocument(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Nuovo"`, "local copy is not rolled back")
}

func TestContentStore_WriteConflict(t *testing.T) {
	store, _, remote := setupStoreTest(t, true)
	ctx := context.Background()
	doc := parseSample(t)

	_, err := store.Write(ctx, doc)
	require.NoError(t, err)

	// another writer moved the revision after this store read it
	stale := &staleRemote{Remote: remote, revision: "stale-revision"}
	staleStore := sitecontent.NewContentStore(memory.NewLocal(nil), stale)

	next, err := doc.Set("seo.title", "Nuovo")
	require.NoError(t, err)
	_, err = staleStore.Write(ctx, next)
	require.Error(t, err)
	assert.ErrorIs(t, err, sitecontent.ErrRevisionConflict)
	assert.Len(t, remote.Commits(), 1)
}

func TestContentStore_WriteRemoteReadFailure(t *testing.T) {
	store, _, remote := setupStoreTest(t, true)
	remote.FailGets(&sitecontent.RemoteError{Store: "memory", Op: "get", StatusCode: 500, Message: "boom"})

	_, err := store.Write(context.Background(), parseSample(t))
	assert.ErrorIs(t, err, sitecontent.ErrRemoteRejected)
	assert.Empty(t, remote.Commits())
}

func TestContentStore_Options(t *testing.T) {
	remote := memory.NewRemote()
	store := sitecontent.NewContentStore(memory.NewLocal(nil), remote,
		sitecontent.WithRemotePath("data/site.json"),
		sitecontent.WithCommitMessage("custom message"))

	assert.Equal(t, "data/site.json", store.Path())
	assert.Equal(t, remote, store.Remote())

	_, err := store.Write(context.Background(), parseSample(t))
	require.NoError(t, err)
	commits := remote.Commits()
	require.Len(t, commits, 1)
	assert.Equal(t, "data/site.json", commits[0].Path)
	assert.Equal(t, "custom message", commits[0].Message)
}

// staleRemote reports an outdated revision, as if another writer committed
// after this process read the file
type staleRemote struct {
	*memory.Remote
	revision string
}

func (s *staleRemote) GetFile(ctx context.Context, path string) (*sitecontent.RemoteFile, error) {
	f, err := s.Remote.GetFile(ctx, path)
	if err != nil {
		return nil, err
	}
	f.Revision = s.revision
	return f, nil
}
