package memory_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/site-content/pkg/sitecontent"
	memorystorage "github.com/tendant/site-content/pkg/sitecontent/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New("https://cdn.example.com")
	ctx := context.Background()

	t.Run("Put", func(t *testing.T) {
		url, err := backend.Put(ctx, strings.NewReader("hello"), sitecontent.UploadParams{
			ObjectKey: "1_a.jpg",
			MimeType:  "image/jpeg",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/1_a.jpg", url)

		data, mimeType, err := backend.Get("1_a.jpg")
		require.NoError(t, err)
		assert.Equal(t, "hello", string(data))
		assert.Equal(t, "image/jpeg", mimeType)
	})

	t.Run("DefaultMimeType", func(t *testing.T) {
		require.NoError(t, backend.WriteAsset(ctx, "img/x.bin", []byte{1, 2}))
		_, mimeType, err := backend.Get("img/x.bin")
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", mimeType)
	})

	t.Run("Missing", func(t *testing.T) {
		_, _, err := backend.Get("nope")
		assert.Error(t, err)
	})

	assert.Equal(t, 2, backend.Len())
}

func TestMemoryBackend_DefaultURL(t *testing.T) {
	backend := memorystorage.New("")
	url, err := backend.Put(context.Background(), strings.NewReader("x"), sitecontent.UploadParams{ObjectKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "memory://k", url)
}

func TestLocal(t *testing.T) {
	ctx := context.Background()
	local := memorystorage.NewLocal(nil)

	_, err := local.ReadDocument(ctx)
	assert.Error(t, err)

	require.NoError(t, local.WriteDocument(ctx, []byte(`{}`)))
	data, err := local.ReadDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	local.FailWrites(errors.New("disk full"))
	assert.Error(t, local.WriteDocument(ctx, []byte(`{"a":1}`)))

	data, err = local.ReadDocument(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))
}

func TestRemote_RevisionChecks(t *testing.T) {
	ctx := context.Background()
	remote := memorystorage.NewRemote()

	_, err := remote.GetFile(ctx, "content/site.json")
	assert.ErrorIs(t, err, sitecontent.ErrRemoteNotFound)

	first, err := remote.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v1")})
	require.NoError(t, err)
	assert.NotEmpty(t, first.Revision)

	t.Run("CreateOverExisting", func(t *testing.T) {
		_, err := remote.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v2")})
		assert.ErrorIs(t, err, sitecontent.ErrRevisionConflict)
		assert.ErrorIs(t, err, sitecontent.ErrRemoteRejected)
	})

	t.Run("StaleRevision", func(t *testing.T) {
		_, err := remote.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v2"), Revision: "stale"})
		assert.ErrorIs(t, err, sitecontent.ErrRevisionConflict)
	})

	t.Run("MatchingRevision", func(t *testing.T) {
		second, err := remote.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v2"), Revision: first.Revision})
		require.NoError(t, err)
		assert.NotEqual(t, first.Revision, second.Revision)

		got, err := remote.GetFile(ctx, "content/site.json")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got.Content))
		assert.Equal(t, second.Revision, got.Revision)
	})

	assert.Len(t, remote.Commits(), 2)
}

func TestRemote_FailureInjection(t *testing.T) {
	ctx := context.Background()
	remote := memorystorage.NewRemote()
	rev := remote.Seed("a.txt", []byte("a"))

	remote.FailGets(errors.New("boom"))
	_, err := remote.GetFile(ctx, "a.txt")
	assert.EqualError(t, err, "boom")
	remote.FailGets(nil)

	remote.FailPuts(&sitecontent.RemoteError{Store: "memory", Op: "put", Path: "a.txt", StatusCode: 500, Message: "server error"})
	_, err = remote.PutFile(ctx, sitecontent.PutFileRequest{Path: "a.txt", Content: []byte("b"), Revision: rev})
	assert.ErrorIs(t, err, sitecontent.ErrRemoteRejected)
	assert.Empty(t, remote.Commits())
}

func TestRemoteConcurrency(t *testing.T) {
	ctx := context.Background()
	remote := memorystorage.NewRemote()

	const numGoroutines = 10
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			path := fmt.Sprintf("public/img/%d_photo.jpg", id)
			_, err := remote.PutFile(ctx, sitecontent.PutFileRequest{Path: path, Content: []byte("x")})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, remote.Commits(), numGoroutines)
}
