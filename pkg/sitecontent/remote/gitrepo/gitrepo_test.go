package gitrepo

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/site-content/pkg/sitecontent"
)

func setupRepoTest(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{Dir: filepath.Join(t.TempDir(), "site")})
	require.NoError(t, err)
	return store
}

func countCommits(t *testing.T, store *Store) int {
	t.Helper()
	iter, err := store.repo.Log(&git.LogOptions{})
	require.NoError(t, err)
	n := 0
	require.NoError(t, iter.ForEach(func(*object.Commit) error {
		n++
		return nil
	}))
	return n
}

func TestOpen_InitializesRepository(t *testing.T) {
	store := setupRepoTest(t)

	head, err := store.repo.Head()
	require.NoError(t, err)
	assert.Equal(t, "refs/heads/main", head.Name().String())
	assert.Equal(t, 1, countCommits(t, store))

	_, err = store.GetFile(context.Background(), "content/site.json")
	assert.ErrorIs(t, err, sitecontent.ErrRemoteNotFound)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.Error(t, err)
}

func TestStore_PutAndGet(t *testing.T) {
	store := setupRepoTest(t)
	ctx := context.Background()

	created, err := store.PutFile(ctx, sitecontent.PutFileRequest{
		Path:    "content/site.json",
		Content: []byte(`{"events":[]}`),
		Message: "Admin: update content/site.json",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.Revision)

	got, err := store.GetFile(ctx, "content/site.json")
	require.NoError(t, err)
	assert.Equal(t, `{"events":[]}`, string(got.Content))
	assert.Equal(t, created.Revision, got.Revision)

	updated, err := store.PutFile(ctx, sitecontent.PutFileRequest{
		Path:     "content/site.json",
		Content:  []byte(`{"events":[{"date":"2024-01-01"}]}`),
		Message:  "Admin: update content/site.json",
		Revision: got.Revision,
	})
	require.NoError(t, err)
	assert.NotEqual(t, created.Revision, updated.Revision)
	assert.Equal(t, 3, countCommits(t, store))

	head, err := store.repo.Head()
	require.NoError(t, err)
	commitObj, err := store.repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "Admin: update content/site.json", commitObj.Message)
	assert.Equal(t, "Site Admin", commitObj.Author.Name)
}

func TestStore_RevisionConflicts(t *testing.T) {
	store := setupRepoTest(t)
	ctx := context.Background()

	first, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v1"), Message: "m"})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  sitecontent.PutFileRequest
	}{
		{"create over existing", sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v2"), Message: "m"}},
		{"stale revision", sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v2"), Message: "m", Revision: "0000000000000000000000000000000000000000"}},
		{"revision for missing file", sitecontent.PutFileRequest{Path: "content/other.json", Content: []byte("v2"), Message: "m", Revision: first.Revision}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.PutFile(ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, sitecontent.ErrRevisionConflict)
			assert.ErrorIs(t, err, sitecontent.ErrRemoteRejected)
		})
	}
	assert.Equal(t, 2, countCommits(t, store))
}

func TestStore_IdenticalContentDoesNotCommit(t *testing.T) {
	store := setupRepoTest(t)
	ctx := context.Background()

	first, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("same"), Message: "m"})
	require.NoError(t, err)

	again, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("same"), Message: "m", Revision: first.Revision})
	require.NoError(t, err)
	assert.Equal(t, first.Revision, again.Revision)
	assert.Equal(t, 2, countCommits(t, store))
}

func TestStore_BinaryAsset(t *testing.T) {
	store := setupRepoTest(t)
	ctx := context.Background()
	data := []byte{0xff, 0xd8, 0xff, 0x00, 0x01, 0x02}

	_, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "public/img/1_photo.jpg", Content: data, Message: "Admin: upload asset photo.jpg"})
	require.NoError(t, err)

	got, err := store.GetFile(ctx, "public/img/1_photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, data, got.Content)
}

func TestStore_RejectsEscapingPaths(t *testing.T) {
	store := setupRepoTest(t)

	_, err := store.PutFile(context.Background(), sitecontent.PutFileRequest{Path: "../outside.txt", Content: []byte("x"), Message: "m"})
	assert.Error(t, err)
}

func TestStore_ReopenKeepsHistory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	ctx := context.Background()

	store, err := Open(ctx, Config{Dir: dir})
	require.NoError(t, err)
	created, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v1"), Message: "m"})
	require.NoError(t, err)

	reopened, err := Open(ctx, Config{Dir: dir})
	require.NoError(t, err)
	got, err := reopened.GetFile(ctx, "content/site.json")
	require.NoError(t, err)
	assert.Equal(t, created.Revision, got.Revision)
}

func TestStore_PushFailureRollsBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "site")
	ctx := context.Background()

	_, err := Open(ctx, Config{Dir: dir})
	require.NoError(t, err)

	store, err := Open(ctx, Config{Dir: dir, RemoteURL: filepath.Join(t.TempDir(), "missing.git")})
	require.NoError(t, err)

	_, err = store.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v1"), Message: "m"})
	require.Error(t, err)

	_, err = store.GetFile(ctx, "content/site.json")
	assert.ErrorIs(t, err, sitecontent.ErrRemoteNotFound)
	assert.Equal(t, 1, countCommits(t, store))
}

func TestStore_ConcurrentAssetCommits(t *testing.T) {
	store := setupRepoTest(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "public/img/" + name + ".jpg", Content: []byte(name), Message: "m"})
			errs <- err
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 6, countCommits(t, store))
}

func TestStore_Check(t *testing.T) {
	store := setupRepoTest(t)

	status, err := store.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.False(t, status.Permissions["push"])
}
