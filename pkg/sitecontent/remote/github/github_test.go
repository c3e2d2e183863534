package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// fakeGitHub implements the subset of the contents API the store uses
type fakeGitHub struct {
	mu       sync.Mutex
	files    map[string]string // path -> content
	shas     map[string]string // path -> sha
	nextSHA  int
	failPut  int
	requests []putBody
	authz    []string
}

type putBody struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{files: map[string]string{}, shas: map[string]string{}}
}

func (f *fakeGitHub) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authz = append(f.authz, r.Header.Get("Authorization"))

	if r.URL.Path == "/repos/acme/site" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"full_name":   "acme/site",
			"permissions": map[string]bool{"admin": false, "push": true, "pull": true},
		})
		return
	}

	const prefix = "/repos/acme/site/contents/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		f.writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)

	switch r.Method {
	case http.MethodGet:
		content, ok := f.files[path]
		if !ok {
			f.writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"type":     "file",
			"encoding": "base64",
			"path":     path,
			"sha":      f.shas[path],
			"content":  base64.StdEncoding.EncodeToString([]byte(content)),
		})
	case http.MethodPut:
		var body putBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			f.writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if f.failPut != 0 {
			f.writeError(w, f.failPut, "Server Error")
			return
		}
		current, exists := f.shas[path]
		if exists && body.SHA == "" {
			f.writeError(w, http.StatusUnprocessableEntity, "Invalid request.\n\n\"sha\" wasn't supplied.")
			return
		}
		if body.SHA != "" && body.SHA != current {
			f.writeError(w, http.StatusConflict, "content/site.json does not match "+body.SHA)
			return
		}
		data, err := base64.StdEncoding.DecodeString(body.Content)
		if err != nil {
			f.writeError(w, http.StatusBadRequest, "bad content")
			return
		}
		f.nextSHA++
		sha := "sha-" + string(rune('0'+f.nextSHA))
		f.files[path] = string(data)
		f.shas[path] = sha
		f.requests = append(f.requests, body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": map[string]string{"path": path, "sha": sha},
			"commit":  map[string]string{"sha": "commit-" + sha},
		})
	default:
		f.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func setupGitHubTest(t *testing.T) (*Store, *fakeGitHub) {
	t.Helper()
	fake := newFakeGitHub()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := New(Config{
		Token:   "ghp_test",
		Owner:   "acme",
		Repo:    "site",
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return store, fake
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{Owner: "acme", Repo: "site"})
	assert.Error(t, err)

	store, err := New(Config{Token: "t", Owner: "acme", Repo: "site"})
	require.NoError(t, err)
	assert.Equal(t, "main", store.config.Branch)
	assert.Equal(t, "github", store.Name())
}

func TestStore_GetFileNotFound(t *testing.T) {
	store, _ := setupGitHubTest(t)

	_, err := store.GetFile(context.Background(), "content/site.json")
	assert.ErrorIs(t, err, sitecontent.ErrRemoteNotFound)
}

func TestStore_CreateThenUpdate(t *testing.T) {
	store, fake := setupGitHubTest(t)
	ctx := context.Background()

	created, err := store.PutFile(ctx, sitecontent.PutFileRequest{
		Path:    "content/site.json",
		Content: []byte(`{"events":[]}`),
		Message: "Admin: update content/site.json",
	})
	require.NoError(t, err)
	assert.Equal(t, "sha-1", created.Revision)

	got, err := store.GetFile(ctx, "content/site.json")
	require.NoError(t, err)
	assert.Equal(t, `{"events":[]}`, string(got.Content))
	assert.Equal(t, "sha-1", got.Revision)

	updated, err := store.PutFile(ctx, sitecontent.PutFileRequest{
		Path:     "content/site.json",
		Content:  []byte(`{"events":[1]}`),
		Message:  "Admin: update content/site.json",
		Revision: got.Revision,
	})
	require.NoError(t, err)
	assert.Equal(t, "sha-2", updated.Revision)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.requests, 2)
	assert.Equal(t, "main", fake.requests[0].Branch)
	assert.Empty(t, fake.requests[0].SHA)
	assert.Equal(t, "sha-1", fake.requests[1].SHA)
	assert.Equal(t, "Admin: update content/site.json", fake.requests[1].Message)
	assert.Contains(t, fake.authz[0], "ghp_test")
}

func TestStore_Conflicts(t *testing.T) {
	store, _ := setupGitHubTest(t)
	ctx := context.Background()

	_, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v1"), Message: "m"})
	require.NoError(t, err)

	t.Run("StaleSHA", func(t *testing.T) {
		_, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v2"), Message: "m", Revision: "old"})
		require.Error(t, err)
		assert.ErrorIs(t, err, sitecontent.ErrRevisionConflict)
		assert.ErrorIs(t, err, sitecontent.ErrRemoteRejected)

		var remoteErr *sitecontent.RemoteError
		require.True(t, errors.As(err, &remoteErr))
		assert.Equal(t, http.StatusConflict, remoteErr.StatusCode)
	})

	t.Run("CreateOverExisting", func(t *testing.T) {
		_, err := store.PutFile(ctx, sitecontent.PutFileRequest{Path: "content/site.json", Content: []byte("v2"), Message: "m"})
		assert.ErrorIs(t, err, sitecontent.ErrRevisionConflict)
	})
}

func TestStore_ServerError(t *testing.T) {
	store, fake := setupGitHubTest(t)
	fake.failPut = http.StatusInternalServerError

	_, err := store.PutFile(context.Background(), sitecontent.PutFileRequest{Path: "public/img/1_a.jpg", Content: []byte{0xff, 0xd8}, Message: "Admin: upload asset a.jpg"})
	require.Error(t, err)
	assert.ErrorIs(t, err, sitecontent.ErrRemoteRejected)
	assert.NotErrorIs(t, err, sitecontent.ErrRevisionConflict)
	assert.Contains(t, err.Error(), "Server Error")
}

func TestStore_Check(t *testing.T) {
	store, _ := setupGitHubTest(t)

	status, err := store.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, "Connected to acme/site", status.Message)
	assert.Equal(t, map[string]bool{"admin": false, "push": true, "pull": true}, status.Permissions)
}
