package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// Backend is an in-memory implementation of sitecontent.BlobStore and
// sitecontent.AssetStore
type Backend struct {
	mu              sync.RWMutex
	objects         map[string][]byte
	objectsMimeType map[string]string
	urlPrefix       string
}

// New creates a new in-memory blob backend. URLs are urlPrefix + "/" + key;
// an empty prefix yields "memory://" URLs.
func New(urlPrefix string) *Backend {
	if urlPrefix == "" {
		urlPrefix = "memory:/"
	}
	return &Backend{
		objects:         make(map[string][]byte),
		objectsMimeType: make(map[string]string),
		urlPrefix:       urlPrefix,
	}
}

// Put stores the object and returns its URL
func (b *Backend) Put(ctx context.Context, reader io.Reader, params sitecontent.UploadParams) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[params.ObjectKey] = data
	mimeType := params.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	b.objectsMimeType[params.ObjectKey] = mimeType
	return b.urlPrefix + "/" + params.ObjectKey, nil
}

// WriteAsset stores a local asset
func (b *Backend) WriteAsset(ctx context.Context, relPath string, data []byte) error {
	_, err := b.Put(ctx, bytes.NewReader(data), sitecontent.UploadParams{ObjectKey: relPath})
	return err
}

// Get returns a stored object and its MIME type
func (b *Backend) Get(key string) ([]byte, string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, "", errors.New("object not found")
	}
	return data, b.objectsMimeType[key], nil
}

// Len returns the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}

// Local is an in-memory sitecontent.LocalStore
type Local struct {
	mu       sync.RWMutex
	data     []byte
	writeErr error
}

// NewLocal creates a local store holding data. A nil slice means the document
// does not exist yet.
func NewLocal(data []byte) *Local {
	return &Local{data: data}
}

// ReadDocument returns the stored document
func (l *Local) ReadDocument(ctx context.Context) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.data == nil {
		return nil, errors.New("document not found")
	}
	return append([]byte(nil), l.data...), nil
}

// WriteDocument replaces the stored document
func (l *Local) WriteDocument(ctx context.Context, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writeErr != nil {
		return l.writeErr
	}
	l.data = append([]byte(nil), data...)
	return nil
}

// FailWrites makes every following WriteDocument return err (nil resets)
func (l *Local) FailWrites(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeErr = err
}

// Remote is an in-memory sitecontent.RemoteStore with revision checking.
// Revisions are random UUIDs, so stale markers are always detected.
type Remote struct {
	mu      sync.Mutex
	files   map[string]*sitecontent.RemoteFile
	commits []sitecontent.PutFileRequest
	failPut error
	failGet error
}

// NewRemote creates an empty remote store
func NewRemote() *Remote {
	return &Remote{files: make(map[string]*sitecontent.RemoteFile)}
}

// Name implements sitecontent.RemoteStore
func (r *Remote) Name() string { return "memory" }

// GetFile implements sitecontent.RemoteStore
func (r *Remote) GetFile(ctx context.Context, path string) (*sitecontent.RemoteFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failGet != nil {
		return nil, r.failGet
	}
	f, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, sitecontent.ErrRemoteNotFound)
	}
	return copyFile(f), nil
}

// PutFile implements sitecontent.RemoteStore
func (r *Remote) PutFile(ctx context.Context, req sitecontent.PutFileRequest) (*sitecontent.RemoteFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failPut != nil {
		return nil, r.failPut
	}

	current, exists := r.files[req.Path]
	switch {
	case req.Revision == "" && exists:
		return nil, &sitecontent.RemoteError{Store: "memory", Op: "put", Path: req.Path, StatusCode: 422, Message: "file already exists", Err: sitecontent.ErrRevisionConflict}
	case req.Revision != "" && (!exists || current.Revision != req.Revision):
		return nil, &sitecontent.RemoteError{Store: "memory", Op: "put", Path: req.Path, StatusCode: 409, Message: "revision does not match", Err: sitecontent.ErrRevisionConflict}
	}

	f := &sitecontent.RemoteFile{
		Path:     req.Path,
		Content:  append([]byte(nil), req.Content...),
		Revision: uuid.NewString(),
	}
	r.files[req.Path] = f
	r.commits = append(r.commits, req)
	return copyFile(f), nil
}

// Seed stores a file without recording a commit and returns its revision
func (r *Remote) Seed(path string, content []byte) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	rev := uuid.NewString()
	r.files[path] = &sitecontent.RemoteFile{Path: path, Content: append([]byte(nil), content...), Revision: rev}
	return rev
}

// Commits returns the accepted write requests in order
func (r *Remote) Commits() []sitecontent.PutFileRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sitecontent.PutFileRequest(nil), r.commits...)
}

// FailPuts makes every following PutFile return err (nil resets)
func (r *Remote) FailPuts(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failPut = err
}

// FailGets makes every following GetFile return err (nil resets)
func (r *Remote) FailGets(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failGet = err
}

func copyFile(f *sitecontent.RemoteFile) *sitecontent.RemoteFile {
	return &sitecontent.RemoteFile{
		Path:     f.Path,
		Content:  append([]byte(nil), f.Content...),
		Revision: f.Revision,
	}
}
