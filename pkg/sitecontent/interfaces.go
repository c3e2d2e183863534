package sitecontent

import (
	"context"
	"io"
)

// LocalStore is the fast working copy of the content document
type LocalStore interface {
	// ReadDocument returns the raw JSON bytes of the document
	ReadDocument(ctx context.Context) ([]byte, error)

	// WriteDocument replaces the document with the given bytes
	WriteDocument(ctx context.Context, data []byte) error
}

// RemoteStore is the durable, authoritative store for published files.
// A nil RemoteStore means no remote credentials are configured.
type RemoteStore interface {
	// Name identifies the store in logs and errors
	Name() string

	// GetFile returns the file content and its revision marker.
	// It returns an error matching ErrRemoteNotFound when the file does not exist.
	GetFile(ctx context.Context, path string) (*RemoteFile, error)

	// PutFile creates or updates a file. When req.Revision is non-empty the write
	// only succeeds if the current revision still equals it; otherwise the error
	// matches ErrRevisionConflict.
	PutFile(ctx context.Context, req PutFileRequest) (*RemoteFile, error)
}

// RemoteChecker is implemented by remote stores that can report connectivity
type RemoteChecker interface {
	Check(ctx context.Context) (*RemoteStatus, error)
}

// BlobStore is an object store that returns public URLs for uploaded binaries
type BlobStore interface {
	// Put uploads the object in a single call and returns its public URL
	Put(ctx context.Context, reader io.Reader, params UploadParams) (string, error)
}

// AssetStore writes binaries under the local public asset directory
type AssetStore interface {
	// WriteAsset stores data at the given path relative to the public root
	WriteAsset(ctx context.Context, relPath string, data []byte) error
}

// Authorizer is the opaque "is this request authorized" predicate
type Authorizer interface {
	Authorize(ctx context.Context) error
}

// AuthorizerFunc adapts a function to the Authorizer interface
type AuthorizerFunc func(ctx context.Context) error

// Authorize calls f(ctx)
func (f AuthorizerFunc) Authorize(ctx context.Context) error {
	return f(ctx)
}

// AllowAll returns an Authorizer that accepts every caller. It is meant for
// local operator tooling and tests.
func AllowAll() Authorizer {
	return AuthorizerFunc(func(context.Context) error { return nil })
}

// EventSink receives notifications about publish and ingestion activity
type EventSink interface {
	// DocumentPublished is fired after every publish attempt that reached storage
	DocumentPublished(ctx context.Context, result *PublishResult) error

	// AssetIngested is fired when an asset has been stored
	AssetIngested(ctx context.Context, asset *Asset) error
}

// RemoteFile is a file as held by a RemoteStore
type RemoteFile struct {
	Path     string
	Content  []byte
	Revision string
}

// PutFileRequest contains parameters for writing a file to a RemoteStore
type PutFileRequest struct {
	Path     string
	Content  []byte
	Message  string
	Revision string // empty means no revision constraint (first write)
}

// UploadParams contains parameters for uploading an object to a BlobStore
type UploadParams struct {
	ObjectKey string
	MimeType  string
	Size      int64
}

// RemoteStatus describes the reachability of a remote store
type RemoteStatus struct {
	Connected   bool            `json:"connected"`
	Message     string          `json:"message"`
	Permissions map[string]bool `json:"permissions,omitempty"`
}
