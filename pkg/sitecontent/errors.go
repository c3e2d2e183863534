package sitecontent

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrUnauthorized indicates the authorization predicate rejected the caller
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnreadable indicates the local document copy is missing or not valid JSON
	ErrUnreadable = errors.New("content document unreadable")

	// ErrPathNotFound indicates an edit path does not resolve inside the document
	ErrPathNotFound = errors.New("path not found")

	// ErrStorageUnavailable indicates the selected backend has no write credential
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrRemoteRejected indicates the remote store answered with an error
	ErrRemoteRejected = errors.New("remote store rejected the request")

	// ErrRevisionConflict indicates the remote revision moved since it was read
	ErrRevisionConflict = errors.New("revision conflict")

	// ErrRemoteNotFound indicates the requested file does not exist remotely
	ErrRemoteNotFound = errors.New("remote file not found")

	// ErrOptimizationFailed indicates the image transform failed; callers fall back to the original bytes
	ErrOptimizationFailed = errors.New("image optimization failed")

	// ErrNoDocument indicates no document has been loaded into the edit session
	ErrNoDocument = errors.New("no document loaded")

	// ErrUploadTooLarge indicates an upload is above MaxUploadSize
	ErrUploadTooLarge = errors.New("upload too large")

	// ErrInvalidUpload indicates an upload is missing its data or file name
	ErrInvalidUpload = errors.New("invalid upload")
)

// PathError reports an edit path that could not be resolved
type PathError struct {
	Path    string
	Segment string
	Reason  string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path %q: segment %q: %s", e.Path, e.Segment, e.Reason)
}

func (e *PathError) Unwrap() error {
	return ErrPathNotFound
}

// RemoteError represents a failure reported by a remote document or asset store.
// It matches ErrRemoteRejected and unwraps to the underlying cause.
type RemoteError struct {
	Store      string
	Op         string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s %s failed (status %d): %s", e.Store, e.Op, e.Path, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s %s %s failed: %s", e.Store, e.Op, e.Path, msg)
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrRemoteRejected
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to storage operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
