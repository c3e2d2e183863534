package sitecontent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Default locations of the content document
const (
	DefaultContentPath   = "content/site.json"
	DefaultCommitMessage = "Admin: update content/site.json"
)

// WarningRemoteUnconfigured is reported with a degraded write
const WarningRemoteUnconfigured = "remote store credentials are not configured; content was saved locally only and the live site was not updated"

// WriteResult describes the outcome of a ContentStore write that did not fail
type WriteResult struct {
	// Degraded is true when only the local copy was written
	Degraded bool
	Warning  string
	// LocalErr holds the absorbed local write failure, if any
	LocalErr error
	// Revision is the remote revision after the write
	Revision string
	// Unchanged is true when the remote copy already held identical bytes
	Unchanged bool
}

// ContentStore reads the document from the local working copy and writes it to
// both the local copy and the remote store.
type ContentStore struct {
	local   LocalStore
	remote  RemoteStore
	path    string
	message string
	logger  *slog.Logger
}

// StoreOption configures a ContentStore
type StoreOption func(*ContentStore)

// WithRemotePath sets the repository path of the document
func WithRemotePath(path string) StoreOption {
	return func(s *ContentStore) {
		if path != "" {
			s.path = path
		}
	}
}

// WithCommitMessage sets the message attached to document commits
func WithCommitMessage(msg string) StoreOption {
	return func(s *ContentStore) {
		if msg != "" {
			s.message = msg
		}
	}
}

// WithStoreLogger sets the logger
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *ContentStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewContentStore creates a ContentStore. remote may be nil, which makes every
// write degraded.
func NewContentStore(local LocalStore, remote RemoteStore, opts ...StoreOption) *ContentStore {
	s := &ContentStore{
		local:   local,
		remote:  remote,
		path:    DefaultContentPath,
		message: DefaultCommitMessage,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Remote returns the configured remote store, or nil
func (s *ContentStore) Remote() RemoteStore {
	return s.remote
}

// Path returns the repository path of the document
func (s *ContentStore) Path() string {
	return s.path
}

// Read returns the document from the local working copy
func (s *ContentStore) Read(ctx context.Context) (*Document, error) {
	data, err := s.local.ReadDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return doc, nil
}

// Write stores doc locally (best effort) and then remotely. A nil remote store
// yields a degraded result, not an error, unless the local write also failed
// and nothing was stored. Any remote failure is returned as an error; the
// local copy is not rolled back.
func (s *ContentStore) Write(ctx context.Context, doc *Document) (*WriteResult, error) {
	data, err := doc.Bytes()
	if err != nil {
		return nil, err
	}

	result := &WriteResult{}
	if err := s.local.WriteDocument(ctx, data); err != nil {
		s.logger.Warn("Failed to write local content copy", "path", s.path, "error", err)
		result.LocalErr = err
	}

	if s.remote == nil {
		if result.LocalErr != nil {
			return nil, fmt.Errorf("%w: local write failed and no remote store is configured: %v", ErrStorageUnavailable, result.LocalErr)
		}
		result.Degraded = true
		result.Warning = WarningRemoteUnconfigured
		return result, nil
	}

	var revision string
	current, err := s.remote.GetFile(ctx, s.path)
	switch {
	case errors.Is(err, ErrRemoteNotFound):
		s.logger.Info("Remote content missing, creating it", "store", s.remote.Name(), "path", s.path)
	case err != nil:
		s.logger.Error("Failed to read remote content revision", "store", s.remote.Name(), "path", s.path, "error", err)
		return nil, err
	default:
		revision = current.Revision
		if bytes.Equal(current.Content, data) {
			result.Revision = revision
			result.Unchanged = true
			return result, nil
		}
	}

	written, err := s.remote.PutFile(ctx, PutFileRequest{
		Path:     s.path,
		Content:  data,
		Message:  s.message,
		Revision: revision,
	})
	if err != nil {
		s.logger.Error("Failed to commit remote content", "store", s.remote.Name(), "path", s.path, "revision", revision, "error", err)
		return nil, err
	}
	result.Revision = written.Revision
	return result, nil
}
