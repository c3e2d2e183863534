// Package postgres keeps published files in a PostgreSQL table. Each row
// carries an opaque revision that changes on every write, so concurrent
// publishers are detected the same way the git-backed stores detect them.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/site-content/pkg/sitecontent"
)

const storeName = "postgres"

// DBTX is the subset of pgxpool.Pool and pgx.Tx the store needs
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Store is a sitecontent.RemoteStore backed by a site_files table
type Store struct {
	db    DBTX
	table string
	now   func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithTable overrides the table name (default: site_files)
func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// New wraps an existing connection or pool
func New(db DBTX, opts ...Option) *Store {
	s := &Store{db: db, table: "site_files", now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPool connects to databaseURL and verifies the connection
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the files table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			path       TEXT PRIMARY KEY,
			content    BYTEA NOT NULL,
			revision   TEXT NOT NULL,
			message    TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, pgx.Identifier{s.table}.Sanitize()))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", s.table, err)
	}
	return nil
}

// Name implements sitecontent.RemoteStore
func (s *Store) Name() string { return storeName }

// GetFile implements sitecontent.RemoteStore
func (s *Store) GetFile(ctx context.Context, path string) (*sitecontent.RemoteFile, error) {
	query := fmt.Sprintf(`SELECT content, revision FROM %s WHERE path = $1`, pgx.Identifier{s.table}.Sanitize())

	file := &sitecontent.RemoteFile{Path: path}
	err := s.db.QueryRow(ctx, query, path).Scan(&file.Content, &file.Revision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", path, sitecontent.ErrRemoteNotFound)
		}
		return nil, &sitecontent.RemoteError{Store: storeName, Op: "get", Path: path, Err: err}
	}
	return file, nil
}

// PutFile implements sitecontent.RemoteStore. An empty revision inserts the
// row and fails if it exists; otherwise the row is only updated while its
// revision still matches.
func (s *Store) PutFile(ctx context.Context, req sitecontent.PutFileRequest) (*sitecontent.RemoteFile, error) {
	table := pgx.Identifier{s.table}.Sanitize()
	revision := uuid.NewString()

	var (
		tag pgconn.CommandTag
		err error
	)
	if req.Revision == "" {
		tag, err = s.db.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (path, content, revision, message, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (path) DO NOTHING`, table),
			req.Path, req.Content, revision, req.Message, s.now())
	} else {
		tag, err = s.db.Exec(ctx, fmt.Sprintf(`
			UPDATE %s SET content = $2, revision = $3, message = $4, updated_at = $5
			WHERE path = $1 AND revision = $6`, table),
			req.Path, req.Content, revision, req.Message, s.now(), req.Revision)
	}
	if err != nil {
		return nil, &sitecontent.RemoteError{Store: storeName, Op: "put", Path: req.Path, Err: err}
	}
	if tag.RowsAffected() == 0 {
		return nil, &sitecontent.RemoteError{
			Store:   storeName,
			Op:      "put",
			Path:    req.Path,
			Message: "revision mismatch",
			Err:     sitecontent.ErrRevisionConflict,
		}
	}

	return &sitecontent.RemoteFile{Path: req.Path, Content: req.Content, Revision: revision}, nil
}

// Check implements sitecontent.RemoteChecker
func (s *Store) Check(ctx context.Context) (*sitecontent.RemoteStatus, error) {
	var count int64
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, pgx.Identifier{s.table}.Sanitize())
	if err := s.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return nil, &sitecontent.RemoteError{Store: storeName, Op: "check", Path: s.table, Err: err}
	}
	return &sitecontent.RemoteStatus{
		Connected:   true,
		Message:     fmt.Sprintf("Connected to %s (%d files)", s.table, count),
		Permissions: map[string]bool{"admin": false, "push": true, "pull": true},
	}, nil
}
