// Package github stores published files in a GitHub repository through the
// contents API. The blob SHA of a file is its revision marker.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// Config options for the GitHub store
type Config struct {
	Token       string
	Owner       string
	Repo        string
	Branch      string // default: main
	BaseURL     string // API base URL; empty means api.github.com
	AuthorName  string // Optional committer name
	AuthorEmail string // Optional committer email
	HTTPClient  *http.Client
}

// Store is a sitecontent.RemoteStore backed by the GitHub contents API
type Store struct {
	client *github.Client
	config Config
}

// New creates a GitHub store
func New(config Config) (*Store, error) {
	if config.Token == "" || config.Owner == "" || config.Repo == "" {
		return nil, errors.New("github token, owner and repository are required")
	}
	if config.Branch == "" {
		config.Branch = "main"
	}

	client := github.NewClient(config.HTTPClient).WithAuthToken(config.Token)
	if config.BaseURL != "" {
		base := config.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = u
	}

	return &Store{client: client, config: config}, nil
}

// Name implements sitecontent.RemoteStore
func (s *Store) Name() string { return "github" }

// GetFile implements sitecontent.RemoteStore
func (s *Store) GetFile(ctx context.Context, path string) (*sitecontent.RemoteFile, error) {
	file, _, resp, err := s.client.Repositories.GetContents(ctx, s.config.Owner, s.config.Repo, path,
		&github.RepositoryContentGetOptions{Ref: s.config.Branch})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", path, sitecontent.ErrRemoteNotFound)
		}
		return nil, s.remoteError("get", path, err)
	}
	if file == nil {
		return nil, &sitecontent.RemoteError{Store: "github", Op: "get", Path: path, Message: "path is a directory"}
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, &sitecontent.RemoteError{Store: "github", Op: "get", Path: path, Message: "failed to decode content", Err: err}
	}
	return &sitecontent.RemoteFile{
		Path:     path,
		Content:  []byte(content),
		Revision: file.GetSHA(),
	}, nil
}

// PutFile implements sitecontent.RemoteStore. An empty revision creates the
// file; GitHub refuses to create over an existing file, which surfaces as a
// revision conflict.
func (s *Store) PutFile(ctx context.Context, req sitecontent.PutFileRequest) (*sitecontent.RemoteFile, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(req.Message),
		Content: req.Content,
		Branch:  github.String(s.config.Branch),
	}
	if s.config.AuthorName != "" && s.config.AuthorEmail != "" {
		opts.Committer = &github.CommitAuthor{
			Name:  github.String(s.config.AuthorName),
			Email: github.String(s.config.AuthorEmail),
		}
	}

	var (
		res *github.RepositoryContentResponse
		err error
	)
	if req.Revision == "" {
		res, _, err = s.client.Repositories.CreateFile(ctx, s.config.Owner, s.config.Repo, req.Path, opts)
	} else {
		opts.SHA = github.String(req.Revision)
		res, _, err = s.client.Repositories.UpdateFile(ctx, s.config.Owner, s.config.Repo, req.Path, opts)
	}
	if err != nil {
		return nil, s.remoteError("put", req.Path, err)
	}

	file := &sitecontent.RemoteFile{Path: req.Path, Content: req.Content}
	if res != nil && res.Content != nil {
		file.Revision = res.Content.GetSHA()
	}
	return file, nil
}

type repoInfo struct {
	FullName    string          `json:"full_name"`
	Permissions map[string]bool `json:"permissions"`
}

// Check implements sitecontent.RemoteChecker: it reads the repository and the
// token's permissions on it
func (s *Store) Check(ctx context.Context) (*sitecontent.RemoteStatus, error) {
	req, err := s.client.NewRequest(http.MethodGet, fmt.Sprintf("repos/%s/%s", s.config.Owner, s.config.Repo), nil)
	if err != nil {
		return nil, err
	}
	var info repoInfo
	if _, err := s.client.Do(ctx, req, &info); err != nil {
		return nil, s.remoteError("check", s.config.Owner+"/"+s.config.Repo, err)
	}

	perms := map[string]bool{"admin": false, "push": false, "pull": false}
	for k := range perms {
		perms[k] = info.Permissions[k]
	}
	return &sitecontent.RemoteStatus{
		Connected:   true,
		Message:     "Connected to " + info.FullName,
		Permissions: perms,
	}, nil
}

func (s *Store) remoteError(op, path string, err error) error {
	remoteErr := &sitecontent.RemoteError{Store: "github", Op: op, Path: path, Err: err}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		remoteErr.Message = ghErr.Message
		if ghErr.Response != nil {
			remoteErr.StatusCode = ghErr.Response.StatusCode
		}
	}
	if isConflict(remoteErr.StatusCode, remoteErr.Message) {
		remoteErr.Err = fmt.Errorf("%w: %v", sitecontent.ErrRevisionConflict, err)
	}
	return remoteErr
}

// isConflict recognizes stale-SHA (409) and create-over-existing (422 "sha") answers
func isConflict(status int, message string) bool {
	switch status {
	case http.StatusConflict:
		return true
	case http.StatusUnprocessableEntity:
		return strings.Contains(strings.ToLower(message), "sha")
	}
	return false
}
