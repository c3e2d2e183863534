// Package gitrepo stores published files as commits in a git repository on
// local disk, optionally pushing every commit to a remote. The git blob hash of
// a file is its revision marker.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/tendant/site-content/pkg/sitecontent"
)

const remoteName = "origin"

// Config options for the git repository store
type Config struct {
	Dir         string // Working tree directory; created and initialized when missing
	Branch      string // default: main
	AuthorName  string // default: Site Admin
	AuthorEmail string // default: admin@localhost
	RemoteURL   string // Optional remote every commit is pushed to
	RemoteToken string // Optional token for HTTPS remotes
}

// Store is a sitecontent.RemoteStore backed by a go-git repository
type Store struct {
	mu     sync.Mutex
	repo   *git.Repository
	config Config
	now    func() time.Time
}

// Open opens the repository at config.Dir, cloning RemoteURL or initializing
// an empty repository when the directory holds none
func Open(ctx context.Context, config Config) (*Store, error) {
	if config.Dir == "" {
		return nil, errors.New("repository directory is required")
	}
	if config.Branch == "" {
		config.Branch = "main"
	}
	if config.AuthorName == "" {
		config.AuthorName = "Site Admin"
	}
	if config.AuthorEmail == "" {
		config.AuthorEmail = "admin@localhost"
	}

	s := &Store{config: config, now: time.Now}

	repo, err := git.PlainOpen(config.Dir)
	switch {
	case err == nil:
	case errors.Is(err, git.ErrRepositoryNotExists) && config.RemoteURL != "":
		repo, err = git.PlainCloneContext(ctx, config.Dir, false, &git.CloneOptions{
			URL:           config.RemoteURL,
			Auth:          s.auth(),
			ReferenceName: plumbing.NewBranchReferenceName(config.Branch),
			SingleBranch:  true,
		})
		if err != nil {
			return nil, fmt.Errorf("clone repo: %w", err)
		}
	case errors.Is(err, git.ErrRepositoryNotExists):
		repo, err = s.initRepo()
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("open repo: %w", err)
	}
	s.repo = repo

	if config.RemoteURL != "" {
		if err := s.ensureRemote(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) initRepo() (*git.Repository, error) {
	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(s.config.Dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	hash, err := worktree.Commit("Initialize content repository", &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            s.signature(),
	})
	if err != nil {
		return nil, fmt.Errorf("commit baseline: %w", err)
	}
	branchRef := plumbing.NewBranchReferenceName(s.config.Branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, hash)); err != nil {
		return nil, fmt.Errorf("set %s branch ref: %w", s.config.Branch, err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, branchRef)); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", s.config.Branch, err)
	}
	return repo, nil
}

func (s *Store) ensureRemote() error {
	remote, err := s.repo.Remote(remoteName)
	if err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 && urls[0] == s.config.RemoteURL {
			return nil
		}
		if err := s.repo.DeleteRemote(remoteName); err != nil {
			return fmt.Errorf("replace remote: %w", err)
		}
	} else if !errors.Is(err, git.ErrRemoteNotFound) {
		return fmt.Errorf("read remote: %w", err)
	}
	_, err = s.repo.CreateRemote(&gitconfig.RemoteConfig{Name: remoteName, URLs: []string{s.config.RemoteURL}})
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}
	return nil
}

func (s *Store) auth() transport.AuthMethod {
	if s.config.RemoteToken == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: s.config.RemoteToken}
}

func (s *Store) signature() *object.Signature {
	return &object.Signature{
		Name:  s.config.AuthorName,
		Email: s.config.AuthorEmail,
		When:  s.now(),
	}
}

// Name implements sitecontent.RemoteStore
func (s *Store) Name() string { return "gitrepo" }

// GetFile implements sitecontent.RemoteStore
func (s *Store) GetFile(ctx context.Context, filePath string) (*sitecontent.RemoteFile, error) {
	clean, err := cleanPath(filePath)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, _, err := s.headFile(clean)
	if err != nil {
		return nil, err
	}
	content, err := file.Contents()
	if err != nil {
		return nil, &sitecontent.RemoteError{Store: "gitrepo", Op: "get", Path: clean, Message: "read blob", Err: err}
	}
	return &sitecontent.RemoteFile{Path: clean, Content: []byte(content), Revision: file.Hash.String()}, nil
}

// headFile returns the file at the branch head together with the head hash
func (s *Store) headFile(filePath string) (*object.File, plumbing.Hash, error) {
	ref, err := s.repo.Reference(plumbing.NewBranchReferenceName(s.config.Branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, plumbing.ZeroHash, fmt.Errorf("branch %s: %w", s.config.Branch, sitecontent.ErrRemoteNotFound)
		}
		return nil, plumbing.ZeroHash, &sitecontent.RemoteError{Store: "gitrepo", Op: "get", Path: filePath, Message: "resolve branch", Err: err}
	}
	commitObj, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, ref.Hash(), &sitecontent.RemoteError{Store: "gitrepo", Op: "get", Path: filePath, Message: "load commit object", Err: err}
	}
	file, err := commitObj.File(filePath)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, ref.Hash(), fmt.Errorf("%s: %w", filePath, sitecontent.ErrRemoteNotFound)
		}
		return nil, ref.Hash(), &sitecontent.RemoteError{Store: "gitrepo", Op: "get", Path: filePath, Message: "load file", Err: err}
	}
	return file, ref.Hash(), nil
}

// PutFile implements sitecontent.RemoteStore. The revision check and the
// commit happen under one lock, so concurrent writers cannot interleave.
func (s *Store) PutFile(ctx context.Context, req sitecontent.PutFileRequest) (*sitecontent.RemoteFile, error) {
	clean, err := cleanPath(req.Path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, head, err := s.headFile(clean)
	exists := err == nil
	if err != nil && !errors.Is(err, sitecontent.ErrRemoteNotFound) {
		return nil, err
	}

	switch {
	case req.Revision == "" && exists:
		return nil, s.conflict(clean, "file already exists")
	case req.Revision != "" && !exists:
		return nil, s.conflict(clean, "file does not exist")
	case req.Revision != "" && current.Hash.String() != req.Revision:
		return nil, s.conflict(clean, fmt.Sprintf("revision %s does not match %s", req.Revision, current.Hash))
	}

	if exists {
		if content, err := current.Contents(); err == nil && content == string(req.Content) {
			return &sitecontent.RemoteFile{Path: clean, Content: req.Content, Revision: current.Hash.String()}, nil
		}
	}

	hash, err := s.commit(clean, req.Content, req.Message)
	if err != nil {
		return nil, &sitecontent.RemoteError{Store: "gitrepo", Op: "commit", Path: clean, Message: err.Error(), Err: err}
	}

	if s.config.RemoteURL != "" {
		if err := s.push(ctx); err != nil {
			if rbErr := s.rollback(head); rbErr != nil {
				return nil, fmt.Errorf("push failed: %w (rollback failed: %v)", err, rbErr)
			}
			return nil, err
		}
	}

	commitObj, err := s.repo.CommitObject(hash)
	if err != nil {
		return nil, &sitecontent.RemoteError{Store: "gitrepo", Op: "commit", Path: clean, Message: "read commit object", Err: err}
	}
	file, err := commitObj.File(clean)
	if err != nil {
		return nil, &sitecontent.RemoteError{Store: "gitrepo", Op: "commit", Path: clean, Message: "read committed file", Err: err}
	}
	return &sitecontent.RemoteFile{Path: clean, Content: req.Content, Revision: file.Hash.String()}, nil
}

func (s *Store) conflict(filePath, msg string) error {
	return &sitecontent.RemoteError{Store: "gitrepo", Op: "put", Path: filePath, Message: msg, Err: sitecontent.ErrRevisionConflict}
}

func (s *Store) commit(filePath string, content []byte, message string) (plumbing.Hash, error) {
	if err := checkoutBranch(s.repo, s.config.Branch); err != nil {
		return plumbing.ZeroHash, err
	}
	worktree, err := s.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	full := filepath.Join(worktree.Filesystem.Root(), filepath.FromSlash(filePath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", filePath, err)
	}
	if _, err := worktree.Add(filePath); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add %s: %w", filePath, err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{Author: s.signature()})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit %s: %w", filePath, err)
	}
	return hash, nil
}

func (s *Store) push(ctx context.Context) error {
	spec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", s.config.Branch, s.config.Branch))
	err := s.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Auth:       s.auth(),
	})
	if err == nil || errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	remoteErr := &sitecontent.RemoteError{Store: "gitrepo", Op: "push", Path: s.config.RemoteURL, Message: err.Error(), Err: err}
	if errors.Is(err, git.ErrNonFastForwardUpdate) {
		remoteErr.Err = fmt.Errorf("%w: %v", sitecontent.ErrRevisionConflict, err)
	}
	return remoteErr
}

// rollback moves the branch back to head after a failed push
func (s *Store) rollback(head plumbing.Hash) error {
	branchRef := plumbing.NewBranchReferenceName(s.config.Branch)
	if err := s.repo.Storer.SetReference(plumbing.NewHashReference(branchRef, head)); err != nil {
		return err
	}
	worktree, err := s.repo.Worktree()
	if err != nil {
		return err
	}
	return worktree.Reset(&git.ResetOptions{Commit: head, Mode: git.HardReset})
}

// Check implements sitecontent.RemoteChecker
func (s *Store) Check(ctx context.Context) (*sitecontent.RemoteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.repo.Reference(plumbing.NewBranchReferenceName(s.config.Branch), true)
	if err != nil {
		return nil, &sitecontent.RemoteError{Store: "gitrepo", Op: "check", Path: s.config.Dir, Message: "resolve branch " + s.config.Branch, Err: err}
	}
	status := &sitecontent.RemoteStatus{
		Connected:   true,
		Message:     fmt.Sprintf("Repository %s on %s at %s", s.config.Dir, s.config.Branch, ref.Hash().String()[:7]),
		Permissions: map[string]bool{"pull": true, "push": s.config.RemoteURL != ""},
	}
	if s.config.RemoteURL == "" {
		return status, nil
	}

	remote, err := s.repo.Remote(remoteName)
	if err != nil {
		return nil, &sitecontent.RemoteError{Store: "gitrepo", Op: "check", Path: s.config.RemoteURL, Message: "read remote", Err: err}
	}
	if _, err := remote.ListContext(ctx, &git.ListOptions{Auth: s.auth()}); err != nil {
		return nil, &sitecontent.RemoteError{Store: "gitrepo", Op: "check", Path: s.config.RemoteURL, Message: err.Error(), Err: err}
	}
	status.Message += ", remote " + s.config.RemoteURL + " reachable"
	return status, nil
}

func checkoutBranch(repo *git.Repository, branchName string) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	branchRef := plumbing.NewBranchReferenceName(branchName)
	head, err := repo.Head()
	if err == nil && head.Name() == branchRef {
		return nil
	}
	if _, err := repo.Reference(branchRef, true); err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Create: true}); err != nil {
				return fmt.Errorf("create branch checkout %s: %w", branchName, err)
			}
			return nil
		}
		return fmt.Errorf("resolve branch %s: %w", branchName, err)
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
		return fmt.Errorf("checkout branch %s: %w", branchName, err)
	}
	return nil
}

func cleanPath(p string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(p, "/"))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid repository path %q", p)
	}
	return clean, nil
}
