package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/site-content/pkg/sitecontent"
	"github.com/tendant/site-content/pkg/sitecontent/auth"
	"github.com/tendant/site-content/pkg/sitecontent/objectkey"
	"github.com/tendant/site-content/pkg/sitecontent/remote/github"
	"github.com/tendant/site-content/pkg/sitecontent/remote/gitrepo"
	"github.com/tendant/site-content/pkg/sitecontent/remote/postgres"
	"github.com/tendant/site-content/pkg/sitecontent/storage/fs"
	"github.com/tendant/site-content/pkg/sitecontent/storage/memory"
	"github.com/tendant/site-content/pkg/sitecontent/storage/minio"
	"github.com/tendant/site-content/pkg/sitecontent/storage/s3"
)

// FallbackSessionSecret is used when SESSION_SECRET is not set. It must be
// replaced outside development.
const FallbackSessionSecret = "fallback-secret-key-change-me"

// Remote driver names
const (
	RemoteGitHub   = "github"
	RemoteGitRepo  = "gitrepo"
	RemotePostgres = "postgres"
)

// Blob driver names
const (
	BlobS3     = "s3"
	BlobMinio  = "minio"
	BlobMemory = "memory"
	BlobFS     = "fs"
)

// ServerConfig represents the complete site content configuration
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080" yaml:"port" env-description:"HTTP listen port"`
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`

	Content ContentConfig `yaml:"content"`
	Auth    AuthConfig    `yaml:"auth"`
	Remote  RemoteConfig  `yaml:"remote"`
	Blob    BlobConfig    `yaml:"blob"`

	EnableEventLogging bool `env:"ENABLE_EVENT_LOGGING" env-default:"true" yaml:"enable_event_logging"`
}

// ContentConfig locates the local working copy
type ContentConfig struct {
	File          string `env:"CONTENT_FILE" env-default:"content/site.json" yaml:"file" env-description:"Local content document"`
	RepoPath      string `env:"CONTENT_REPO_PATH" env-default:"content/site.json" yaml:"repo_path" env-description:"Document path inside the remote store"`
	PublicDir     string `env:"PUBLIC_DIR" env-default:"public" yaml:"public_dir"`
	AssetSubdir   string `env:"ASSET_SUBDIR" env-default:"img" yaml:"asset_subdir"`
	CommitMessage string `env:"COMMIT_MESSAGE" env-default:"Admin: update content/site.json" yaml:"commit_message"`
}

// AuthConfig holds admin login settings
type AuthConfig struct {
	SessionSecret     string        `env:"SESSION_SECRET" env-default:"fallback-secret-key-change-me" yaml:"session_secret"`
	AdminPassword     string        `env:"ADMIN_PASSWORD" env-default:"admin" yaml:"admin_password"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH" yaml:"admin_password_hash" env-description:"bcrypt hash, overrides ADMIN_PASSWORD"`
	SessionTTL        time.Duration `env:"SESSION_TTL" env-default:"2h" yaml:"session_ttl"`
	SecureCookie      bool          `env:"SECURE_COOKIE" env-default:"true" yaml:"secure_cookie"`
	RedisURL          string        `env:"REDIS_URL" yaml:"redis_url" env-description:"Session store; empty keeps sessions in memory"`
}

// RemoteConfig selects and configures the durable document store
type RemoteConfig struct {
	Driver      string        `env:"REMOTE_DRIVER" env-default:"github" yaml:"driver" env-description:"github, gitrepo or postgres"`
	GitHub      GitHubConfig  `yaml:"github"`
	Git         GitRepoConfig `yaml:"git"`
	DatabaseURL string        `env:"DATABASE_URL" yaml:"database_url"`
}

// GitHubConfig configures the GitHub contents API store
type GitHubConfig struct {
	Token  string `env:"GITHUB_TOKEN" yaml:"token"`
	Owner  string `env:"GITHUB_REPO_OWNER" yaml:"owner"`
	Repo   string `env:"GITHUB_REPO_NAME" yaml:"repo"`
	Branch string `env:"GITHUB_BRANCH" env-default:"main" yaml:"branch"`
	APIURL string `env:"GITHUB_API_URL" yaml:"api_url"`
}

// GitRepoConfig configures the go-git repository store
type GitRepoConfig struct {
	Dir         string `env:"GIT_REPO_DIR" yaml:"dir"`
	Branch      string `env:"GIT_BRANCH" env-default:"main" yaml:"branch"`
	AuthorName  string `env:"GIT_AUTHOR_NAME" yaml:"author_name"`
	AuthorEmail string `env:"GIT_AUTHOR_EMAIL" yaml:"author_email"`
	RemoteURL   string `env:"GIT_REMOTE_URL" yaml:"remote_url"`
	RemoteToken string `env:"GIT_REMOTE_TOKEN" yaml:"remote_token"`
}

// BlobConfig configures the object store used by the blob-store backend
type BlobConfig struct {
	Driver          string `env:"BLOB_DRIVER" env-default:"s3" yaml:"driver" env-description:"s3, minio, memory or fs"`
	Bucket          string `env:"BLOB_BUCKET" yaml:"bucket"`
	Region          string `env:"BLOB_REGION" env-default:"us-east-1" yaml:"region"`
	Endpoint        string `env:"BLOB_ENDPOINT" yaml:"endpoint"`
	AccessKeyID     string `env:"BLOB_ACCESS_KEY_ID" yaml:"access_key_id"`
	SecretAccessKey string `env:"BLOB_SECRET_ACCESS_KEY" yaml:"secret_access_key"`
	PublicURL       string `env:"BLOB_PUBLIC_URL" yaml:"public_url"`
	UseSSL          bool   `env:"BLOB_USE_SSL" env-default:"true" yaml:"use_ssl"`
	UsePathStyle    bool   `env:"BLOB_USE_PATH_STYLE" env-default:"false" yaml:"use_path_style"`
	KeyPrefix       string `env:"BLOB_KEY_PREFIX" yaml:"key_prefix"`
	CreateBucket    bool   `env:"BLOB_CREATE_BUCKET" env-default:"false" yaml:"create_bucket"`
}

// Option is a functional option for configuring ServerConfig
type Option func(*ServerConfig) error

// Load creates a ServerConfig from defaults and the given options, then validates it
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaults mirrors the env-default tags so programmatic configs start from
// the same place as environment configs
func defaults() *ServerConfig {
	return &ServerConfig{
		Port:        "8080",
		Environment: "development",
		Content: ContentConfig{
			File:          "content/site.json",
			RepoPath:      sitecontent.DefaultContentPath,
			PublicDir:     sitecontent.DefaultPublicDir,
			AssetSubdir:   sitecontent.DefaultAssetDir,
			CommitMessage: sitecontent.DefaultCommitMessage,
		},
		Auth: AuthConfig{
			SessionSecret: FallbackSessionSecret,
			AdminPassword: "admin",
			SessionTTL:    auth.DefaultTTL,
			SecureCookie:  true,
		},
		Remote: RemoteConfig{
			Driver: RemoteGitHub,
			GitHub: GitHubConfig{Branch: "main"},
			Git:    GitRepoConfig{Branch: "main"},
		},
		Blob: BlobConfig{
			Driver: BlobS3,
			Region: "us-east-1",
			UseSSL: true,
		},
		EnableEventLogging: true,
	}
}

// Validate validates the configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.Content.File == "" {
		return fmt.Errorf("content file is required")
	}
	if c.Content.RepoPath == "" {
		return fmt.Errorf("content repository path is required")
	}
	if c.Auth.SessionSecret == "" {
		return fmt.Errorf("session secret is required")
	}
	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordHash == "" {
		return fmt.Errorf("admin password or password hash is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.Auth.SessionTTL)
	}

	switch c.Remote.Driver {
	case RemoteGitHub, RemoteGitRepo, RemotePostgres:
	default:
		return fmt.Errorf("unknown remote driver %q (want github, gitrepo or postgres)", c.Remote.Driver)
	}

	switch c.Blob.Driver {
	case BlobS3, BlobMinio, BlobMemory, BlobFS:
	default:
		return fmt.Errorf("unknown blob driver %q (want s3, minio, memory or fs)", c.Blob.Driver)
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT is production
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// RemoteConfigured reports whether the selected remote driver has the
// settings BuildRemoteStore needs
func (c *ServerConfig) RemoteConfigured() bool {
	switch c.Remote.Driver {
	case RemoteGitHub:
		gh := c.Remote.GitHub
		return gh.Token != "" && gh.Owner != "" && gh.Repo != ""
	case RemoteGitRepo:
		return c.Remote.Git.Dir != ""
	case RemotePostgres:
		return c.Remote.DatabaseURL != ""
	}
	return false
}

// Settings reports which remote and blob settings are present, without their values
func (c *ServerConfig) Settings() map[string]bool {
	return map[string]bool{
		"GITHUB_TOKEN":           c.Remote.GitHub.Token != "",
		"GITHUB_REPO_OWNER":      c.Remote.GitHub.Owner != "",
		"GITHUB_REPO_NAME":       c.Remote.GitHub.Repo != "",
		"GITHUB_BRANCH":          c.Remote.GitHub.Branch != "",
		"GIT_REPO_DIR":           c.Remote.Git.Dir != "",
		"DATABASE_URL":           c.Remote.DatabaseURL != "",
		"BLOB_BUCKET":            c.Blob.Bucket != "",
		"BLOB_ACCESS_KEY_ID":     c.Blob.AccessKeyID != "",
		"BLOB_SECRET_ACCESS_KEY": c.Blob.SecretAccessKey != "",
	}
}

// BuildLocalStore creates the filesystem working copy
func (c *ServerConfig) BuildLocalStore() (*fs.Backend, error) {
	return fs.New(fs.Config{
		ContentFile: c.Content.File,
		PublicDir:   c.Content.PublicDir,
		URLPrefix:   c.Blob.PublicURL,
	})
}

// BuildRemoteStore creates the configured remote store. It returns nil without
// an error when the driver's credentials are absent.
func (c *ServerConfig) BuildRemoteStore(ctx context.Context) (sitecontent.RemoteStore, error) {
	switch c.Remote.Driver {
	case RemoteGitHub:
		if !c.RemoteConfigured() {
			return nil, nil
		}
		gh := c.Remote.GitHub
		store, err := github.New(github.Config{
			Token:   gh.Token,
			Owner:   gh.Owner,
			Repo:    gh.Repo,
			Branch:  gh.Branch,
			BaseURL: gh.APIURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create github store: %w", err)
		}
		return store, nil

	case RemoteGitRepo:
		if !c.RemoteConfigured() {
			return nil, nil
		}
		git := c.Remote.Git
		store, err := gitrepo.Open(ctx, gitrepo.Config{
			Dir:         git.Dir,
			Branch:      git.Branch,
			AuthorName:  git.AuthorName,
			AuthorEmail: git.AuthorEmail,
			RemoteURL:   git.RemoteURL,
			RemoteToken: git.RemoteToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open git repository: %w", err)
		}
		return store, nil

	case RemotePostgres:
		if !c.RemoteConfigured() {
			return nil, nil
		}
		pool, err := postgres.NewPool(ctx, c.Remote.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := postgres.New(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown remote driver %q", c.Remote.Driver)
}

// BuildBlobStore creates the configured object store. It returns nil without an
// error when the bucket or access credential is absent.
func (c *ServerConfig) BuildBlobStore(local *fs.Backend) (sitecontent.BlobStore, error) {
	b := c.Blob
	switch b.Driver {
	case BlobMemory:
		return memory.New(b.PublicURL), nil

	case BlobFS:
		if local == nil {
			return nil, nil
		}
		return local, nil

	case BlobS3:
		if b.Bucket == "" || b.AccessKeyID == "" {
			return nil, nil
		}
		backend, err := s3.New(s3.Config{
			Region:                 b.Region,
			Bucket:                 b.Bucket,
			AccessKeyID:            b.AccessKeyID,
			SecretAccessKey:        b.SecretAccessKey,
			Endpoint:               b.Endpoint,
			UsePathStyle:           b.UsePathStyle,
			PublicURL:              b.PublicURL,
			CreateBucketIfNotExist: b.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 blob store: %w", err)
		}
		return backend, nil

	case BlobMinio:
		if b.Bucket == "" || b.Endpoint == "" || b.AccessKeyID == "" {
			return nil, nil
		}
		backend, err := minio.New(minio.Config{
			Endpoint:               b.Endpoint,
			Bucket:                 b.Bucket,
			Region:                 b.Region,
			AccessKeyID:            b.AccessKeyID,
			SecretAccessKey:        b.SecretAccessKey,
			UseSSL:                 b.UseSSL,
			PublicURL:              b.PublicURL,
			CreateBucketIfNotExist: b.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio blob store: %w", err)
		}
		return backend, nil
	}
	return nil, fmt.Errorf("unknown blob driver %q", b.Driver)
}

// BuildSessions creates the login session store: Redis when REDIS_URL is set,
// in-memory otherwise
func (c *ServerConfig) BuildSessions() (auth.SessionStore, error) {
	if c.Auth.RedisURL == "" {
		return auth.NewMemoryStore(), nil
	}
	store, err := auth.NewRedisStore(c.Auth.RedisURL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// BuildAuth creates the admin authentication service
func (c *ServerConfig) BuildAuth(logger *slog.Logger) (*auth.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if c.Auth.SessionSecret == FallbackSessionSecret {
		logger.Warn("Using fallback session secret, set SESSION_SECRET", "environment", c.Environment)
	}
	sessions, err := c.BuildSessions()
	if err != nil {
		return nil, err
	}
	return auth.New(auth.Config{
		Secret:       c.Auth.SessionSecret,
		Password:     c.Auth.AdminPassword,
		PasswordHash: c.Auth.AdminPasswordHash,
		TTL:          c.Auth.SessionTTL,
		SecureCookie: c.Auth.SecureCookie,
	}, sessions, auth.WithLogger(logger))
}

// BuildPublisher wires the local copy, remote store, blob store and ingestor
// into a Publisher guarded by authorizer
func (c *ServerConfig) BuildPublisher(ctx context.Context, authorizer sitecontent.Authorizer, logger *slog.Logger) (*sitecontent.Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	local, err := c.BuildLocalStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create local store: %w", err)
	}

	remote, err := c.BuildRemoteStore(ctx)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		logger.Warn("Remote store not configured, publishes will update the local copy only", "driver", c.Remote.Driver)
	}

	blob, err := c.BuildBlobStore(local)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		logger.Warn("Blob store not configured", "driver", c.Blob.Driver)
	}

	store := sitecontent.NewContentStore(local, remote,
		sitecontent.WithRemotePath(c.Content.RepoPath),
		sitecontent.WithCommitMessage(c.Content.CommitMessage),
		sitecontent.WithStoreLogger(logger))

	ingestOpts := []sitecontent.IngestorOption{
		sitecontent.WithAssetStore(local),
		sitecontent.WithAssetRemote(remote),
		sitecontent.WithAssetPaths(c.Content.PublicDir, c.Content.AssetSubdir),
		sitecontent.WithIngestorLogger(logger),
	}
	if blob != nil {
		ingestOpts = append(ingestOpts, sitecontent.WithBlobStore(blob))
	}
	if c.Blob.KeyPrefix != "" {
		keys := objectkey.NewPrefixedGenerator(objectkey.NewRecommendedGenerator(), c.Blob.KeyPrefix)
		ingestOpts = append(ingestOpts, sitecontent.WithKeyGenerators(keys, nil))
	}
	ingestor := sitecontent.NewIngestor(store, ingestOpts...)

	opts := []sitecontent.Option{
		sitecontent.WithContentStore(store),
		sitecontent.WithIngestor(ingestor),
		sitecontent.WithAuthorizer(authorizer),
		sitecontent.WithSettingsReport(c.Settings()),
		sitecontent.WithLogger(logger),
	}
	if c.EnableEventLogging {
		opts = append(opts, sitecontent.WithEventSink(sitecontent.NewLoggingEventSink(logger)))
	}
	return sitecontent.New(opts...)
}
