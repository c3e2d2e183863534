package presets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/tendant/site-content/pkg/sitecontent"
	"github.com/tendant/site-content/pkg/sitecontent/auth"
	"github.com/tendant/site-content/pkg/sitecontent/config"
	"github.com/tendant/site-content/pkg/sitecontent/storage/memory"
)

// Configuration Presets
//
// This package wires a Publisher for common situations so callers do not
// repeat the storage and authorization setup.

// NewDevelopment creates a publisher for local development.
//
// Features:
//   - Content document at <dir>/content/site.json (seeded with an empty document)
//   - Git repository at <dir>/repo as the remote store, so publishes commit locally
//   - Blob uploads written to <dir>/public
//   - Every caller is authorized
//   - Event logging enabled
//
// Returns the publisher, a cleanup function removing the data directory, and
// an error if setup fails.
//
// Example:
//
//	publisher, cleanup, err := presets.NewDevelopment()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cleanup()
func NewDevelopment(opts ...DevelopmentOption) (*sitecontent.Publisher, func(), error) {
	cfg := &devConfig{
		dataDir: "./dev-data",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	contentFile := filepath.Join(cfg.dataDir, "content", "site.json")
	if err := seedDocument(contentFile, cfg.document); err != nil {
		return nil, nil, err
	}

	serverCfg, err := config.Load(
		config.WithContentFile(contentFile, filepath.Join(cfg.dataDir, "public")),
		config.WithGitRepo(filepath.Join(cfg.dataDir, "repo"), ""),
		config.WithFilesystemBlobStore(""),
		config.WithEventLogging(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load development config: %w", err)
	}

	publisher, err := serverCfg.BuildPublisher(context.Background(), sitecontent.AllowAll(), cfg.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	cleanup := func() {
		os.RemoveAll(cfg.dataDir)
	}
	return publisher, cleanup, nil
}

func seedDocument(path string, document []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to check content file: %w", err)
	}
	if document == nil {
		document = []byte("{}")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create content directory: %w", err)
	}
	if err := os.WriteFile(path, document, 0o644); err != nil {
		return fmt.Errorf("failed to seed content file: %w", err)
	}
	return nil
}

// Testing bundles an in-memory publisher with its backends so tests can
// inspect what was written
type Testing struct {
	Publisher *sitecontent.Publisher
	Local     *memory.Local
	Remote    *memory.Remote
	Blob      *memory.Backend
	Assets    *memory.Backend
}

// NewTesting creates an in-memory publisher for unit and integration tests.
//
// Features:
//   - In-memory working copy, remote store and blob store (isolated per test)
//   - Every caller is authorized unless WithTestAuthorizer is given
//   - No event logging
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    env := presets.NewTesting(t)
//	    doc, err := env.Publisher.GetCurrentDocument(ctx)
//	}
func NewTesting(t testing.TB, opts ...TestingOption) *Testing {
	t.Helper()
	cfg := &testConfig{
		document:   []byte(`{}`),
		remote:     true,
		authorizer: sitecontent.AllowAll(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	env := &Testing{
		Local:  memory.NewLocal(cfg.document),
		Blob:   memory.New(""),
		Assets: memory.New(""),
	}

	var remote sitecontent.RemoteStore
	if cfg.remote {
		env.Remote = memory.NewRemote()
		remote = env.Remote
	}

	store := sitecontent.NewContentStore(env.Local, remote)
	ingestor := sitecontent.NewIngestor(store,
		sitecontent.WithBlobStore(env.Blob),
		sitecontent.WithAssetStore(env.Assets),
		sitecontent.WithAssetRemote(remote))

	publisher, err := sitecontent.New(
		sitecontent.WithContentStore(store),
		sitecontent.WithIngestor(ingestor),
		sitecontent.WithAuthorizer(cfg.authorizer),
	)
	if err != nil {
		t.Fatalf("failed to create test publisher: %v", err)
	}
	env.Publisher = publisher
	return env
}

// NewProduction creates a publisher and its admin authentication from the
// environment (see config.WithEnv).
//
// Unlike the builders in the config package it refuses to start degraded:
//   - SESSION_SECRET must be set to something other than the fallback
//   - the selected REMOTE_DRIVER must have its credentials
//
// The returned auth.Service is the publisher's authorizer; mount its Verifier
// in front of the API.
func NewProduction(ctx context.Context, opts ...ProductionOption) (*sitecontent.Publisher, *auth.Service, error) {
	cfg := &prodConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	loadOpts := []config.Option{}
	if cfg.configFile != "" {
		loadOpts = append(loadOpts, config.WithFile(cfg.configFile))
	} else {
		loadOpts = append(loadOpts, config.WithEnv())
	}
	serverCfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, nil, err
	}

	if serverCfg.Auth.SessionSecret == config.FallbackSessionSecret {
		return nil, nil, fmt.Errorf("SESSION_SECRET is required for production")
	}
	if !serverCfg.RemoteConfigured() {
		return nil, nil, fmt.Errorf("remote store %q is not configured; production publishes would only update the local copy", serverCfg.Remote.Driver)
	}

	authService, err := serverCfg.BuildAuth(cfg.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create auth service: %w", err)
	}
	publisher, err := serverCfg.BuildPublisher(ctx, authService, cfg.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create publisher: %w", err)
	}
	return publisher, authService, nil
}

// Option types for customization

// devConfig holds development preset configuration
type devConfig struct {
	dataDir  string
	document []byte
	logger   *slog.Logger
}

// testConfig holds testing preset configuration
type testConfig struct {
	document   []byte
	remote     bool
	authorizer sitecontent.Authorizer
}

// prodConfig holds production preset configuration
type prodConfig struct {
	configFile string
	logger     *slog.Logger
}

// DevelopmentOption is a functional option for NewDevelopment
type DevelopmentOption func(*devConfig)

// WithDevDataDir sets the development data directory
func WithDevDataDir(dir string) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.dataDir = dir
	}
}

// WithDevDocument sets the document seeded when the content file is missing
func WithDevDocument(document []byte) DevelopmentOption {
	return func(cfg *devConfig) {
		cfg.document = document
	}
}

// WithDevLogger sets the logger
func WithDevLogger(logger *slog.Logger) DevelopmentOption {
	return func(cfg *devConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// TestingOption is a functional option for NewTesting
type TestingOption func(*testConfig)

// WithTestDocument sets the initial working copy
func WithTestDocument(document []byte) TestingOption {
	return func(cfg *testConfig) {
		cfg.document = document
	}
}

// WithoutTestRemote leaves the remote store unconfigured
func WithoutTestRemote() TestingOption {
	return func(cfg *testConfig) {
		cfg.remote = false
	}
}

// WithTestAuthorizer replaces the allow-all authorizer
func WithTestAuthorizer(authorizer sitecontent.Authorizer) TestingOption {
	return func(cfg *testConfig) {
		cfg.authorizer = authorizer
	}
}

// ProductionOption is a functional option for NewProduction
type ProductionOption func(*prodConfig)

// WithProdConfigFile reads the configuration from a file before applying
// environment overrides
func WithProdConfigFile(path string) ProductionOption {
	return func(cfg *prodConfig) {
		cfg.configFile = path
	}
}

// WithProdLogger sets the logger
func WithProdLogger(logger *slog.Logger) ProductionOption {
	return func(cfg *prodConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}
