package config

import (
	"fmt"
	"io"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv applies environment variable overrides. Variables are declared by
// the `env` struct tags on ServerConfig; unset variables keep the value already
// in the config.
//
// Main variables:
//
//	CONTENT_FILE, CONTENT_REPO_PATH, PUBLIC_DIR, ASSET_SUBDIR
//	SESSION_SECRET, ADMIN_PASSWORD, ADMIN_PASSWORD_HASH, SESSION_TTL, REDIS_URL
//	REMOTE_DRIVER (github, gitrepo, postgres)
//	GITHUB_TOKEN, GITHUB_REPO_OWNER, GITHUB_REPO_NAME, GITHUB_BRANCH, GITHUB_API_URL
//	GIT_REPO_DIR, GIT_BRANCH, GIT_AUTHOR_NAME, GIT_AUTHOR_EMAIL, GIT_REMOTE_URL, GIT_REMOTE_TOKEN
//	DATABASE_URL
//	BLOB_DRIVER (s3, minio, memory, fs), BLOB_BUCKET, BLOB_REGION, BLOB_ENDPOINT,
//	BLOB_ACCESS_KEY_ID, BLOB_SECRET_ACCESS_KEY, BLOB_PUBLIC_URL, BLOB_USE_SSL,
//	BLOB_USE_PATH_STYLE, BLOB_KEY_PREFIX
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("failed to read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a YAML, JSON, TOML or .env file, then applies environment
// variable overrides on top of it
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return fmt.Errorf("config file path cannot be empty")
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}
}

// Usage writes the list of supported environment variables with their defaults
func Usage(w io.Writer) {
	header := "Site content environment variables:"
	cleanenv.FUsage(w, &ServerConfig{}, &header)()
}
