package config

import (
	"fmt"
	"time"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment name
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithContentFile sets the local content document and public directory
func WithContentFile(file, publicDir string) Option {
	return func(c *ServerConfig) error {
		if file == "" {
			return fmt.Errorf("content file cannot be empty")
		}
		c.Content.File = file
		if publicDir != "" {
			c.Content.PublicDir = publicDir
		}
		return nil
	}
}

// WithAdminPassword sets the plain admin password
func WithAdminPassword(password string) Option {
	return func(c *ServerConfig) error {
		c.Auth.AdminPassword = password
		return nil
	}
}

// WithSessionSecret sets the token signing secret and lifetime
func WithSessionSecret(secret string, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		if secret == "" {
			return fmt.Errorf("session secret cannot be empty")
		}
		c.Auth.SessionSecret = secret
		if ttl > 0 {
			c.Auth.SessionTTL = ttl
		}
		return nil
	}
}

// WithRedis stores login sessions in Redis
func WithRedis(url string) Option {
	return func(c *ServerConfig) error {
		c.Auth.RedisURL = url
		return nil
	}
}

// WithGitHub selects the GitHub contents API as the remote store
func WithGitHub(token, owner, repo, branch string) Option {
	return func(c *ServerConfig) error {
		c.Remote.Driver = RemoteGitHub
		c.Remote.GitHub.Token = token
		c.Remote.GitHub.Owner = owner
		c.Remote.GitHub.Repo = repo
		if branch != "" {
			c.Remote.GitHub.Branch = branch
		}
		return nil
	}
}

// WithGitRepo selects a local git repository as the remote store
func WithGitRepo(dir, remoteURL string) Option {
	return func(c *ServerConfig) error {
		if dir == "" {
			return fmt.Errorf("git repository directory cannot be empty")
		}
		c.Remote.Driver = RemoteGitRepo
		c.Remote.Git.Dir = dir
		c.Remote.Git.RemoteURL = remoteURL
		return nil
	}
}

// WithPostgres selects a PostgreSQL table as the remote store
func WithPostgres(databaseURL string) Option {
	return func(c *ServerConfig) error {
		if databaseURL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.Remote.Driver = RemotePostgres
		c.Remote.DatabaseURL = databaseURL
		return nil
	}
}

// WithMemoryBlobStore keeps uploaded blobs in memory
func WithMemoryBlobStore(publicURL string) Option {
	return func(c *ServerConfig) error {
		c.Blob.Driver = BlobMemory
		c.Blob.PublicURL = publicURL
		return nil
	}
}

// WithFilesystemBlobStore serves uploaded blobs from the public directory
func WithFilesystemBlobStore(publicURL string) Option {
	return func(c *ServerConfig) error {
		c.Blob.Driver = BlobFS
		c.Blob.PublicURL = publicURL
		return nil
	}
}

// WithS3BlobStore selects S3 as the blob store
func WithS3BlobStore(bucket, region, accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		if bucket == "" {
			return fmt.Errorf("s3 bucket cannot be empty")
		}
		c.Blob.Driver = BlobS3
		c.Blob.Bucket = bucket
		if region != "" {
			c.Blob.Region = region
		}
		c.Blob.AccessKeyID = accessKeyID
		c.Blob.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithMinioBlobStore selects an S3-compatible MinIO server as the blob store
func WithMinioBlobStore(endpoint, bucket, accessKeyID, secretAccessKey string, useSSL bool) Option {
	return func(c *ServerConfig) error {
		if endpoint == "" || bucket == "" {
			return fmt.Errorf("minio endpoint and bucket are required")
		}
		c.Blob.Driver = BlobMinio
		c.Blob.Endpoint = endpoint
		c.Blob.Bucket = bucket
		c.Blob.AccessKeyID = accessKeyID
		c.Blob.SecretAccessKey = secretAccessKey
		c.Blob.UseSSL = useSSL
		return nil
	}
}

// WithBlobKeyPrefix prefixes every generated blob key
func WithBlobKeyPrefix(prefix string) Option {
	return func(c *ServerConfig) error {
		c.Blob.KeyPrefix = prefix
		return nil
	}
}

// WithEventLogging enables or disables the logging event sink
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}
