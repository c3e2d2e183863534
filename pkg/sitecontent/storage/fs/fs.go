package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tendant/site-content/pkg/sitecontent"
)

// Backend is the local working copy: the content document file plus the public
// asset directory. It implements sitecontent.LocalStore, sitecontent.AssetStore
// and sitecontent.BlobStore.
type Backend struct {
	mu          sync.RWMutex
	contentFile string
	publicDir   string
	urlPrefix   string
}

// Config options for the filesystem backend
type Config struct {
	ContentFile string // Path of the JSON content document
	PublicDir   string // Root of the public asset directory
	URLPrefix   string // Optional URL prefix for blob URLs (default "/")
}

// New creates a new filesystem backend
func New(config Config) (*Backend, error) {
	if config.ContentFile == "" {
		return nil, errors.New("content file is required")
	}
	if config.PublicDir == "" {
		return nil, errors.New("public directory is required")
	}

	if err := os.MkdirAll(config.PublicDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create public directory: %w", err)
	}

	return &Backend{
		contentFile: config.ContentFile,
		publicDir:   config.PublicDir,
		urlPrefix:   strings.TrimRight(config.URLPrefix, "/"),
	}, nil
}

// ReadDocument reads the content document
func (b *Backend) ReadDocument(ctx context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := os.ReadFile(b.contentFile)
	if err != nil {
		return nil, &sitecontent.StorageError{Backend: "fs", Key: b.contentFile, Op: "read", Err: err}
	}
	return data, nil
}

// WriteDocument replaces the content document. The file is written to a
// temporary sibling and renamed so readers never see a partial document.
func (b *Backend) WriteDocument(ctx context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := writeFileAtomic(b.contentFile, data); err != nil {
		return &sitecontent.StorageError{Backend: "fs", Key: b.contentFile, Op: "write", Err: err}
	}
	return nil
}

// WriteAsset stores data at relPath below the public directory
func (b *Backend) WriteAsset(ctx context.Context, relPath string, data []byte) error {
	filePath, err := b.resolve(relPath)
	if err != nil {
		return err
	}
	if err := writeFileAtomic(filePath, data); err != nil {
		return &sitecontent.StorageError{Backend: "fs", Key: relPath, Op: "write_asset", Err: err}
	}
	return nil
}

// Put stores the object below the public directory and returns its URL
func (b *Backend) Put(ctx context.Context, reader io.Reader, params sitecontent.UploadParams) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if err := b.WriteAsset(ctx, params.ObjectKey, data); err != nil {
		return "", err
	}
	return b.urlPrefix + "/" + strings.TrimLeft(path.Clean(params.ObjectKey), "/"), nil
}

// ReadAsset returns the asset stored at relPath
func (b *Backend) ReadAsset(ctx context.Context, relPath string) ([]byte, error) {
	filePath, err := b.resolve(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, errors.New("asset not found")
	} else if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	return data, nil
}

// resolve maps a relative asset path to a file below the public directory
func (b *Backend) resolve(relPath string) (string, error) {
	clean := path.Clean("/" + relPath)
	if clean == "/" {
		return "", fmt.Errorf("invalid asset path %q", relPath)
	}
	return filepath.Join(b.publicDir, filepath.FromSlash(clean)), nil
}

func writeFileAtomic(filePath string, data []byte) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	return os.Rename(tmp.Name(), filePath)
}
