package sitecontent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/tendant/site-content/pkg/sitecontent/objectkey"
)

// MaxUploadSize is the request body ceiling of the hosting platform (4.5 MB).
// Callers reject larger uploads before calling the Ingestor.
const MaxUploadSize = 4718592

// Default asset locations for the git-repo backend
const (
	DefaultPublicDir = "public"
	DefaultAssetDir  = "img"
)

// CheckUploadSize returns ErrUploadTooLarge when size exceeds MaxUploadSize
func CheckUploadSize(size int64) error {
	if size > MaxUploadSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrUploadTooLarge, size, MaxUploadSize)
	}
	return nil
}

// Upload is one uploaded file
type Upload struct {
	FileName  string
	MediaType string
	Data      []byte
}

// Asset describes a stored upload
type Asset struct {
	URL       string      `json:"url"`
	Key       string      `json:"key"`
	Backend   StorageKind `json:"backend"`
	MediaType string      `json:"mediaType"`
	Size      int64       `json:"size"`
	Width     int         `json:"width,omitempty"`
	Height    int         `json:"height,omitempty"`
	Optimized bool        `json:"optimized"`
	// LocalOnly is set by the git-repo backend when no remote store is configured
	LocalOnly bool `json:"localOnly,omitempty"`
}

// Ingestor normalizes uploaded media and stores it in the backend selected by
// the document's admin config.
type Ingestor struct {
	store     *ContentStore
	blob      BlobStore
	assets    AssetStore
	remote    RemoteStore
	publicDir string
	assetDir  string
	blobKeys  objectkey.Generator
	repoKeys  objectkey.Generator
	logger    *slog.Logger
}

// IngestorOption configures an Ingestor
type IngestorOption func(*Ingestor)

// WithBlobStore sets the blob-store backend. Leaving it unset makes blob-store
// uploads fail with ErrStorageUnavailable.
func WithBlobStore(blob BlobStore) IngestorOption {
	return func(i *Ingestor) {
		i.blob = blob
	}
}

// WithAssetStore sets the local public asset directory
func WithAssetStore(assets AssetStore) IngestorOption {
	return func(i *Ingestor) {
		i.assets = assets
	}
}

// WithAssetRemote sets the remote store git-repo assets are committed to
func WithAssetRemote(remote RemoteStore) IngestorOption {
	return func(i *Ingestor) {
		i.remote = remote
	}
}

// WithAssetPaths sets the public root (repository side) and the asset
// subdirectory below it
func WithAssetPaths(publicDir, assetDir string) IngestorOption {
	return func(i *Ingestor) {
		if publicDir != "" {
			i.publicDir = publicDir
		}
		if assetDir != "" {
			i.assetDir = assetDir
		}
	}
}

// WithKeyGenerators overrides the blob and repository key generators
func WithKeyGenerators(blobKeys, repoKeys objectkey.Generator) IngestorOption {
	return func(i *Ingestor) {
		if blobKeys != nil {
			i.blobKeys = blobKeys
		}
		if repoKeys != nil {
			i.repoKeys = repoKeys
		}
	}
}

// WithIngestorLogger sets the logger
func WithIngestorLogger(logger *slog.Logger) IngestorOption {
	return func(i *Ingestor) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// NewIngestor creates an Ingestor reading its admin config from store
func NewIngestor(store *ContentStore, opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		store:     store,
		publicDir: DefaultPublicDir,
		assetDir:  DefaultAssetDir,
		blobKeys:  objectkey.NewRecommendedGenerator(),
		repoKeys:  objectkey.NewStrictGenerator(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AdminConfig reads the admin config from the persisted document. It is never
// cached: the block is itself editable.
func (i *Ingestor) AdminConfig(ctx context.Context) AdminConfig {
	if i.store == nil {
		return DefaultAdminConfig()
	}
	doc, err := i.store.Read(ctx)
	if err != nil {
		i.logger.Warn("Failed to read admin config, using defaults", "error", err)
		return DefaultAdminConfig()
	}
	return doc.AdminConfig()
}

// Ingest optimizes and stores one upload
func (i *Ingestor) Ingest(ctx context.Context, up Upload) (*Asset, error) {
	if up.FileName == "" || len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: file name and data are required", ErrInvalidUpload)
	}

	cfg := i.AdminConfig(ctx)
	opt := Optimize(up.Data, up.MediaType, PolicyFromConfig(cfg))
	if opt.Err != nil {
		i.logger.Warn("Image optimization failed, storing original", "file_name", up.FileName, "error", opt.Err)
	}

	asset := &Asset{
		Backend:   cfg.Storage,
		MediaType: up.MediaType,
		Size:      int64(len(opt.Data)),
		Width:     opt.Width,
		Height:    opt.Height,
		Optimized: opt.Optimized,
	}

	var err error
	switch cfg.Storage {
	case StorageGit:
		err = i.putRepo(ctx, up.FileName, opt.Data, asset)
	default:
		err = i.putBlob(ctx, up, opt.Data, asset)
	}
	if err != nil {
		return nil, err
	}

	i.logger.Info("Asset stored", "backend", asset.Backend, "key", asset.Key, "size", asset.Size, "optimized", asset.Optimized)
	return asset, nil
}

func (i *Ingestor) putBlob(ctx context.Context, up Upload, data []byte, asset *Asset) error {
	if i.blob == nil {
		return fmt.Errorf("%w: blob store credentials are not configured", ErrStorageUnavailable)
	}
	key := i.blobKeys.GenerateKey(up.FileName)
	url, err := i.blob.Put(ctx, bytes.NewReader(data), UploadParams{
		ObjectKey: key,
		MimeType:  up.MediaType,
		Size:      int64(len(data)),
	})
	if err != nil {
		i.logger.Error("Failed to upload asset to blob store", "key", key, "error", err)
		return err
	}
	asset.Key = key
	asset.URL = url
	return nil
}

func (i *Ingestor) putRepo(ctx context.Context, fileName string, data []byte, asset *Asset) error {
	name := objectkey.SanitizeFileName(fileName)
	rel := path.Join(i.assetDir, i.repoKeys.GenerateKey(fileName))

	var localErr error
	if i.assets == nil {
		localErr = errors.New("no local asset directory configured")
	} else {
		localErr = i.assets.WriteAsset(ctx, rel, data)
	}
	if localErr != nil {
		i.logger.Warn("Failed to write local asset", "path", rel, "error", localErr)
	}

	if i.remote == nil {
		if localErr != nil {
			return fmt.Errorf("%w: local asset write failed and no remote store is configured: %v", ErrStorageUnavailable, localErr)
		}
		asset.LocalOnly = true
	} else {
		repoPath := path.Join(i.publicDir, rel)
		if _, err := i.remote.PutFile(ctx, PutFileRequest{
			Path:    repoPath,
			Content: data,
			Message: "Admin: upload asset " + name,
		}); err != nil {
			i.logger.Error("Failed to commit asset", "store", i.remote.Name(), "path", repoPath, "error", err)
			return err
		}
	}

	asset.Key = rel
	asset.URL = "/" + rel
	return nil
}

// BlobConfigured reports whether a blob store is available
func (i *Ingestor) BlobConfigured() bool {
	return i.blob != nil
}
