package sitecontent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Outcome is the three-way result of a publish
type Outcome string

// Publish outcomes
const (
	// OutcomePublished means the remote store accepted the document
	OutcomePublished Outcome = "published"
	// OutcomeDegraded means only the local copy was written; the live site did not change
	OutcomeDegraded Outcome = "degraded"
	// OutcomeFailed means the remote store is configured but the write failed
	OutcomeFailed Outcome = "failed"
)

// PublishResult reports how a publish ended
type PublishResult struct {
	Outcome     Outcome   `json:"outcome"`
	Warning     string    `json:"warning,omitempty"`
	Revision    string    `json:"revision,omitempty"`
	Unchanged   bool      `json:"unchanged,omitempty"`
	Path        string    `json:"path"`
	PublishedAt time.Time `json:"publishedAt"`
	// Err is the remote failure behind OutcomeFailed
	Err error `json:"-"`
}

// Published reports a full success
func (r *PublishResult) Published() bool { return r.Outcome == OutcomePublished }

// Degraded reports a local-only write
func (r *PublishResult) Degraded() bool { return r.Outcome == OutcomeDegraded }

// Failed reports a hard failure
func (r *PublishResult) Failed() bool { return r.Outcome == OutcomeFailed }

// Conflict reports whether the failure was a lost-update race
func (r *PublishResult) Conflict() bool {
	return r.Outcome == OutcomeFailed && errors.Is(r.Err, ErrRevisionConflict)
}

// ConnectivityReport describes which storage backends are configured and
// whether the remote store can be reached
type ConnectivityReport struct {
	RemoteConfigured bool            `json:"remoteConfigured"`
	RemoteStore      string          `json:"remoteStore,omitempty"`
	BlobConfigured   bool            `json:"blobConfigured"`
	Storage          StorageKind     `json:"storage"`
	Settings         map[string]bool `json:"settings,omitempty"`
	Remote           *RemoteStatus   `json:"remote,omitempty"`
}

// Publisher is the admin-facing coordinator. Every operation checks the
// Authorizer before touching storage.
type Publisher struct {
	session    *EditSession
	store      *ContentStore
	ingestor   *Ingestor
	authorizer Authorizer
	events     EventSink
	settings   map[string]bool
	logger     *slog.Logger
	now        func() time.Time
}

// Option represents a functional option for configuring the publisher
type Option func(*Publisher)

// WithContentStore sets the content store
func WithContentStore(store *ContentStore) Option {
	return func(p *Publisher) {
		p.store = store
	}
}

// WithIngestor sets the media ingestion service
func WithIngestor(ingestor *Ingestor) Option {
	return func(p *Publisher) {
		p.ingestor = ingestor
	}
}

// WithSession sets the edit session
func WithSession(session *EditSession) Option {
	return func(p *Publisher) {
		p.session = session
	}
}

// WithAuthorizer sets the authorization predicate
func WithAuthorizer(authorizer Authorizer) Option {
	return func(p *Publisher) {
		p.authorizer = authorizer
	}
}

// WithEventSink sets the event sink
func WithEventSink(sink EventSink) Option {
	return func(p *Publisher) {
		p.events = sink
	}
}

// WithSettingsReport sets which configuration values are present, as shown by
// CheckConnectivity
func WithSettingsReport(settings map[string]bool) Option {
	return func(p *Publisher) {
		p.settings = settings
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a new publisher with the given options
func New(options ...Option) (*Publisher, error) {
	p := &Publisher{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, option := range options {
		option(p)
	}

	if p.store == nil {
		return nil, fmt.Errorf("content store is required")
	}
	if p.authorizer == nil {
		return nil, fmt.Errorf("authorizer is required")
	}
	if p.session == nil {
		p.session = NewEditSession()
	}
	if p.ingestor == nil {
		p.ingestor = NewIngestor(p.store, WithIngestorLogger(p.logger))
	}
	if p.events == nil {
		p.events = NewNoopEventSink()
	}
	return p, nil
}

func (p *Publisher) authorize(ctx context.Context) error {
	err := p.authorizer.Authorize(ctx)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnauthorized, err)
}

// GetCurrentDocument reads the document from the content store and loads it
// into the edit session
func (p *Publisher) GetCurrentDocument(ctx context.Context) (*Document, error) {
	if err := p.authorize(ctx); err != nil {
		return nil, err
	}
	doc, err := p.store.Read(ctx)
	if err != nil {
		p.logger.Error("Failed to read content document", "error", err)
		return nil, err
	}
	p.session.Load(doc)
	return doc, nil
}

// DraftDocument returns the edit session's current document
func (p *Publisher) DraftDocument(ctx context.Context) (*Document, error) {
	if err := p.authorize(ctx); err != nil {
		return nil, err
	}
	return p.session.Document()
}

// ApplyEdit replaces the value at path in the edit session
func (p *Publisher) ApplyEdit(ctx context.Context, path string, value interface{}) error {
	if err := p.authorize(ctx); err != nil {
		return err
	}
	if err := p.session.Update(path, value); err != nil {
		p.logger.Error("Failed to apply edit", "path", path, "error", err)
		return err
	}
	return nil
}

// AppendItem adds an item at the end of the list at path
func (p *Publisher) AppendItem(ctx context.Context, path string, item interface{}) error {
	if err := p.authorize(ctx); err != nil {
		return err
	}
	return p.session.Append(path, item)
}

// RemoveItem removes the list element at index
func (p *Publisher) RemoveItem(ctx context.Context, path string, index int) error {
	if err := p.authorize(ctx); err != nil {
		return err
	}
	return p.session.Remove(path, index)
}

// MoveItem moves a list element from one index to another
func (p *Publisher) MoveItem(ctx context.Context, path string, from, to int) error {
	if err := p.authorize(ctx); err != nil {
		return err
	}
	return p.session.Move(path, from, to)
}

// UploadAsset stores one file and returns its public URL. The caller feeds the
// URL into ApplyEdit as a separate step.
func (p *Publisher) UploadAsset(ctx context.Context, up Upload) (*Asset, error) {
	if err := p.authorize(ctx); err != nil {
		return nil, err
	}
	if err := CheckUploadSize(int64(len(up.Data))); err != nil {
		return nil, err
	}
	asset, err := p.ingestor.Ingest(ctx, up)
	if err != nil {
		return nil, err
	}
	if err := p.events.AssetIngested(ctx, asset); err != nil {
		p.logger.Warn("Event sink failed", "event", "asset_ingested", "error", err)
	}
	return asset, nil
}

// Publish writes the edit session's document through the content store.
// The returned error is reserved for failures before storage is touched
// (authorization, nothing loaded); storage failures are reported as
// OutcomeFailed in the result.
func (p *Publisher) Publish(ctx context.Context) (*PublishResult, error) {
	if err := p.authorize(ctx); err != nil {
		return nil, err
	}
	doc, err := p.session.Document()
	if err != nil {
		return nil, err
	}
	return p.publish(ctx, doc), nil
}

// PublishDocument replaces the edit session with doc and publishes it
func (p *Publisher) PublishDocument(ctx context.Context, doc *Document) (*PublishResult, error) {
	if err := p.authorize(ctx); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNoDocument
	}
	p.session.Load(doc)
	return p.publish(ctx, doc), nil
}

func (p *Publisher) publish(ctx context.Context, doc *Document) *PublishResult {
	result := &PublishResult{
		Path:        p.store.Path(),
		PublishedAt: p.now().UTC(),
	}

	written, err := p.store.Write(ctx, doc)
	switch {
	case err != nil:
		result.Outcome = OutcomeFailed
		result.Err = err
		p.logger.Error("Publish failed", "path", result.Path, "conflict", errors.Is(err, ErrRevisionConflict), "error", err)
	case written.Degraded:
		result.Outcome = OutcomeDegraded
		result.Warning = written.Warning
		p.logger.Warn("Publish degraded to local copy only", "path", result.Path, "warning", written.Warning)
	default:
		result.Outcome = OutcomePublished
		result.Revision = written.Revision
		result.Unchanged = written.Unchanged
		p.logger.Info("Content published", "path", result.Path, "revision", written.Revision, "unchanged", written.Unchanged)
	}

	if err := p.events.DocumentPublished(ctx, result); err != nil {
		p.logger.Warn("Event sink failed", "event", "document_published", "error", err)
	}
	return result
}

// CheckConnectivity reports the configured backends and probes the remote store
func (p *Publisher) CheckConnectivity(ctx context.Context) (*ConnectivityReport, error) {
	if err := p.authorize(ctx); err != nil {
		return nil, err
	}

	report := &ConnectivityReport{
		BlobConfigured: p.ingestor.BlobConfigured(),
		Storage:        p.ingestor.AdminConfig(ctx).Storage,
		Settings:       p.settings,
	}

	remote := p.store.Remote()
	if remote == nil {
		report.Remote = &RemoteStatus{Connected: false, Message: "remote store is not configured"}
		return report, nil
	}
	report.RemoteConfigured = true
	report.RemoteStore = remote.Name()

	if checker, ok := remote.(RemoteChecker); ok {
		status, err := checker.Check(ctx)
		if err != nil {
			p.logger.Warn("Remote connectivity check failed", "store", remote.Name(), "error", err)
			report.Remote = &RemoteStatus{Connected: false, Message: err.Error()}
			return report, nil
		}
		report.Remote = status
		return report, nil
	}

	_, err := remote.GetFile(ctx, p.store.Path())
	switch {
	case err == nil:
		report.Remote = &RemoteStatus{Connected: true, Message: "content document found"}
	case errors.Is(err, ErrRemoteNotFound):
		report.Remote = &RemoteStatus{Connected: true, Message: "connected, content document not published yet"}
	default:
		report.Remote = &RemoteStatus{Connected: false, Message: err.Error()}
	}
	return report, nil
}
