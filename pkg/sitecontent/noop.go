package sitecontent

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// DocumentPublished does nothing and returns nil
func (n *NoopEventSink) DocumentPublished(ctx context.Context, result *PublishResult) error {
	return nil
}

// AssetIngested does nothing and returns nil
func (n *NoopEventSink) AssetIngested(ctx context.Context, asset *Asset) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action.
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// DocumentPublished logs the publish outcome
func (l *LoggingEventSink) DocumentPublished(ctx context.Context, result *PublishResult) error {
	attrs := []any{"outcome", result.Outcome, "path", result.Path, "revision", result.Revision}
	if result.Warning != "" {
		attrs = append(attrs, "warning", result.Warning)
	}
	if result.Err != nil {
		attrs = append(attrs, "error", result.Err)
	}
	l.logger.InfoContext(ctx, "Document published", attrs...)
	return nil
}

// AssetIngested logs the stored asset
func (l *LoggingEventSink) AssetIngested(ctx context.Context, asset *Asset) error {
	l.logger.InfoContext(ctx, "Asset ingested", "url", asset.URL, "backend", asset.Backend, "size", asset.Size, "optimized", asset.Optimized)
	return nil
}
