package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Log attribute keys.
const (
	LogKeyTraceID = "trace_id"
	LogKeySpanID  = "span_id"
	LogKeyService = "service"
	LogKeyVersion = "version"
	LogKeyEnv     = "env"
	LogKeyMode    = "mode"
)

// TracingHandler decorates records with the ids of the span active in the
// logging context. Process attributes from Config are attached once.
type TracingHandler struct {
	slog.Handler
}

// NewTracingHandler wraps inner with the service, version, environment and
// mode of cfg. Empty values are left out.
func NewTracingHandler(inner slog.Handler, cfg Config) *TracingHandler {
	var attrs []slog.Attr

	for _, kv := range [][2]string{
		{LogKeyService, cfg.ServiceName},
		{LogKeyVersion, cfg.ServiceVersion},
		{LogKeyEnv, cfg.Environment},
		{LogKeyMode, string(cfg.Mode)},
	} {
		if kv[1] != "" {
			attrs = append(attrs, slog.String(kv[0], kv[1]))
		}
	}

	return &TracingHandler{Handler: inner.WithAttrs(attrs)}
}

// Handle adds the span ids, if any, and passes the record on.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}

	return th.Handler.Handle(ctx, record) //nolint:wrapcheck // handler errors pass through unchanged.
}

// WithAttrs keeps span decoration on the derived handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{Handler: th.Handler.WithAttrs(attrs)}
}

// WithGroup keeps span decoration on the derived handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{Handler: th.Handler.WithGroup(name)}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
