package logging

import (
	"log/slog"
	"os"
)

// InitStructured reconfigures the default operational logger.
// format is "text" (default) or "json"; level is debug/info/warn/error.
func InitStructured(format, level string) {
	SetLevelFromString(level)

	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	opLogger.Store(slog.New(handler))
}

// WithTrace returns a logger with trace_id (and optional span_id) attached,
// or base unchanged when traceID is empty. No component of the fabric
// calls it; the bus and worker pool log through Op() without trace ids.
func WithTrace(base *slog.Logger, traceID, spanID string) *slog.Logger {
	if base == nil {
		base = Op()
	}
	if traceID == "" {
		return base
	}
	args := []any{"trace_id", traceID}
	if spanID != "" {
		args = append(args, "span_id", spanID)
	}
	return base.With(args...)
}
