package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"earnings/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

var (
	global = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	// withSource adds the caller's function, file and line to every record
	withSource bool
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level           string // DEBUG, INFO, WARN, ERROR
	Format          string // json or text
	DetailedLogging bool   // debug level plus caller location
	Output          io.Writer
}

// Init configures the global logger from LOG_LEVEL, LOG_FORMAT and LOG_DETAILED.
func Init() error {
	return InitWithConfig(LoadConfigFromEnv())
}

func LoadConfigFromEnv() LogConfig {
	return LogConfig{
		Level:           envOr("LOG_LEVEL", "INFO"),
		Format:          envOr("LOG_FORMAT", "text"),
		DetailedLogging: envOr("LOG_DETAILED", "false") == "true",
	}
}

// InitWithConfig installs a slog handler for config. Records go to stderr
// unless config.Output is set, so stdout carries command output only.
func InitWithConfig(config LogConfig) error {
	level := parseLevel(config.Level)
	withSource = config.DetailedLogging
	if withSource {
		level = slog.LevelDebug
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}
	// slog's AddSource would report this package, record() adds the real caller instead
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if strings.EqualFold(config.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	}

	global = slog.New(h)
	slog.SetDefault(global)
	return nil
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		return slog.LevelInfo
	}
	return l
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func Debug(ctx context.Context, msg string, args ...any) {
	record(ctx, slog.LevelDebug, msg, 0, args)
}

func Info(ctx context.Context, msg string, args ...any) {
	record(ctx, slog.LevelInfo, msg, 0, args)
}

func Warn(ctx context.Context, msg string, args ...any) {
	record(ctx, slog.LevelWarn, msg, 0, args)
}

func Error(ctx context.Context, msg string, args ...any) {
	record(ctx, slog.LevelError, msg, 0, args)
}

// ErrorWithErr logs at error level and marks the current span as failed.
func ErrorWithErr(ctx context.Context, msg string, err error, args ...any) {
	failSpan(ctx, err)
	record(ctx, slog.LevelError, msg, 0, append([]any{"error", err}, args...))
}

// The *Skip variants are for decorators: skip extra frames so the reported
// source is the decorator's caller.

func DebugSkip(ctx context.Context, skip int, msg string, args ...any) {
	record(ctx, slog.LevelDebug, msg, skip, args)
}

func InfoSkip(ctx context.Context, skip int, msg string, args ...any) {
	record(ctx, slog.LevelInfo, msg, skip, args)
}

func ErrorWithErrSkip(ctx context.Context, skip int, msg string, err error, args ...any) {
	failSpan(ctx, err)
	record(ctx, slog.LevelError, msg, skip, append([]any{"error", err}, args...))
}

// record emits one entry. skip counts frames above the exported helper that
// called it.
func record(ctx context.Context, level slog.Level, msg string, skip int, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !global.Enabled(ctx, level) {
		return
	}

	if traceID, spanID, ok := trace.GetTraceFields(ctx); ok {
		args = append([]any{"trace_id", traceID, "span_id", spanID}, args...)
	}
	if withSource {
		// runtime.Caller: 0 is record, 1 the exported helper, 2 its caller
		if pc, file, line, ok := runtime.Caller(2 + skip); ok {
			name := ""
			if fn := runtime.FuncForPC(pc); fn != nil {
				name = fn.Name()
			}
			args = append(args, slog.Group("source",
				slog.String("function", name),
				slog.String("file", file),
				slog.Int("line", line),
			))
		}
	}

	global.Log(ctx, level, msg, args...)
}

func failSpan(ctx context.Context, err error) {
	if !trace.Enabled() || err == nil || ctx == nil {
		return
	}
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func spanEvent(ctx context.Context, name string, fields []any) {
	if !trace.Enabled() {
		return
	}
	span := oteltrace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		span.AddEvent(name, oteltrace.WithAttributes(toAttributes(fields)...))
	}
}

// OperationTimer ties a span to a timed, logged operation.
type OperationTimer struct {
	ctx    context.Context
	span   oteltrace.Span
	start  time.Time
	fields []any
}

// StartOperation opens a span named operation and logs its start at debug.
// Use GetContext for calls made inside the operation.
func StartOperation(ctx context.Context, operation string, fields ...any) *OperationTimer {
	ctx, span := trace.StartSpan(ctx, operation)
	if trace.Enabled() {
		span.SetAttributes(toAttributes(fields)...)
	}

	ot := &OperationTimer{
		ctx:    ctx,
		span:   span,
		start:  time.Now(),
		fields: append([]any{"operation", operation}, fields...),
	}
	record(ctx, slog.LevelDebug, "Operation started", 0, ot.fields)
	return ot
}

func (ot *OperationTimer) End(fields ...any) {
	ot.finish(nil, fields)
}

// EndWithError closes the span as failed and logs at error level.
func (ot *OperationTimer) EndWithError(err error, fields ...any) {
	ot.finish(err, fields)
}

func (ot *OperationTimer) finish(err error, extra []any) {
	elapsed := time.Since(ot.start)

	if trace.Enabled() {
		ot.span.SetAttributes(attribute.Int64("duration_ms", elapsed.Milliseconds()))
		ot.span.SetAttributes(toAttributes(extra)...)
		if err != nil {
			ot.span.RecordError(err)
			ot.span.SetStatus(codes.Error, err.Error())
		} else {
			ot.span.SetStatus(codes.Ok, "completed")
		}
		ot.span.End()
	}

	fields := make([]any, 0, len(ot.fields)+len(extra)+4)
	fields = append(fields, ot.fields...)
	fields = append(fields, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		fields = append(fields, "error", err)
		record(ot.ctx, slog.LevelError, "Operation failed", 1, append(fields, extra...))
		return
	}
	record(ot.ctx, slog.LevelDebug, "Operation completed", 1, append(fields, extra...))
}

func (ot *OperationTimer) GetContext() context.Context {
	return ot.ctx
}

func toAttributes(fields []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case []string:
			attrs = append(attrs, attribute.StringSlice(key, v))
		}
	}
	return attrs
}

// Trade records an order action sent to the broker.
func Trade(ctx context.Context, action, orderID string, symbols []string, qty int, price float64, fields ...any) {
	all := append([]any{
		"type", "TRADE",
		"action", action,
		"order_id", orderID,
		"symbols", symbols,
		"quantity", qty,
		"price", price,
	}, fields...)
	spanEvent(ctx, "order_event", all)
	record(ctx, slog.LevelInfo, "Order event", 0, all)
}

// Strangle records the strangle chosen for an underlying.
func Strangle(ctx context.Context, underlying string, putStrike, callStrike, premium, expectedMove float64, fields ...any) {
	all := append([]any{
		"type", "STRANGLE",
		"underlying", underlying,
		"put_strike", putStrike,
		"call_strike", callStrike,
		"premium", premium,
		"expected_move", expectedMove,
	}, fields...)
	spanEvent(ctx, "strangle_selected", all)
	record(ctx, slog.LevelInfo, "Strangle selected", 0, all)
}
