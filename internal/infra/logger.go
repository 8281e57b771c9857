package infra

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"virology-test-service/config"
)

// TraceHandler は現在のスパンのトレースIDをログレコードに付与するslogハンドラ。
// Google Cloudプロジェクトが設定されている場合はCloud Logging連携用の
// フィールドも併せて出力する。
type TraceHandler struct {
	inner       slog.Handler
	gcpProject  string
	otelEnabled bool
}

// NewTraceHandler は新しいTraceHandlerを生成する。
func NewTraceHandler(inner slog.Handler, cfg *config.Config) *TraceHandler {
	return &TraceHandler{
		inner:       inner,
		gcpProject:  cfg.GoogleCloudProject,
		otelEnabled: cfg.OtelEnabled,
	}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle はトレース情報を付与してからレコードを下位ハンドラへ渡す。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.otelEnabled {
		return h.inner.Handle(ctx, r)
	}

	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return h.inner.Handle(ctx, r)
	}

	traceID := spanCtx.TraceID().String()
	spanID := spanCtx.SpanID().String()
	r.AddAttrs(
		slog.String("trace", traceID),
		slog.String("spanId", spanID),
		slog.Bool("traceSampled", spanCtx.IsSampled()),
	)

	if h.gcpProject != "" {
		r.AddAttrs(
			slog.String("logging.googleapis.com/trace",
				"projects/"+h.gcpProject+"/traces/"+traceID),
			slog.String("logging.googleapis.com/spanId", spanID),
		)
	}

	return h.inner.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{
		inner:       h.inner.WithAttrs(attrs),
		gcpProject:  h.gcpProject,
		otelEnabled: h.otelEnabled,
	}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{
		inner:       h.inner.WithGroup(name),
		gcpProject:  h.gcpProject,
		otelEnabled: h.otelEnabled,
	}
}

// SetupLogger はJSON形式・トレース情報付きのグローバルロガーを設定する。
func SetupLogger(cfg *config.Config, level slog.Level) {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(NewTraceHandler(jsonHandler, cfg)))
}
