// Package monitoring 提供日志、指标与分布式追踪的实现
package monitoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/dashgate/internal/config"
	"github.com/turtacn/dashgate/pkg/constants"
	"github.com/turtacn/dashgate/pkg/logger"
)

// TracingManager owns the tracer used for request spans.
// TracingManager 管理请求级别的 OpenTelemetry 追踪
type TracingManager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	logger   logger.Logger
}

// NewTracingManager exports spans to Jaeger when tracing is enabled and
// falls back to the global no-op tracer otherwise.
func NewTracingManager(cfg *config.Config, log logger.Logger) (*TracingManager, error) {
	name := cfg.Tracing.ServiceName
	if name == "" {
		name = constants.ServiceName
	}

	if !cfg.Tracing.Enabled {
		log.Info(context.Background(), "Tracing is disabled")
		return &TracingManager{tracer: otel.Tracer(name), logger: log}, nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Tracing.JaegerEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("jaeger exporter: %w", err)
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceNameKey.String(name),
		semconv.ServiceVersionKey.String(constants.ServiceVersion),
		attribute.String("dashgate.mode", string(cfg.Mode)),
	))
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Tracing.SamplingRate))),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	log.Info(context.Background(), "Request tracing enabled",
		logger.String("collector", cfg.Tracing.JaegerEndpoint),
		logger.Fields{"sampling_rate": cfg.Tracing.SamplingRate},
	)
	return &TracingManager{tracer: provider.Tracer(name), provider: provider, logger: log}, nil
}

// StartSpan starts a span on the dashgate tracer.
func (tm *TracingManager) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tm.tracer.Start(ctx, spanName, opts...)
}

// ExtractTraceContext continues a trace propagated in carrier (W3C traceparent / baggage).
func (tm *TracingManager) ExtractTraceContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// Shutdown flushes pending spans.
func (tm *TracingManager) Shutdown(ctx context.Context) error {
	if tm.provider == nil {
		return nil
	}
	if err := tm.provider.Shutdown(ctx); err != nil {
		tm.logger.Error(ctx, "Failed to flush request spans", err)
		return err
	}
	return nil
}

// AnnotateGateDecision adds a gate rejection to the request span in ctx.
// err is set for internal faults and marks the span as failed.
// AnnotateGateDecision 将网关拒绝结果写入当前 Span。
func AnnotateGateDecision(ctx context.Context, outcome string, pool constants.RateLimitPool, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("gate.outcome", outcome)}
	if pool != "" {
		attrs = append(attrs, attribute.String("gate.pool", string(pool)))
	}
	span.AddEvent("gate.rejected", trace.WithAttributes(attrs...))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gate fault")
	}
}

// TraceIDFromContext returns the trace id of the span in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
