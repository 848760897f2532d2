package telemetry

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

var (
	tracerName  = "github.com/unkn0wn-root/patchcat/internal/telemetry"
	httpHostKey = attribute.Key("http.host")
)

type Instrumenter interface {
	Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan)
	Shutdown(ctx context.Context) error
}

// RequestStart describes an outbound call. Kind is "http" or "websocket".
type RequestStart struct {
	Kind   string
	Name   string
	Method string
	URL    string
	Used   map[string]string
}

type RequestResult struct {
	Err        error
	StatusCode int
	Size       int64
}

type RequestSpan interface {
	Event(name string, attrs map[string]string)
	End(result RequestResult)
}

type providerOptions struct {
	exporter       sdktrace.SpanExporter
	spanProcessors []sdktrace.SpanProcessor
}

type Option func(*providerOptions)

func WithSpanProcessor(proc sdktrace.SpanProcessor) Option {
	return func(opts *providerOptions) {
		if proc != nil {
			opts.spanProcessors = append(opts.spanProcessors, proc)
		}
	}
}

func WithExporter(exp sdktrace.SpanExporter) Option {
	return func(opts *providerOptions) {
		if exp != nil {
			opts.exporter = exp
		}
	}
}

type manager struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
	shutdown sync.Once
}

func New(cfg Config, opts ...Option) (Instrumenter, error) {
	builder := providerOptions{}
	for _, opt := range opts {
		opt(&builder)
	}

	if !cfg.Enabled() && builder.exporter == nil && len(builder.spanProcessors) == 0 {
		return Noop(), nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(buildResourceAttributes(cfg)...),
	)
	if err != nil {
		return nil, err
	}

	exporter := builder.exporter
	if exporter == nil && cfg.Enabled() {
		exporter, err = newExporter(cfg)
		if err != nil {
			return nil, err
		}
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	for _, proc := range builder.spanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(proc))
	}

	tp := sdktrace.NewTracerProvider(tpOpts...)
	return &manager{tracer: tp.Tracer(tracerName), provider: tp}, nil
}

func (m *manager) Start(ctx context.Context, info RequestStart) (context.Context, RequestSpan) {
	ctx, span := m.tracer.Start(
		ctx,
		spanNameFor(info),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(buildSpanAttributes(info)...),
	)
	return ctx, &requestSpan{span: span}
}

func (m *manager) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	var shutdownErr error
	m.shutdown.Do(func() {
		shutdownErr = m.provider.Shutdown(ctx)
	})
	return shutdownErr
}

type requestSpan struct {
	span trace.Span
}

func (rs *requestSpan) Event(name string, attrs map[string]string) {
	if rs == nil || rs.span == nil {
		return
	}
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		kv = append(kv, attribute.String("patchcat."+k, attrs[k]))
	}
	rs.span.AddEvent("patchcat."+name, trace.WithAttributes(kv...))
}

func (rs *requestSpan) End(result RequestResult) {
	if rs == nil || rs.span == nil {
		return
	}

	if result.StatusCode > 0 {
		rs.span.SetAttributes(semconv.HTTPStatusCodeKey.Int(result.StatusCode))
	}
	if result.Size > 0 {
		rs.span.SetAttributes(attribute.Int64("patchcat.response.size", result.Size))
	}

	switch {
	case result.Err != nil:
		rs.span.RecordError(result.Err)
		rs.span.SetStatus(codes.Error, result.Err.Error())
	case result.StatusCode >= 400:
		rs.span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", result.StatusCode))
	default:
		rs.span.SetStatus(codes.Ok, "OK")
	}
	rs.span.End()
}

func Noop() Instrumenter {
	return noopInstrumenter{}
}

type noopInstrumenter struct{}

type noopSpan struct{}

func (noopInstrumenter) Start(ctx context.Context, _ RequestStart) (context.Context, RequestSpan) {
	return ctx, noopSpan{}
}

func (noopInstrumenter) Shutdown(context.Context) error { return nil }

func (noopSpan) Event(string, map[string]string) {}

func (noopSpan) End(RequestResult) {}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("telemetry endpoint is required")
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	clientOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(serviceName(cfg))),
	}
	if cfg.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		clientOpts = append(clientOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	client := otlptracegrpc.NewClient(clientOpts...)
	return otlptrace.New(ctx, client)
}

func serviceName(cfg Config) string {
	if name := strings.TrimSpace(cfg.ServiceName); name != "" {
		return name
	}
	return defaultServiceName
}

func buildResourceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName(cfg))}
	if strings.TrimSpace(cfg.Version) != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	return attrs
}

// buildSpanAttributes records which variables were substituted, never their values.
func buildSpanAttributes(info RequestStart) []attribute.KeyValue {
	kind := info.Kind
	if kind == "" {
		kind = "http"
	}
	attrs := []attribute.KeyValue{attribute.String("patchcat.request.kind", kind)}
	if info.Method != "" {
		attrs = append(attrs, semconv.HTTPMethodKey.String(info.Method))
	}
	if u, err := url.Parse(info.URL); err == nil && u.Host != "" {
		attrs = append(attrs,
			semconv.HTTPSchemeKey.String(u.Scheme),
			httpHostKey.String(u.Host),
			semconv.HTTPTargetKey.String(u.RequestURI()),
		)
	}
	if name := strings.TrimSpace(info.Name); name != "" {
		attrs = append(attrs, attribute.String("patchcat.request.name", name))
	}
	if len(info.Used) > 0 {
		keys := slices.Sorted(maps.Keys(info.Used))
		attrs = append(attrs, attribute.StringSlice("patchcat.variables", keys))
	}
	return attrs
}

func spanNameFor(info RequestStart) string {
	if name := strings.TrimSpace(info.Name); name != "" {
		return name
	}
	if info.Method != "" {
		if u, err := url.Parse(info.URL); err == nil && u.Host != "" {
			return fmt.Sprintf("%s %s", info.Method, u.Host)
		}
		return info.Method
	}
	return "patchcat.request"
}
