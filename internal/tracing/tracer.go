// Package tracing configures OpenTelemetry for the application. Tracing is
// off by default; when enabled it records the open/close lifecycle and
// render sequencing to a local JSONL file for debugging with jq.
package tracing

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const serviceName = "mermaidpad"

// Config configures the tracing subsystem.
type Config struct {
	// Enabled controls whether tracing is active. When false every span is
	// a no-op.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the export backend: "file", "stdout", or "none".
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter, typically
	// ~/.config/mermaidpad/traces/traces.jsonl.
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfig returns the defaults: tracing disabled, file exporter.
func DefaultConfig() Config {
	return Config{Enabled: false, Exporter: "file"}
}

// Provider manages the OpenTelemetry tracer provider.
type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	enabled  bool
}

var (
	mu     sync.RWMutex
	active trace.Tracer = noop.NewTracerProvider().Tracer("noop")
)

// Tracer returns the process-wide tracer. Safe before Init; spans are
// no-ops until a provider is installed.
func Tracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// NewProvider creates the trace provider and installs its tracer as the
// process-wide tracer. A disabled config yields a zero-overhead no-op
// provider.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{
			tracer:  noop.NewTracerProvider().Tracer("noop"),
			enabled: false,
		}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file_path required for file exporter")
		}
		exporter, err = NewFileExporter(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("create file exporter: %w", err)
		}
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
	case "none", "":
		// Tracing enabled for internal correlation without export.
		exporter = nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Exporter)
	}

	// NewSchemaless avoids schema version conflicts with resource.Default().
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)

	p := &Provider{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		enabled:  true,
	}
	mu.Lock()
	active = p.tracer
	mu.Unlock()
	return p, nil
}

// Tracer returns this provider's tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Enabled reports whether tracing is active.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Shutdown flushes pending spans. Call on application exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider != nil {
		mu.Lock()
		active = noop.NewTracerProvider().Tracer("noop")
		mu.Unlock()
		return p.provider.Shutdown(ctx)
	}
	return nil
}
