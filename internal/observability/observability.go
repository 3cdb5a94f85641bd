// Package observability configures the process-wide logging pipeline:
// a console slog handler, optionally fanned out to an OpenTelemetry log
// exporter selected through the standard OTEL_* environment variables.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "github.com/hrustic/seedhub"

var (
	shutdownMu sync.Mutex
	shutdown   func(context.Context) error
)

// Instrument installs the default slog logger. format is "text" or
// "json". When OTEL_LOGS_EXPORTER selects an exporter ("otlp" or
// "console"), log records are additionally exported through an
// OpenTelemetry pipeline filtered to the same minimum level.
func Instrument(level slog.Level, format string) error {
	var console slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		console = slog.NewJSONHandler(os.Stderr, opts)
	case "text", "":
		console = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unsupported log format: %s", format)
	}

	handler := console

	exporter, err := newExporterFromEnv()
	if err != nil {
		return err
	}
	if exporter != nil {
		provider := sdklog.NewLoggerProvider(
			sdklog.WithProcessor(
				minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level)),
			),
		)

		shutdownMu.Lock()
		shutdown = provider.Shutdown
		shutdownMu.Unlock()

		handler = tee(console, otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)))
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Shutdown flushes any pending exported log records.
func Shutdown(ctx context.Context) error {
	shutdownMu.Lock()
	fn := shutdown
	shutdownMu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// newExporterFromEnv builds the exporter named by OTEL_LOGS_EXPORTER.
// Unset or "none" means no export pipeline.
func newExporterFromEnv() (sdklog.Exporter, error) {
	switch os.Getenv("OTEL_LOGS_EXPORTER") {
	case "", "none":
		return nil, nil
	case "console":
		exporter, err := stdoutlog.New()
		if err != nil {
			return nil, fmt.Errorf("creating stdout log exporter: %w", err)
		}
		return exporter, nil
	case "otlp":
		// Endpoint, headers, and TLS all come from the standard
		// OTEL_EXPORTER_OTLP_* variables the exporters read themselves.
		if os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "grpc" {
			exporter, err := otlploggrpc.New(context.Background())
			if err != nil {
				return nil, fmt.Errorf("creating OTLP gRPC log exporter: %w", err)
			}
			return exporter, nil
		}
		exporter, err := otlploghttp.New(context.Background())
		if err != nil {
			return nil, fmt.Errorf("creating OTLP HTTP log exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported OTEL_LOGS_EXPORTER: %s", os.Getenv("OTEL_LOGS_EXPORTER"))
	}
}

// severity maps an slog level onto the minimum OpenTelemetry severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}
