// Package telemetry exports the cache's trace spans and log records to an
// OpenTelemetry collector.
package telemetry

import (
	"context"
	"net/url"
	"time"

	"github.com/agentuity/storefront-cache/logger"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

// Paths appended to the collector URL.
const (
	TracesPath = "/v1/traces"
	LogsPath   = "/v1/logs"
)

type ShutdownFunc func()

// endpoint parses the collector URL and points it at path.
func endpoint(otlpServerURL, path string) (*url.URL, error) {
	otlpURL, err := url.Parse(otlpServerURL)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing otlpServerURL")
	}
	if otlpURL.Scheme != "http" && otlpURL.Scheme != "https" {
		return nil, errors.Newf("otlp url must be http or https, got %q", otlpURL.Scheme)
	}
	otlpURL.Path = path
	return otlpURL, nil
}

func newResource(ctx context.Context, serviceName string, log logger.Logger) (*resource.Resource, error) {
	res, err := resource.New(
		ctx,
		resource.WithFromEnv(),      // OTEL_RESOURCE_ATTRIBUTES and OTEL_SERVICE_NAME
		resource.WithTelemetrySDK(), // SDK name and version
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		log.Warn("telemetry resource is incomplete: %s", err)
	} else if err != nil {
		return nil, errors.Wrap(err, "error creating resource")
	}
	return res, nil
}

func authHeaders(authToken string) map[string]string {
	headers := make(map[string]string)
	if authToken != "" {
		headers["Authorization"] = "Bearer " + authToken
	}
	return headers
}

// New returns a tracer provider that batches spans to the OTLP/HTTP collector
// at otlpServerURL. The returned ShutdownFunc flushes pending spans and must be
// called before exit.
func New(ctx context.Context, otlpServerURL string, authToken string, serviceName string, log logger.Logger) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	otlpURL, err := endpoint(otlpServerURL, TracesPath)
	if err != nil {
		return nil, nil, err
	}
	res, err := newResource(ctx, serviceName, log)
	if err != nil {
		return nil, nil, err
	}

	exporterOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpURL.String()),
		otlptracehttp.WithHeaders(authHeaders(authToken)),
		otlptracehttp.WithTimeout(time.Second * 10),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}
	if otlpURL.Scheme == "http" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating trace exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	return tp, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn("telemetry shutdown: %s", err)
		}
	}, nil
}

// NewLogger returns a Logger that batches records at level and above to the
// OTLP/HTTP collector at otlpServerURL. Stack it onto the console logger to
// keep local output. The returned ShutdownFunc flushes pending records.
func NewLogger(ctx context.Context, otlpServerURL string, authToken string, serviceName string, level logger.LogLevel, log logger.Logger) (logger.Logger, ShutdownFunc, error) {
	otlpURL, err := endpoint(otlpServerURL, LogsPath)
	if err != nil {
		return nil, nil, err
	}
	res, err := newResource(ctx, serviceName, log)
	if err != nil {
		return nil, nil, err
	}

	exporterOpts := []otlploghttp.Option{
		otlploghttp.WithEndpointURL(otlpURL.String()),
		otlploghttp.WithHeaders(authHeaders(authToken)),
		otlploghttp.WithTimeout(time.Second * 10),
		otlploghttp.WithCompression(otlploghttp.GzipCompression),
	}
	if otlpURL.Scheme == "http" {
		exporterOpts = append(exporterOpts, otlploghttp.WithInsecure())
	}
	exporter, err := otlploghttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating log exporter")
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	return logger.NewOtelLogger(lp.Logger(serviceName), level), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := lp.Shutdown(ctx); err != nil {
			log.Warn("telemetry log shutdown: %s", err)
		}
	}, nil
}
