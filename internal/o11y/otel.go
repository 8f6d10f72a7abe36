// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package o11y

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ShutdownFunc flushes whatever providers were started
type ShutdownFunc func(context.Context) error

// SetupOTel starts the providers according to OTLPHTTP_ENDPOINT / OTLPHTTP_TRACES_ENDPOINT.
// If nothing is configured, everything just remains silent.
func SetupOTel(ctx context.Context, commonAttribs []attribute.KeyValue) (ShutdownFunc, error) {
	// trace context goes out with every courier call, exporter or not
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var shutdowns []ShutdownFunc
	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}

	otlphttpEndpoint, otlphttpOk := os.LookupEnv("OTLPHTTP_ENDPOINT")
	otlphttpTracesEndpoint, otlphttpTracesOk := os.LookupEnv("OTLPHTTP_TRACES_ENDPOINT")
	switch {
	case otlphttpTracesOk:
		tp, err := InitTracer(otlphttpTracesEndpoint, commonAttribs)
		if err != nil {
			return shutdown, err
		}
		shutdowns = append(shutdowns, tp.Shutdown)
		slog.InfoContext(ctx, "Sending traces to "+otlphttpTracesEndpoint)
	case otlphttpOk:
		tp, err := InitTracer(otlphttpEndpoint, commonAttribs)
		if err != nil {
			return shutdown, err
		}
		shutdowns = append(shutdowns, tp.Shutdown)
		mp, err := InitMeter(otlphttpEndpoint, commonAttribs)
		if err != nil {
			return shutdown, err
		}
		shutdowns = append(shutdowns, mp.Shutdown)
		lp, err := InitOtelLogger(otlphttpEndpoint, commonAttribs)
		if err != nil {
			return shutdown, err
		}
		shutdowns = append(shutdowns, lp.Shutdown)
		slog.InfoContext(ctx, "Sending OTEL data to "+otlphttpEndpoint)
	default:
		slog.InfoContext(ctx, "Not sending OTEL data")
	}
	return shutdown, nil
}

// InitTracer initializes an OpenTelemetry tracer provider that exports traces to the specified OTLP HTTP endpoint.
func InitTracer(otlphttpEndpoint string, commonAttribs []attribute.KeyValue) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(otlphttpEndpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, commonAttribs...)),
	)
	otel.SetTracerProvider(tracerProvider)
	return tracerProvider, nil
}

// InitMeter initializes an OpenTelemetry meter provider that exports metrics to the specified OTLP HTTP endpoint.
func InitMeter(otlphttpEndpoint string, commonAttribs []attribute.KeyValue) (*sdkmetric.MeterProvider, error) {
	metricExporter, err := otlpmetrichttp.New(context.Background(), otlpmetrichttp.WithEndpoint(otlphttpEndpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(resource.NewWithAttributes(semconv.SchemaURL, commonAttribs...)),
	)
	otel.SetMeterProvider(meterProvider)
	return meterProvider, nil
}

// InitOtelLogger initializes an OpenTelemetry logger provider that exports logs to the specified OTLP HTTP endpoint.
func InitOtelLogger(otlphttpEndpoint string, commonAttribs []attribute.KeyValue) (*sdklog.LoggerProvider, error) {
	logExporter, err := otlploghttp.New(context.Background(), otlploghttp.WithEndpoint(otlphttpEndpoint), otlploghttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	logProvider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(resource.NewWithAttributes(semconv.SchemaURL, commonAttribs...)),
	)
	global.SetLoggerProvider(logProvider)
	return logProvider, nil
}
