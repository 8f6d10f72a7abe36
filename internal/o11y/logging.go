// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package o11y

import (
	"context"
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/trace"
)

// Logger stays silent until CreateLogger ran, so packages can log from tests
var Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// CreateLogger fans out to OTEL and stdout, every line names the role of this process
func CreateLogger(appName string, role string, jsonLogging bool) *slog.Logger {
	Logger = newLogger(os.Stdout, otelslog.NewLogger(appName).Handler(), role, jsonLogging)
	return Logger
}

// text output is for local runs and shows everything
func newLogger(w io.Writer, otelHandler slog.Handler, role string, jsonLogging bool) *slog.Logger {
	var local slog.Handler
	if jsonLogging {
		local = slog.NewJSONHandler(w, &slog.HandlerOptions{})
	} else {
		local = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(slogmulti.Fanout(otelHandler, local)).With(slog.String("role", role))
}

func LoggerTraceAttr(ctx context.Context, span trace.Span) slog.Attr {
	var traceAttr slog.Attr
	if trace.SpanFromContext(ctx).SpanContext().HasTraceID() {
		traceAttr = slog.String("trace_id", span.SpanContext().TraceID().String())
	}
	return traceAttr
}

func LoggerSpanAttr(ctx context.Context, span trace.Span) slog.Attr {
	var spanAttr slog.Attr
	if trace.SpanFromContext(ctx).SpanContext().HasSpanID() {
		spanAttr = slog.String("span_id", span.SpanContext().SpanID().String())
	}
	return spanAttr
}
