// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// answers larger than this are cut, nobody sends us novels
const maxAnswerBytes = 1 << 20

type visitorKey struct{}

// Visitor is whoever asked the site for something the courier now fetches
type Visitor struct {
	IP        string
	UserAgent string
}

// WithVisitor lets the courier speak for the visitor towards the API,
// so rate limits and the download log see them and not the site
func WithVisitor(ctx context.Context, v Visitor) context.Context {
	return context.WithValue(ctx, visitorKey{}, v)
}

func visitorFrom(ctx context.Context) (Visitor, bool) {
	v, ok := ctx.Value(visitorKey{}).(Visitor)
	return v, ok
}

// NimbleCourier carries requests to the API and sorts whatever comes back
type NimbleCourier struct {
	client     *http.Client
	timeout    time.Duration
	tracerName string
}

// NewNimbleCourier uses an instrumented transport; every call is bounded by timeout
func NewNimbleCourier(appName string, timeout time.Duration) *NimbleCourier {
	return NewNimbleCourierWithClient(appName, timeout, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
}

// NewNimbleCourierWithClient lets the caller bring its own client
func NewNimbleCourierWithClient(appName string, timeout time.Duration, client *http.Client) *NimbleCourier {
	return &NimbleCourier{client: client, timeout: timeout, tracerName: appName}
}

// Dispatch sends a single request and classifies the answer.
// A non-nil payload goes out as JSON. Nothing is retried.
func (n *NimbleCourier) Dispatch(ctx context.Context, method string, target string, payload any) types.Outcome {
	ctx, span := otel.Tracer(n.tracerName).Start(ctx, "NimbleCourier")
	defer span.End()
	span.SetAttributes(attribute.String("courier.method", method), attribute.String("courier.target", target))

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return types.Outcome{Kind: types.OutcomeNetworkError, Err: err}
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return types.Outcome{Kind: types.OutcomeNetworkError, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if v, ok := visitorFrom(ctx); ok {
		if v.IP != "" {
			req.Header.Set("X-Forwarded-For", v.IP)
			span.SetAttributes(attribute.String("courier.visitor", v.IP))
		}
		if v.UserAgent != "" {
			req.Header.Set("User-Agent", v.UserAgent)
		}
	}
	// Inject TraceParent to Context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	o11y.Logger.DebugContext(ctx, "Courier on the way to "+target+" 🐦", o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))

	resp, err := n.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o11y.Logger.ErrorContext(ctx, "Courier could not reach "+target, slog.Any("error", err), o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))
		return types.Outcome{Kind: types.OutcomeNetworkError, Err: err}
	}
	defer resp.Body.Close()

	answer, readErr := io.ReadAll(io.LimitReader(resp.Body, maxAnswerBytes))
	if readErr != nil {
		span.RecordError(readErr)
		o11y.Logger.WarnContext(ctx, "Courier dropped part of the answer", slog.Any("error", readErr))
	}

	outcome := types.Outcome{
		Kind:   Classify(resp.StatusCode),
		Status: resp.StatusCode,
		Body:   answer,
		Err:    readErr,
	}
	span.SetAttributes(attribute.Int("courier.status", resp.StatusCode), attribute.String("courier.outcome", outcome.Kind.String()))
	if !outcome.OK() {
		span.SetStatus(codes.Error, outcome.Kind.String())
	}
	return outcome
}

// Classify maps a status code onto the outcome kinds
func Classify(status int) types.OutcomeKind {
	switch {
	case status >= 200 && status < 300:
		return types.OutcomeSuccess
	case status == http.StatusTooManyRequests:
		return types.OutcomeRateLimited
	default:
		return types.OutcomeBackendError
	}
}
