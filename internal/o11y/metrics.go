// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package o11y

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Flows counted by RecordOutcome
const (
	FlowResume  = "resume"
	FlowBooking = "booking"
	FlowArchive = "archive"
)

var (
	OutcomeCounterProm *prometheus.CounterVec
	InFlightGaugeProm  prometheus.GaugeFunc
	OutcomeCounterOtel metric.Int64Counter
	InFlightGaugeOtel  metric.Int64ObservableGauge

	commonOtelAttribs []attribute.KeyValue
)

// InitFolioInstruments sets up metrics in both OTEL and Prometheus.
// inFlight reports the number of booking submissions waiting for the API.
func InitFolioInstruments(appName string, commonAttribs []attribute.KeyValue, inFlight func() int64) error {
	meter := otel.GetMeterProvider().Meter(appName)
	commonOtelAttribs = commonAttribs

	var err error
	OutcomeCounterOtel, err = meter.Int64Counter(
		"genteelfolio_outcomes",
		metric.WithDescription("Classified results of calls between the site and the API"),
	)
	if err != nil {
		return err
	}
	InFlightGaugeOtel, err = meter.Int64ObservableGauge(
		"genteelfolio_inflight_submissions",
		metric.WithDescription("Booking submissions waiting for the API"),
	)
	if err != nil {
		return err
	}

	promLabels := make(prometheus.Labels)
	for _, attr := range commonAttribs {
		promLabels[string(attr.Key)] = attr.Value.AsString()
	}

	OutcomeCounterProm = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:        "genteelfolio_outcomes_p",
		Help:        "Classified results of calls between the site and the API",
		ConstLabels: promLabels,
	}, []string{"flow", "kind"})
	InFlightGaugeProm = promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "genteelfolio_inflight_submissions_p",
		Help:        "Booking submissions waiting for the API",
		ConstLabels: promLabels,
	}, func() float64 {
		return float64(inFlight())
	})

	// OTEL reads the gauge on every collection
	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			observer.ObserveInt64(InFlightGaugeOtel, inFlight(), metric.WithAttributes(commonAttribs...))
			return nil
		}, InFlightGaugeOtel)
	return err
}

// RecordOutcome counts one classified result, a no-op before InitFolioInstruments
func RecordOutcome(ctx context.Context, flow string, kind string) {
	if OutcomeCounterProm != nil {
		OutcomeCounterProm.WithLabelValues(flow, kind).Inc()
	}
	if OutcomeCounterOtel != nil {
		attrs := append([]attribute.KeyValue{
			attribute.String("flow", flow),
			attribute.String("kind", kind),
		}, commonOtelAttribs...)
		OutcomeCounterOtel.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
