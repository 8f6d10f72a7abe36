// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/herald"
	"github.com/schildwaechter/genteelfolio/internal/ledger"
	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DiligentClerk enters bookings into the ledger and has the herald announce them
type DiligentClerk struct {
	ledger     ledger.Ledger
	herald     herald.Herald
	tracerName string
}

func NewDiligentClerk(appName string, l ledger.Ledger, h herald.Herald) *DiligentClerk {
	return &DiligentClerk{ledger: l, herald: h, tracerName: appName}
}

// Register accepts a booking request.
// It returns types.ErrInvalidBooking or ledger.ErrSlotTaken when the request cannot be taken.
func (c *DiligentClerk) Register(ctx context.Context, req types.BookingRequest) (types.Booking, error) {
	ctx, span := otel.Tracer(c.tracerName).Start(ctx, "DiligentClerk")
	defer span.End()

	o11y.Logger.DebugContext(ctx, "Clerk at work 🖊️")

	req = req.Normalize()
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return types.Booking{}, err
	}

	booking := types.Booking{
		ID:             uuid.New(),
		BookingRequest: req,
		CreatedAt:      time.Now().UTC(),
	}
	span.SetAttributes(attribute.String("booking.id", booking.ID.String()), attribute.String("booking.slot", req.Date+" "+req.Time))

	span.AddEvent("Entering booking")
	if err := c.ledger.SaveBooking(ctx, booking); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ledger.ErrSlotTaken) {
			o11y.Logger.InfoContext(ctx, "Slot already taken", slog.String("slot", req.Date+" "+req.Time), o11y.LoggerTraceAttr(ctx, span))
		} else {
			o11y.Logger.ErrorContext(ctx, "Could not store booking", slog.Any("error", err), o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))
		}
		return types.Booking{}, err
	}

	// the booking stands even when nobody hears about it
	err := c.herald.AnnounceBooking(ctx, types.BookingConfirmation{
		ID:       booking.ID,
		Name:     booking.Name,
		Email:    booking.Email,
		Date:     booking.Date,
		Time:     booking.Time,
		BookedAt: booking.CreatedAt,
	})
	if err != nil {
		span.RecordError(err)
		o11y.Logger.ErrorContext(ctx, "Herald could not announce booking", slog.Any("error", err), o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))
	} else {
		span.AddEvent("Booking announced")
	}

	return booking, nil
}
