// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

// Package herald announces accepted bookings to whoever sends the confirmation mails.
package herald

import (
	"context"
	"log/slog"

	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/types"
)

// RoutingKey for confirmed bookings
const RoutingKey = "booking.confirmed"

type Herald interface {
	AnnounceBooking(ctx context.Context, confirmation types.BookingConfirmation) error
	Close() error
}

// QuietHerald only writes the announcement to the log
type QuietHerald struct{}

func (QuietHerald) AnnounceBooking(ctx context.Context, confirmation types.BookingConfirmation) error {
	o11y.Logger.InfoContext(ctx, "Booking confirmed",
		slog.String("booking_id", confirmation.ID.String()),
		slog.String("date", confirmation.Date),
		slog.String("time", confirmation.Time),
	)
	return nil
}

func (QuietHerald) Close() error { return nil }
