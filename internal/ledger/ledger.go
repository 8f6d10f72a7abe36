// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

// Package ledger keeps the download audit trail and the bookings.
package ledger

import (
	"context"
	"errors"

	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrSlotTaken = errors.New("slot taken")
)

// Ledger is implemented by the Postgres store and the in-memory one
type Ledger interface {
	// OpenDownload records a new link request
	OpenDownload(ctx context.Context, entry types.DownloadLog) error
	SetDownloadStatus(ctx context.Context, id uuid.UUID, status string) error
	// RedeemDownload moves a SUCCESS entry to REDEEMED exactly once.
	// Unknown ids and entries in any other state give ErrNotFound.
	RedeemDownload(ctx context.Context, id uuid.UUID) error
	// SaveBooking gives ErrSlotTaken when date and time are already booked
	SaveBooking(ctx context.Context, booking types.Booking) error
	Ping(ctx context.Context) error
	Close()
}
