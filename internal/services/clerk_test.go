// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/schildwaechter/genteelfolio/internal/ledger"
	"github.com/schildwaechter/genteelfolio/internal/types"
)

type recordingHerald struct {
	mu    sync.Mutex
	heard []types.BookingConfirmation
	fail  error
}

func (h *recordingHerald) AnnounceBooking(_ context.Context, confirmation types.BookingConfirmation) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return h.fail
	}
	h.heard = append(h.heard, confirmation)
	return nil
}

func (h *recordingHerald) Close() error { return nil }

func TestRegisterStoresAndAnnounces(t *testing.T) {
	store := ledger.NewMemory()
	h := &recordingHerald{}
	clerk := NewDiligentClerk("genteelfolio-test", store, h)

	booking, err := clerk.Register(context.Background(), bookingRequest())
	if err != nil {
		t.Fatal(err)
	}
	if store.Bookings() != 1 {
		t.Errorf("booking not stored")
	}
	if len(h.heard) != 1 || h.heard[0].ID != booking.ID || h.heard[0].Email != "ada@example.com" {
		t.Errorf("unexpected announcements %+v", h.heard)
	}

	if _, err := clerk.Register(context.Background(), bookingRequest()); !errors.Is(err, ledger.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if len(h.heard) != 1 {
		t.Errorf("a refused booking must not be announced")
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	store := ledger.NewMemory()
	clerk := NewDiligentClerk("genteelfolio-test", store, &recordingHerald{})

	req := bookingRequest()
	req.Date = "tomorrow"
	if _, err := clerk.Register(context.Background(), req); !errors.Is(err, types.ErrInvalidBooking) {
		t.Fatalf("expected ErrInvalidBooking, got %v", err)
	}
	if store.Bookings() != 0 {
		t.Errorf("invalid booking stored")
	}
}

func TestRegisterSurvivesSilentHerald(t *testing.T) {
	store := ledger.NewMemory()
	clerk := NewDiligentClerk("genteelfolio-test", store, &recordingHerald{fail: errors.New("broker gone")})

	if _, err := clerk.Register(context.Background(), bookingRequest()); err != nil {
		t.Fatalf("booking must stand without the herald: %v", err)
	}
	if store.Bookings() != 1 {
		t.Errorf("booking not stored")
	}
}
