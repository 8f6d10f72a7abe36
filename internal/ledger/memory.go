// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package ledger

import (
	"context"
	"sync"

	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/google/uuid"
)

// Memory keeps everything in the process, used when no DATABASE_URL is given
type Memory struct {
	mu        sync.Mutex
	downloads map[uuid.UUID]types.DownloadLog
	bookings  map[string]types.Booking
}

func NewMemory() *Memory {
	return &Memory{
		downloads: make(map[uuid.UUID]types.DownloadLog),
		bookings:  make(map[string]types.Booking),
	}
}

func (m *Memory) OpenDownload(_ context.Context, entry types.DownloadLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads[entry.ID] = entry
	return nil
}

func (m *Memory) SetDownloadStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.downloads[id]
	if !ok {
		return ErrNotFound
	}
	entry.Status = status
	m.downloads[id] = entry
	return nil
}

func (m *Memory) RedeemDownload(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.downloads[id]
	if !ok || entry.Status != types.DownloadSuccess {
		return ErrNotFound
	}
	entry.Status = types.DownloadRedeemed
	m.downloads[id] = entry
	return nil
}

// Downloads returns a copy of every log entry
func (m *Memory) Downloads() []types.DownloadLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]types.DownloadLog, 0, len(m.downloads))
	for _, entry := range m.downloads {
		entries = append(entries, entry)
	}
	return entries
}

func (m *Memory) SaveBooking(_ context.Context, booking types.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot := booking.Date + " " + booking.Time
	if _, taken := m.bookings[slot]; taken {
		return ErrSlotTaken
	}
	m.bookings[slot] = booking
	return nil
}

// Bookings counts the stored bookings
func (m *Memory) Bookings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() {}
