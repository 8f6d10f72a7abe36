// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

// Package types defines the data structures used.
package types

import (
	"time"

	"github.com/google/uuid"
)

// BookingRequest is what the booking form sends, nothing more
type BookingRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Time  string `json:"time" validate:"required,datetime=15:04"`
}

// ResumeLink is the answer of the resume endpoint
type ResumeLink struct {
	PresignedURL    string `json:"presigned_url"`
	ValidForSeconds int    `json:"expires_in"`
}

// APIError is the optional error body of the backend
type APIError struct {
	Error string `json:"error"`
}

// OutcomeKind is the closed set of ways an outbound call can end
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRateLimited
	OutcomeBackendError
	OutcomeNetworkError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeBackendError:
		return "backend_error"
	case OutcomeNetworkError:
		return "network_error"
	}
	return "unknown"
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Outcome is the classified result of one call to the backend.
// Status is 0 when no response was received.
type Outcome struct {
	Kind    OutcomeKind `json:"kind"`
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Body    []byte      `json:"-"`
	Err     error       `json:"-"`
}

// OK reports a successful outcome
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// Download log states
const (
	DownloadPending  = "PENDING"
	DownloadSuccess  = "SUCCESS"
	DownloadRedeemed = "REDEEMED"
	// followed by the failure code
	DownloadFailedPrefix = "FAILED: "
)

// DownloadLog is the audit entry for a handed out resume link
type DownloadLog struct {
	ID          uuid.UUID `json:"log_id"`
	FileKey     string    `json:"file_key"`
	RequesterIP string    `json:"requester_ip"`
	UserAgent   string    `json:"user_agent"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"timestamp"`
}

// Booking is a stored booking request
type Booking struct {
	ID uuid.UUID `json:"id"`
	BookingRequest
	CreatedAt time.Time `json:"created_at"`
}

// BookingConfirmation is handed to whoever sends the confirmation mail
type BookingConfirmation struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	BookedAt time.Time `json:"booked_at"`
}
