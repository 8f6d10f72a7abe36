// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/schildwaechter/genteelfolio/internal/config"
	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/google/uuid"
)

// Notices shown on the booking page
const (
	BookingConfirmedNotice   = "Meeting booked successfully! Check your email for confirmation."
	BookingRateLimitedNotice = "429: Rate Limit Exceeded. Please try again in one minute. This API is throttled at %d requests/min for stability."
	BookingFailedNotice      = "Booking failed due to a backend error."
	BookingNetworkNotice     = "Network error. Could not reach the API Gateway."
	BookingTimeoutNotice     = "Network error. The API Gateway did not answer in time."
	BookingAbortedNotice     = "Booking cancelled before the API answered."
)

// ErrSubmissionInFlight rejects a second submission of the same form
var ErrSubmissionInFlight = errors.New("a submission for this form is already in flight")

// SubmitState is where a form instance stands
type SubmitState int

const (
	StateIdle SubmitState = iota
	StateSubmitting
)

func (s SubmitState) String() string {
	if s == StateSubmitting {
		return "submitting"
	}
	return "idle"
}

// BookingSubmitter posts booking forms to the API, one at a time per form instance
type BookingSubmitter struct {
	courier  *NimbleCourier
	endpoint string
	flags    *config.Flags

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
}

func NewBookingSubmitter(courier *NimbleCourier, endpoint string, flags *config.Flags) *BookingSubmitter {
	return &BookingSubmitter{
		courier:  courier,
		endpoint: endpoint,
		flags:    flags,
		inFlight: make(map[string]context.CancelFunc),
	}
}

// Submit validates the request and, if the form is idle, sends it.
// Invalid requests return types.ErrInvalidBooking and are never sent.
// An empty formID gets a throwaway identity, so it cannot collide with anyone.
func (s *BookingSubmitter) Submit(ctx context.Context, formID string, req types.BookingRequest) (types.Outcome, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return types.Outcome{}, err
	}
	if formID == "" {
		formID = uuid.NewString()
	}

	sendCtx, cancel := context.WithCancel(ctx)
	if !s.begin(formID, cancel) {
		cancel()
		return types.Outcome{}, ErrSubmissionInFlight
	}
	defer s.finish(formID)

	outcome := s.courier.Dispatch(sendCtx, http.MethodPost, s.endpoint, req)
	outcome.Message = s.describe(ctx, outcome)
	if outcome.Kind == types.OutcomeNetworkError {
		o11y.Logger.ErrorContext(ctx, "Booking API error", slog.String("form_id", formID), slog.Any("error", outcome.Err))
	}

	o11y.RecordOutcome(ctx, o11y.FlowBooking, outcome.Kind.String())
	return outcome, nil
}

// Abort cancels the submission in flight for formID, if there is one
func (s *BookingSubmitter) Abort(formID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cancel, ok := s.inFlight[formID]
	if ok {
		cancel()
	}
	return ok
}

// State reports whether formID is waiting for the API
func (s *BookingSubmitter) State(formID string) SubmitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[formID]; ok {
		return StateSubmitting
	}
	return StateIdle
}

// InFlight counts the submissions waiting for the API
func (s *BookingSubmitter) InFlight() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.inFlight))
}

func (s *BookingSubmitter) begin(formID string, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[formID]; busy {
		return false
	}
	s.inFlight[formID] = cancel
	return true
}

func (s *BookingSubmitter) finish(formID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.inFlight[formID]; ok {
		cancel()
		delete(s.inFlight, formID)
	}
}

func (s *BookingSubmitter) describe(ctx context.Context, outcome types.Outcome) string {
	switch outcome.Kind {
	case types.OutcomeSuccess:
		return BookingConfirmedNotice
	case types.OutcomeRateLimited:
		return fmt.Sprintf(BookingRateLimitedNotice, s.flags.BookingRateLimit(ctx))
	case types.OutcomeBackendError:
		var apiErr types.APIError
		if err := json.Unmarshal(outcome.Body, &apiErr); err == nil && apiErr.Error != "" {
			return apiErr.Error
		}
		return BookingFailedNotice
	}
	switch {
	case errors.Is(outcome.Err, context.DeadlineExceeded):
		return BookingTimeoutNotice
	case errors.Is(outcome.Err, context.Canceled):
		return BookingAbortedNotice
	}
	return BookingNetworkNotice
}
