// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/ledger"
	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/services"
	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	slogfiber "github.com/samber/slog-fiber"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Answers of the API
const (
	LinkFailedMessage   = "Could not generate secure download link."
	LinkRejectedMessage = "This download link has expired or was already used."
	RateLimitedMessage  = "Rate limit exceeded. Try again later."
	SlotTakenMessage    = "Slot taken"
	BookingStoreMessage = "Booking could not be stored."
	BookingOKMessage    = "Booking received. A confirmation email is on its way."
	BadBodyMessage      = "Request body must be JSON with name, email, date and time."
)

// Archive serves the backend API
type Archive struct {
	appName   string
	fileName  string
	rate      int
	archivist *services.Archivist
	clerk     *services.DiligentClerk
}

func NewArchive(appName string, fileName string, ratePerMinute int, archivist *services.Archivist, clerk *services.DiligentClerk) *Archive {
	return &Archive{
		appName:   appName,
		fileName:  fileName,
		rate:      ratePerMinute,
		archivist: archivist,
		clerk:     clerk,
	}
}

// BookingAccepted is the answer to a stored booking
type BookingAccepted struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

func (a *Archive) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        a.rate,
		Expiration: time.Minute,
		// c.IP only names the visitor when a trusted proxy forwarded them
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			o11y.RecordOutcome(c.UserContext(), o11y.FlowArchive, types.OutcomeRateLimited.String())
			return c.Status(http.StatusTooManyRequests).JSON(types.APIError{Error: RateLimitedMessage})
		},
	}))

	api.Get("/resume", func(c *fiber.Ctx) error {
		return a.handleResumeLink(c)
	})

	api.Post("/book", func(c *fiber.Ctx) error {
		return a.handleBook(c)
	})

	app.Get("/files/resume", func(c *fiber.Ctx) error {
		return a.handleRedeem(c)
	})
}

func (a *Archive) handleResumeLink(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(a.appName).Start(c.UserContext(), "ResumeLinkEndpoint")
	span.SetAttributes(attribute.String("RequestID", slogfiber.GetRequestIDFromContext(c.Context())))
	defer span.End()

	link, err := a.archivist.IssueLink(ctx, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		o11y.RecordOutcome(ctx, o11y.FlowArchive, types.OutcomeBackendError.String())
		return c.Status(http.StatusInternalServerError).JSON(types.APIError{Error: LinkFailedMessage})
	}
	o11y.RecordOutcome(ctx, o11y.FlowArchive, types.OutcomeSuccess.String())
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(http.StatusOK).JSON(link)
}

func (a *Archive) handleRedeem(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(a.appName).Start(c.UserContext(), "ResumeFileEndpoint")
	span.SetAttributes(attribute.String("RequestID", slogfiber.GetRequestIDFromContext(c.Context())))
	defer span.End()

	path, err := a.archivist.Redeem(ctx, c.Query("token"))
	if errors.Is(err, services.ErrLinkRejected) {
		return c.Status(http.StatusForbidden).JSON(types.APIError{Error: LinkRejectedMessage})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Download(path, a.fileName)
}

func (a *Archive) handleBook(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(a.appName).Start(c.UserContext(), "BookEndpoint")
	span.SetAttributes(attribute.String("RequestID", slogfiber.GetRequestIDFromContext(c.Context())))
	defer span.End()

	var req types.BookingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(types.APIError{Error: BadBodyMessage})
	}

	booking, err := a.clerk.Register(ctx, req)
	switch {
	case errors.Is(err, types.ErrInvalidBooking):
		return c.Status(http.StatusBadRequest).JSON(types.APIError{Error: err.Error()})
	case errors.Is(err, ledger.ErrSlotTaken):
		return c.Status(http.StatusConflict).JSON(types.APIError{Error: SlotTakenMessage})
	case err != nil:
		o11y.RecordOutcome(ctx, o11y.FlowArchive, types.OutcomeBackendError.String())
		return c.Status(http.StatusInternalServerError).JSON(types.APIError{Error: BookingStoreMessage})
	}

	o11y.RecordOutcome(ctx, o11y.FlowArchive, types.OutcomeSuccess.String())
	return c.Status(http.StatusCreated).JSON(BookingAccepted{Message: BookingOKMessage, ID: booking.ID.String()})
}
