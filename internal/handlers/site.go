// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package handlers

import (
	"context"
	"errors"
	"net/http"
	"text/template"

	"github.com/schildwaechter/genteelfolio/internal/config"
	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/services"
	"github.com/schildwaechter/genteelfolio/internal/templates"
	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/a-h/templ"
	"github.com/enescakir/emoji"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	slogfiber "github.com/samber/slog-fiber"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var outcomeText = template.Must(template.New("outcomeText").Parse("{{ .Emoji }} {{ .Message }}\n"))

// Site serves the portfolio pages
type Site struct {
	appName  string
	owner    string
	flags    *config.Flags
	resumes  *services.ResumeFetcher
	bookings *services.BookingSubmitter
}

func NewSite(appName string, owner string, flags *config.Flags, resumes *services.ResumeFetcher, bookings *services.BookingSubmitter) *Site {
	return &Site{
		appName:  appName,
		owner:    owner,
		flags:    flags,
		resumes:  resumes,
		bookings: bookings,
	}
}

// bookingForm arrives as a urlencoded form from the page or as JSON from scripts
type bookingForm struct {
	FormID string `json:"form_id" form:"form_id"`
	Name   string `json:"name" form:"name"`
	Email  string `json:"email" form:"email"`
	Date   string `json:"date" form:"date"`
	Time   string `json:"time" form:"time"`
}

// BookingAnswer is the JSON rendition of a submission
type BookingAnswer struct {
	FormID  string `json:"form_id"`
	State   string `json:"state"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func (s *Site) RegisterRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return s.handleAbout(c)
	})

	app.Get("/resume", func(c *fiber.Ctx) error {
		return s.handleResume(c)
	})

	app.Get("/book", func(c *fiber.Ctx) error {
		return s.handleBookingForm(c)
	})

	app.Post("/book", func(c *fiber.Ctx) error {
		return s.handleBookingSubmit(c)
	})

	app.Post("/book/cancel", func(c *fiber.Ctx) error {
		return s.handleBookingCancel(c)
	})
}

func (s *Site) aboutView(ctx context.Context, notice *templates.Notice) templates.AboutView {
	return templates.AboutView{
		Owner:           s.owner,
		Headline:        "DevOps | Backend Architecture | Cloud-Native Services",
		Intro:           "I build secure, observable and cost-efficient backend systems. This site runs on the stack it advertises.",
		TechStack:       templates.DefaultTechStack,
		DownloadEnabled: s.flags.ResumeDownloadEnabled(ctx),
		Notice:          notice,
	}
}

// visitor carries the caller's address on to the API
func visitor(ctx context.Context, c *fiber.Ctx) context.Context {
	return services.WithVisitor(ctx, services.Visitor{IP: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)})
}

func (s *Site) render(c *fiber.Ctx, status int, title string, active string, body templ.Component) error {
	c.Status(status)
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return templates.Layout(s.appName, title, active, body).Render(c.Context(), c.Response().BodyWriter())
}

func (s *Site) handleAbout(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(s.appName).Start(c.UserContext(), "AboutEndpoint")
	span.SetAttributes(attribute.String("RequestID", slogfiber.GetRequestIDFromContext(c.Context())))
	defer span.End()

	return s.render(c, http.StatusOK, "About", templates.NavAbout, templates.AboutPage(s.aboutView(ctx, nil)))
}

func (s *Site) handleResume(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(s.appName).Start(c.UserContext(), "ResumeEndpoint")
	span.SetAttributes(attribute.String("RequestID", slogfiber.GetRequestIDFromContext(c.Context())))
	defer span.End()

	if !s.flags.ResumeDownloadEnabled(ctx) {
		return fiber.NewError(fiber.StatusNotFound, "Resume download is switched off")
	}

	link, outcome := s.resumes.Fetch(visitor(ctx, c))
	if outcome.OK() {
		// the link is single use, nobody may keep it
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Redirect(link.PresignedURL, http.StatusSeeOther)
	}

	notice := &templates.Notice{Severity: severityFor(outcome.Kind), Text: outcome.Message}
	return s.render(c, statusFor(outcome.Kind), "About", templates.NavAbout, templates.AboutPage(s.aboutView(ctx, notice)))
}

func (s *Site) handleBookingForm(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(s.appName).Start(c.UserContext(), "BookingFormEndpoint")
	span.SetAttributes(attribute.String("RequestID", slogfiber.GetRequestIDFromContext(c.Context())))
	defer span.End()

	view := templates.BookingView{
		FormID:    uuid.NewString(),
		RateLimit: s.flags.BookingRateLimit(ctx),
	}
	return s.render(c, http.StatusOK, "Book a Meeting", templates.NavBook, templates.BookingPage(view))
}

func (s *Site) handleBookingSubmit(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(s.appName).Start(c.UserContext(), "BookingSubmitEndpoint")
	span.SetAttributes(attribute.String("RequestID", slogfiber.GetRequestIDFromContext(c.Context())))
	defer span.End()

	var form bookingForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Could not read the booking form")
	}
	req := types.BookingRequest{Name: form.Name, Email: form.Email, Date: form.Date, Time: form.Time}
	span.SetAttributes(attribute.String("booking.form_id", form.FormID))

	outcome, err := s.bookings.Submit(visitor(ctx, c), form.FormID, req)
	switch {
	case errors.Is(err, types.ErrInvalidBooking):
		return s.answerBooking(ctx, c, http.StatusBadRequest, form, BookingAnswer{
			FormID: form.FormID, State: services.StateIdle.String(), Message: err.Error(),
		}, templates.NoticeWarning)
	case errors.Is(err, services.ErrSubmissionInFlight):
		return s.answerBooking(ctx, c, http.StatusConflict, form, BookingAnswer{
			FormID: form.FormID, State: services.StateSubmitting.String(), Message: "Processing... this booking is already on its way.",
		}, templates.NoticeWarning)
	case err != nil:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	if outcome.OK() {
		// a stored booking starts a fresh form
		form = bookingForm{FormID: uuid.NewString()}
	}
	o11y.Logger.DebugContext(ctx, "Booking outcome: "+outcome.Kind.String())
	return s.answerBooking(ctx, c, statusFor(outcome.Kind), form, BookingAnswer{
		FormID:  form.FormID,
		State:   s.bookings.State(form.FormID).String(),
		Kind:    outcome.Kind.String(),
		Message: outcome.Message,
	}, severityFor(outcome.Kind))
}

// answerBooking responds with the appropriate mimetype
func (s *Site) answerBooking(ctx context.Context, c *fiber.Ctx, status int, form bookingForm, answer BookingAnswer, severity string) error {
	offer := c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON, fiber.MIMETextPlain)
	o11y.Logger.DebugContext(ctx, "Offer: "+offer)
	switch offer {
	case fiber.MIMEApplicationJSON:
		return c.Status(status).JSON(answer)
	case fiber.MIMETextPlain:
		c.Status(status)
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return outcomeText.Execute(c.Response().BodyWriter(), struct {
			Emoji   string
			Message string
		}{Emoji: emoji.Parse(emojiFor(severity)), Message: answer.Message})
	}
	if form.FormID == "" {
		form.FormID = uuid.NewString()
	}
	view := templates.BookingView{
		FormID:    form.FormID,
		RateLimit: s.flags.BookingRateLimit(ctx),
		Values:    types.BookingRequest{Name: form.Name, Email: form.Email, Date: form.Date, Time: form.Time},
		Notice:    &templates.Notice{Severity: severity, Text: answer.Message},
	}
	return s.render(c, status, "Book a Meeting", templates.NavBook, templates.BookingPage(view))
}

func (s *Site) handleBookingCancel(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(s.appName).Start(c.UserContext(), "BookingCancelEndpoint")
	span.SetAttributes(attribute.String("RequestID", slogfiber.GetRequestIDFromContext(c.Context())))
	defer span.End()

	var form bookingForm
	if err := c.BodyParser(&form); err != nil || form.FormID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "form_id is required")
	}
	if !s.bookings.Abort(form.FormID) {
		return fiber.NewError(fiber.StatusNotFound, "Nothing in flight for this form")
	}
	o11y.Logger.InfoContext(ctx, "Booking submission aborted", o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"form_id": form.FormID, "aborted": true})
}

// statusFor tells the visitor's browser how the upstream call went
func statusFor(kind types.OutcomeKind) int {
	switch kind {
	case types.OutcomeSuccess:
		return http.StatusOK
	case types.OutcomeRateLimited:
		return http.StatusTooManyRequests
	case types.OutcomeBackendError:
		return http.StatusBadGateway
	}
	return http.StatusServiceUnavailable
}

func severityFor(kind types.OutcomeKind) string {
	switch kind {
	case types.OutcomeSuccess:
		return templates.NoticeSuccess
	case types.OutcomeRateLimited:
		return templates.NoticeWarning
	}
	return templates.NoticeError
}

func emojiFor(severity string) string {
	switch severity {
	case templates.NoticeSuccess:
		return ":white_check_mark:"
	case templates.NoticeWarning:
		return ":hourglass:"
	}
	return ":x:"
}
