// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/ledger"
	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/types"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const linkName = "resume-link"

// Failure codes stored in the download log
const (
	FailureNoSuchKey     = "NoSuchKey"
	FailureSigning       = "SigningFailed"
	FailureLedgerUnknown = "LedgerUnavailable"
)

var (
	// ErrLinkFailed means no link could be handed out
	ErrLinkFailed = errors.New("could not generate secure download link")
	// ErrLinkRejected covers expired, forged and already used links alike
	ErrLinkRejected = errors.New("download link rejected")
)

type linkClaim struct {
	LogID   uuid.UUID `json:"l"`
	FileKey string    `json:"k"`
}

// Archivist hands out signed, single use links to the resume and honours them
type Archivist struct {
	ledger     ledger.Ledger
	codec      *securecookie.SecureCookie
	publicURL  string
	fileKey    string
	filePath   string
	ttl        time.Duration
	tracerName string
}

// ArchivistOptions configures NewArchivist
type ArchivistOptions struct {
	AppName    string
	PublicURL  string
	FileKey    string
	FilePath   string
	SigningKey []byte
	TTL        time.Duration
}

func NewArchivist(l ledger.Ledger, opts ArchivistOptions) *Archivist {
	codec := securecookie.New(opts.SigningKey, nil)
	codec.MaxAge(int(opts.TTL / time.Second))
	codec.SetSerializer(securecookie.JSONEncoder{})
	return &Archivist{
		ledger:     l,
		codec:      codec,
		publicURL:  opts.PublicURL,
		fileKey:    opts.FileKey,
		filePath:   opts.FilePath,
		ttl:        opts.TTL,
		tracerName: opts.AppName,
	}
}

// IssueLink logs the request as PENDING, signs a link and settles the log entry
func (a *Archivist) IssueLink(ctx context.Context, requesterIP string, userAgent string) (types.ResumeLink, error) {
	ctx, span := otel.Tracer(a.tracerName).Start(ctx, "Archivist")
	defer span.End()

	entry := types.DownloadLog{
		ID:          uuid.New(),
		FileKey:     a.fileKey,
		RequesterIP: requesterIP,
		UserAgent:   userAgent,
		Status:      types.DownloadPending,
		CreatedAt:   time.Now().UTC(),
	}
	span.SetAttributes(attribute.String("download.log_id", entry.ID.String()))

	if err := a.ledger.OpenDownload(ctx, entry); err != nil {
		return types.ResumeLink{}, a.fail(ctx, span, entry.ID, FailureLedgerUnknown, err)
	}

	if _, err := os.Stat(a.filePath); err != nil {
		return types.ResumeLink{}, a.fail(ctx, span, entry.ID, FailureNoSuchKey, err)
	}

	token, err := a.codec.Encode(linkName, linkClaim{LogID: entry.ID, FileKey: a.fileKey})
	if err != nil {
		return types.ResumeLink{}, a.fail(ctx, span, entry.ID, FailureSigning, err)
	}

	if err := a.ledger.SetDownloadStatus(ctx, entry.ID, types.DownloadSuccess); err != nil {
		return types.ResumeLink{}, a.fail(ctx, span, entry.ID, FailureLedgerUnknown, err)
	}
	span.AddEvent("Link signed")

	return types.ResumeLink{
		PresignedURL:    a.publicURL + "/files/resume?token=" + url.QueryEscape(token),
		ValidForSeconds: int(a.ttl / time.Second),
	}, nil
}

// fail settles the log entry as FAILED and reports ErrLinkFailed
func (a *Archivist) fail(ctx context.Context, span trace.Span, id uuid.UUID, code string, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, code)
	o11y.Logger.ErrorContext(ctx, "Could not sign resume link: "+cause.Error(), slog.String("code", code), o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))

	if code != FailureLedgerUnknown {
		if err := a.ledger.SetDownloadStatus(ctx, id, types.DownloadFailedPrefix+code); err != nil {
			o11y.Logger.ErrorContext(ctx, "Could not settle download log", slog.Any("error", err))
		}
	}
	return fmt.Errorf("%w: %s", ErrLinkFailed, code)
}

// Redeem checks a token and marks its log entry REDEEMED. It returns the file to serve.
// While the file is missing the link stays unspent.
func (a *Archivist) Redeem(ctx context.Context, token string) (string, error) {
	ctx, span := otel.Tracer(a.tracerName).Start(ctx, "Archivist")
	defer span.End()

	var claim linkClaim
	if err := a.codec.Decode(linkName, token, &claim); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrLinkRejected.Error())
		o11y.Logger.WarnContext(ctx, "Refused resume link: "+err.Error(), o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))
		return "", ErrLinkRejected
	}
	if claim.FileKey != a.fileKey {
		span.SetStatus(codes.Error, ErrLinkRejected.Error())
		return "", ErrLinkRejected
	}
	// a link is only spent on a file that can be served
	if _, err := os.Stat(a.filePath); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, FailureNoSuchKey)
		o11y.Logger.ErrorContext(ctx, "Resume file is gone, link kept: "+err.Error(), o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))
		return "", fmt.Errorf("%w: %s", ErrLinkFailed, FailureNoSuchKey)
	}
	if err := a.ledger.RedeemDownload(ctx, claim.LogID); err != nil {
		span.SetStatus(codes.Error, ErrLinkRejected.Error())
		if !errors.Is(err, ledger.ErrNotFound) {
			return "", fmt.Errorf("redeem %s: %w", claim.LogID, err)
		}
		o11y.Logger.WarnContext(ctx, "Resume link used twice", o11y.LoggerTraceAttr(ctx, span), o11y.LoggerSpanAttr(ctx, span))
		return "", ErrLinkRejected
	}
	span.AddEvent("Link redeemed")
	return a.filePath, nil
}
