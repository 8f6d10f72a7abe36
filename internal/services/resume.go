// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/schildwaechter/genteelfolio/internal/o11y"
	"github.com/schildwaechter/genteelfolio/internal/types"
)

// Notices shown on the About page
const (
	ResumeReadyNotice       = "Secure download initiated. Link is valid for %d seconds."
	ResumeRateLimitedNotice = "Rate Limit Exceeded. Please try again in one minute. Security enforced."
	ResumeFailedNotice      = "Download failed. Backend error."
	ResumeNetworkNotice     = "Network error. Could not reach the download service, please try again."
)

// presigned links live this long unless the API says otherwise
const defaultLinkLifetime = 60

// ResumeFetcher asks the API for a fresh, short lived resume link
type ResumeFetcher struct {
	courier  *NimbleCourier
	endpoint string
}

func NewResumeFetcher(courier *NimbleCourier, endpoint string) *ResumeFetcher {
	return &ResumeFetcher{courier: courier, endpoint: endpoint}
}

// Fetch issues one GET without body. The link is only usable when the outcome is a success;
// it is meant for a single redirect and never kept.
func (f *ResumeFetcher) Fetch(ctx context.Context) (types.ResumeLink, types.Outcome) {
	outcome := f.courier.Dispatch(ctx, http.MethodGet, f.endpoint, nil)

	var link types.ResumeLink
	switch outcome.Kind {
	case types.OutcomeSuccess:
		if err := json.Unmarshal(outcome.Body, &link); err != nil || !usableLink(link.PresignedURL) {
			o11y.Logger.ErrorContext(ctx, "API answered without a usable presigned_url", slog.Int("status", outcome.Status))
			outcome.Kind = types.OutcomeBackendError
			outcome.Message = ResumeFailedNotice
			link = types.ResumeLink{}
			break
		}
		if link.ValidForSeconds <= 0 {
			link.ValidForSeconds = defaultLinkLifetime
		}
		outcome.Message = fmt.Sprintf(ResumeReadyNotice, link.ValidForSeconds)
		o11y.Logger.InfoContext(ctx, outcome.Message)
	case types.OutcomeRateLimited:
		outcome.Message = ResumeRateLimitedNotice
	case types.OutcomeBackendError:
		outcome.Message = ResumeFailedNotice
	case types.OutcomeNetworkError:
		o11y.Logger.ErrorContext(ctx, "Network error fetching presigned URL", slog.Any("error", outcome.Err))
		outcome.Message = ResumeNetworkNotice
	}

	o11y.RecordOutcome(ctx, o11y.FlowResume, outcome.Kind.String())
	return link, outcome
}

// only absolute http(s) targets are worth a redirect
func usableLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "https" || u.Scheme == "http"
}
