// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

// Package templates holds the HTML components of the site.
// The components live in the .templ files, run `go tool templ generate` after changing them.
package templates

import (
	"github.com/schildwaechter/genteelfolio/internal/types"
)

// Navigation targets
const (
	NavAbout = "/"
	NavBook  = "/book"
)

// ResumeAction is where the download button points
const ResumeAction = "/resume"

// Notice severities
const (
	NoticeSuccess = "success"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// Notice is the status banner above the page content
type Notice struct {
	Severity string
	Text     string
}

// AboutView is everything the About page shows
type AboutView struct {
	Owner           string
	Headline        string
	Intro           string
	TechStack       []string
	DownloadEnabled bool
	Notice          *Notice
}

// DefaultTechStack lists what this site runs on
var DefaultTechStack = []string{
	"Go (Fiber)", "PostgreSQL", "RabbitMQ", "OpenTelemetry", "Prometheus", "flagd",
}

// BookingView is the booking form with whatever the visitor typed
type BookingView struct {
	FormID    string
	RateLimit int
	Values    types.BookingRequest
	Notice    *Notice
}
