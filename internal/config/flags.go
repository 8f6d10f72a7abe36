// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"

	flagd "github.com/open-feature/go-sdk-contrib/providers/flagd/pkg"
	"github.com/open-feature/go-sdk/openfeature"
)

const (
	flagBookingRateLimit      = "bookingRateLimit"
	flagResumeDownloadEnabled = "resumeDownloadEnabled"
)

// Flags reads the runtime tunables, falling back to the static configuration
type Flags struct {
	client           openfeature.IClient
	defaultRateLimit int
}

// NewFlags wires the flagd provider when FLAGD_HOST is set.
// Without it the OpenFeature noop provider answers every flag with its default.
func NewFlags(cfg Config) (*Flags, error) {
	if cfg.FlagdHost != "" {
		provider, err := flagd.NewProvider(
			flagd.WithHost(cfg.FlagdHost),
			flagd.WithPort(uint16(cfg.FlagdPort)),
		)
		if err != nil {
			return nil, err
		}
		if err := openfeature.SetProviderAndWait(provider); err != nil {
			return nil, err
		}
		slog.Info("Reading flags from flagd at " + cfg.FlagdHost)
	}
	return &Flags{
		client:           openfeature.NewClient(cfg.AppName),
		defaultRateLimit: cfg.RateLimitPerMinute,
	}, nil
}

// StaticFlags never asks a provider, useful when nothing is deployed next to us
func StaticFlags(rateLimit int) *Flags {
	return &Flags{defaultRateLimit: rateLimit}
}

// BookingRateLimit is the request rate announced to visitors
func (f *Flags) BookingRateLimit(ctx context.Context) int {
	if f.client == nil {
		return f.defaultRateLimit
	}
	v, err := f.client.IntValue(ctx, flagBookingRateLimit, int64(f.defaultRateLimit), openfeature.EvaluationContext{})
	if err != nil || v < 1 {
		return f.defaultRateLimit
	}
	return int(v)
}

// ResumeDownloadEnabled hides the download action when switched off
func (f *Flags) ResumeDownloadEnabled(ctx context.Context) bool {
	if f.client == nil {
		return true
	}
	v, err := f.client.BooleanValue(ctx, flagResumeDownloadEnabled, true, openfeature.EvaluationContext{})
	if err != nil {
		return true
	}
	return v
}
