// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package handlers

import (
	"github.com/schildwaechter/genteelfolio/internal/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
)

// LedgerReady reports ready while the ledger answers
func LedgerReady(l ledger.Ledger) func(c *fiber.Ctx) bool {
	return func(c *fiber.Ctx) bool {
		return l.Ping(c.UserContext()) == nil
	}
}

// RegisterProbes puts /livez and /readyz on the internal app.
// ready may be nil when nothing needs checking.
func RegisterProbes(appInt *fiber.App, ready func(c *fiber.Ctx) bool) {
	if ready == nil {
		ready = func(*fiber.Ctx) bool { return true }
	}
	appInt.Use(healthcheck.New(healthcheck.Config{
		LivenessProbe: func(c *fiber.Ctx) bool {
			return true
		},
		LivenessEndpoint:  "/livez",
		ReadinessProbe:    ready,
		ReadinessEndpoint: "/readyz",
	}))
}
