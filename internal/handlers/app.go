// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// NewApp builds the public listener.
// X-Forwarded-For is only believed when the direct peer is one of trustedProxies,
// everyone else is known by their socket address.
func NewApp(appName string, trustedProxies []string) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:                 appName,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          trustedProxies,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableIPValidation:      true,
	})
}
