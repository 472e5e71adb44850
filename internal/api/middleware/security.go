// Package middleware holds echo middleware for the status server.
package middleware

import (
	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets headers for a JSON-only API.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

			// Status changes with every run.
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
