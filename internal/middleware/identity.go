package middleware

// identity.go resolves who is calling for keys that must differ per caller
// (rate limiting). Anonymous callers share the "anon" bucket per IP.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-service/internal/session"
)

func currentUserID(c echo.Context) string {
    if sc, ok := session.From(c); ok && sc.User.ID != "" {
        return sc.User.ID
    }
    if s, ok := c.Get("user_id").(string); ok && s != "" {
        return s
    }
    return "anon"
}
