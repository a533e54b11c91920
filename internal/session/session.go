// Package session carries the authenticated user through a request and
// keeps the server-side record of issued refresh tokens.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-service/internal/model"
)

// ErrNotFound is returned by Store.Get for unknown or expired entries.
var ErrNotFound = errors.New("session: not found")

// Context is the identity of the caller, loaded once per request by the
// auth middleware and read by handlers.
type Context struct {
	User model.Usuario
}

const echoKey = "session"

// Set attaches sc to the request.
func Set(c echo.Context, sc Context) { c.Set(echoKey, sc) }

// From returns the session attached by Set.
func From(c echo.Context) (Context, bool) {
	sc, ok := c.Get(echoKey).(Context)
	return sc, ok
}

// Entry is a live refresh session.
type Entry struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps refresh sessions keyed by the hash of the refresh token.
type Store interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	Clear(ctx context.Context, key string) error
	// Take returns the entry and removes it in one step, so a refresh
	// token can be redeemed at most once.
	Take(ctx context.Context, key string) (Entry, error)
}
