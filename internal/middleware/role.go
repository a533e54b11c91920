package middleware

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/restaurant-service/internal/repository"
    "github.com/iliyamo/restaurant-service/internal/service"
    "github.com/iliyamo/restaurant-service/internal/session"
    "github.com/iliyamo/restaurant-service/internal/store"
)

// LoadSession resolves the "user_id" set by JWTAuth to the stored account
// and attaches it as the request session. Accounts deleted after the token
// was issued are rejected with 401. The stored role wins over the token
// claim so role and accesos changes apply without a new login.
func LoadSession(users *repository.UsuarioRepo) echo.MiddlewareFunc {
    if users == nil {
        panic("nil repository passed to LoadSession")
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            id, _ := c.Get("user_id").(string)
            if id == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
            }
            u, err := users.GetByID(c.Request().Context(), id)
            if errors.Is(err, store.ErrNotFound) {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user not found"})
            }
            if err != nil {
                c.Logger().Errorf("load session %s: %v", id, err)
                return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
            }
            c.Set("role", string(u.Role))
            session.Set(c, session.Context{User: u})
            return next(c)
        }
    }
}

// RequireCapability aborts with 403 unless the session user holds cap. It
// must run after LoadSession.
func RequireCapability(cap service.Capability) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            sc, ok := session.From(c)
            if !ok || !service.Authorize(sc.User, cap) {
                return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
            }
            return next(c)
        }
    }
}
