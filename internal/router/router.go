package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/restaurant-service/internal/handler"
	"github.com/iliyamo/restaurant-service/internal/middleware"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/service"
)

// Guard authenticates back-office requests: JWT first, then the stored
// account is loaded as the request session.
type Guard struct {
	JWTSecret string
	Users     *repository.UsuarioRepo
}

// Staff returns the middleware chain for an endpoint that needs cap.
func (g Guard) Staff(cap service.Capability) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(g.JWTSecret),
		middleware.LoadSession(g.Users),
		middleware.RequireCapability(cap),
	}
}

// Authenticated is the chain for endpoints any signed-in user may call.
func (g Guard) Authenticated() []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{middleware.JWTAuth(g.JWTSecret), middleware.LoadSession(g.Users)}
}

// RegisterRoutes registers the health probe.
func RegisterRoutes(e *echo.Echo, h handler.Health) {
	e.GET("/healthz", h.Check)
}

// RegisterAuth registers the token lifecycle under /v1/auth and the
// session endpoint /v1/me. Register and login share the rate limiter with
// their legacy aliases /usuarios and /login.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guard, limit echo.MiddlewareFunc) {
	auth := e.Group("/v1/auth")
	auth.POST("/register", a.Register, limit)
	auth.POST("/login", a.Login, limit)
	auth.POST("/refresh", a.Refresh, limit)
	auth.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me, g.Authenticated()...)
}

// RegisterPublic registers the storefront contract: the menu, bookings,
// sign-up and login at the root paths the web client calls.
func RegisterPublic(e *echo.Echo, m *handler.MenuHandler, r *handler.ReservaHandler, a *handler.AuthHandler,
	g Guard, limit, cache echo.MiddlewareFunc) {
	e.GET("/menu", m.List, cache)

	// image uploads ride on these
	writes := append(g.Staff(service.CapPlatos), echomw.BodyLimit("6M"))
	e.POST("/menu", m.Create, writes...)
	e.PUT("/menu/:id", m.Update, writes...)
	e.DELETE("/menu/:id", m.Delete, writes...)

	e.POST("/reservas", r.Create, limit)
	e.GET("/reservas", r.List, g.Staff(service.CapReservas)...)

	e.POST("/usuarios", a.Register, limit)
	e.POST("/login", a.Login, limit)
}
