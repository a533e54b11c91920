package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-service/internal/handler"
)

// RegisterCustomer registers the table session endpoints used by diners.
// They carry no login: the table id handed out by /v1/mesas/validar is the
// session, and every route is rate limited.
func RegisterCustomer(e *echo.Echo, m *handler.MesaHandler, p *handler.PedidoHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", limit)

	g.POST("/mesas/validar", m.Validar)
	g.GET("/mesas/:id", m.Get)
	g.GET("/mesas/:id/stream", m.MesaStream)
	g.POST("/mesas/:id/llamar", m.Llamar)
	g.POST("/mesas/:id/extender", m.Extender)
	g.GET("/mesas/:id/pedidos", p.TableOrders)

	// dine-in and delivery carts
	g.POST("/pedidos", p.Submit)
}
