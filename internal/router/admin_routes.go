package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-service/internal/handler"
	"github.com/iliyamo/restaurant-service/internal/service"
)

// AdminHandlers groups the back-office handlers.
type AdminHandlers struct {
	Mesas      *handler.MesaHandler
	Pedidos    *handler.PedidoHandler
	Inventario *handler.InventarioHandler
	Usuarios   *handler.UsuarioHandler
}

// RegisterAdmin registers /v1/admin. Each area is its own group guarded
// by the capability that unlocks it.
func RegisterAdmin(e *echo.Echo, h AdminHandlers, g Guard) {
	mesas := e.Group("/v1/admin/mesas", g.Staff(service.CapMesas)...)
	mesas.GET("", h.Mesas.List)
	mesas.GET("/stream", h.Mesas.MesasStream)
	mesas.POST("", h.Mesas.Create)
	mesas.PATCH("/:id/estado", h.Mesas.SetEstado)
	mesas.POST("/:id/responder", h.Mesas.Responder)
	mesas.DELETE("/:id", h.Mesas.Delete)

	pedidos := e.Group("/v1/admin/pedidos", g.Staff(service.CapPedidos)...)
	pedidos.GET("", h.Pedidos.List)
	pedidos.GET("/stream", h.Pedidos.PedidosStream)
	pedidos.PATCH("/:id/estado", h.Pedidos.SetEstado)

	caja := e.Group("/v1/admin/cajero", g.Staff(service.CapCajero)...)
	caja.GET("", h.Pedidos.Cashier)
	caja.POST("/:id/pagar", h.Pedidos.Pay)
	caja.POST("/mesas/:mesa/pagar", h.Pedidos.PayTable)

	e.GET("/v1/admin/reportes", h.Pedidos.Reportes, g.Staff(service.CapReportes)...)

	inv := e.Group("/v1/admin/inventario", g.Staff(service.CapInventario)...)
	inv.GET("", h.Inventario.List)
	inv.GET("/stream", h.Inventario.Stream)
	inv.POST("", h.Inventario.Create)
	inv.PATCH("/:id", h.Inventario.UpdateCantidad)
	inv.DELETE("/:id", h.Inventario.Delete)

	users := e.Group("/v1/admin/usuarios", g.Staff(service.CapUsuarios)...)
	users.GET("", h.Usuarios.List)
	users.POST("", h.Usuarios.Create)
	users.PUT("/:id", h.Usuarios.Update)
	users.DELETE("/:id", h.Usuarios.Delete)

	e.PUT("/v1/admin/usuarios/:id/accesos", h.Usuarios.SetAccesos, g.Staff(service.CapRoles)...)
}
