package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/service"
)

// PedidoHandler exposes the order ledger: customer submission, the staff
// order board, the cash desk and the sales report.
type PedidoHandler struct {
	Pedidos *service.PedidoService
	Origins Origins
}

func NewPedidoHandler(p *service.PedidoService) *PedidoHandler {
	if p == nil {
		panic("nil service passed to NewPedidoHandler")
	}
	return &PedidoHandler{Pedidos: p}
}

type submitReq struct {
	Items     []model.Item     `json:"items"`
	Tipo      model.TipoPedido `json:"tipo"`
	Mesa      string           `json:"mesa"`
	Direccion string           `json:"direccion"`
}
type estadoPedidoReq struct {
	Estado model.EstadoPedido `json:"estado" validate:"required"`
}

// Submit places a cart. Dine-in carts carry the table id returned by
// /v1/mesas/validar; delivery carts carry an address.
func (h *PedidoHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Pedidos.Submit(ctx, service.SubmitInput{
		Items: req.Items, Tipo: req.Tipo, Mesa: req.Mesa, Direccion: req.Direccion,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"mensaje": "Pedido enviado con éxito", "pedido": p, "total": service.OrderTotal(p)})
}

// TableOrders returns the pending orders of a table and its running bill.
func (h *PedidoHandler) TableOrders(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	ps, total, err := h.Pedidos.TableBill(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"pedidos": ps, "total": total})
}

func filterFrom(c echo.Context) (service.Filter, error) {
	f := service.Filter{
		Estado: model.EstadoPedido(c.QueryParam("estado")),
		Mesa:   c.QueryParam("mesa"),
		Dia:    c.QueryParam("fecha"),
	}
	return f, service.ValidateFilter(f)
}

// List is the staff order board, filtered by ?estado=&mesa=&fecha=.
func (h *PedidoHandler) List(c echo.Context) error {
	f, err := filterFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	ps, err := h.Pedidos.List(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ps)
}

// SetEstado advances an order. Only moves out of pendiente are accepted.
func (h *PedidoHandler) SetEstado(c echo.Context) error {
	var req estadoPedidoReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Pedidos.Advance(ctx, c.Param("id"), req.Estado)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Estado del pedido actualizado", "pedido": p})
}

func (h *PedidoHandler) Cashier(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	v, err := h.Pedidos.Cashier(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Pay marks one pending order as paid.
func (h *PedidoHandler) Pay(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	p, err := h.Pedidos.Advance(ctx, c.Param("id"), model.PedidoPagado)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Pedido pagado", "pedido": p, "total": service.OrderTotal(p)})
}

// PayTable settles the whole bill of a table.
func (h *PedidoHandler) PayTable(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	paid, err := h.Pedidos.PayTable(ctx, c.Param("mesa"))
	if err != nil {
		return respondError(c, err)
	}
	total := decimal.Zero
	for _, p := range paid {
		total = total.Add(service.OrderTotal(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Cuenta de la mesa pagada", "pagados": len(paid), "total": total})
}

func (h *PedidoHandler) Reportes(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	r, err := h.Pedidos.Report(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}
