package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/service"
)

// MesaHandler serves table management for staff and the table session for
// customers holding a scanned code.
type MesaHandler struct {
	Mesas   *service.MesaService
	QR      *service.QRService
	Waiter  *service.WaiterService
	Origins Origins
}

func NewMesaHandler(m *service.MesaService, qr *service.QRService, w *service.WaiterService) *MesaHandler {
	if m == nil || qr == nil || w == nil {
		panic("nil service passed to NewMesaHandler")
	}
	return &MesaHandler{Mesas: m, QR: qr, Waiter: w}
}

type createMesaReq struct {
	Numero    model.Scalar `json:"numero" validate:"required"`
	Capacidad model.Scalar `json:"capacidad" validate:"required"`
}
type estadoMesaReq struct {
	Estado string `json:"estado"` // empty toggles
}
type respuestaReq struct {
	Respuesta string `json:"respuesta" validate:"required"`
}
type validarReq struct {
	Codigo string `json:"codigo" validate:"required"`
}
type extenderReq struct {
	Minutos int `json:"minutos" validate:"required,gt=0"`
}

// mesaCliente is what a seated customer may see: no QR code.
type mesaCliente struct {
	ID               string           `json:"id"`
	Numero           string           `json:"numero"`
	Estado           model.EstadoMesa `json:"estado"`
	Llamando         model.Llamando   `json:"llamando"`
	Expiracion       int64            `json:"expiracion"`
	MinutosRestantes int              `json:"minutosRestantes"`
}

func (h *MesaHandler) clienteView(m model.Mesa) mesaCliente {
	return mesaCliente{ID: m.ID, Numero: m.Numero, Estado: m.Estado, Llamando: m.Llamando,
		Expiracion: m.Expiracion, MinutosRestantes: h.QR.Remaining(m)}
}

// ----- back office -----

func (h *MesaHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	ms, err := h.Mesas.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ms)
}

func (h *MesaHandler) Create(c echo.Context) error {
	var req createMesaReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	capacidad, _ := req.Capacidad.Int()
	ctx, cancel := withTimeout(c)
	defer cancel()
	m, err := h.Mesas.Create(ctx, req.Numero.String(), capacidad)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"mensaje": "Mesa agregada con éxito", "mesa": m})
}

// SetEstado sets libre or ocupada; an empty estado flips the current one.
func (h *MesaHandler) SetEstado(c echo.Context) error {
	var req estadoMesaReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	var (
		m   model.Mesa
		err error
	)
	if estado := strings.TrimSpace(req.Estado); estado == "" {
		m, err = h.Mesas.Toggle(ctx, c.Param("id"))
	} else {
		m, err = h.Mesas.SetOccupancy(ctx, c.Param("id"), model.EstadoMesa(estado))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Estado actualizado con éxito", "mesa": m})
}

func (h *MesaHandler) Responder(c echo.Context) error {
	var req respuestaReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Waiter.Respond(ctx, c.Param("id"), strings.TrimSpace(req.Respuesta)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "La respuesta ha sido actualizada a: " + req.Respuesta})
}

func (h *MesaHandler) Delete(c echo.Context) error {
	if !confirmed(c) {
		return needConfirm(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Mesas.Delete(ctx, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Mesa eliminada con éxito"})
}

// ----- customer session -----

// Validar starts a dine-in session from a scanned code.
func (h *MesaHandler) Validar(c echo.Context) error {
	var req validarReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, service.ErrInvalidCode)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.QR.Validate(ctx, req.Codigo)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Mesa asignada", "mesaId": id})
}

func (h *MesaHandler) Get(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	m, err := h.Mesas.Get(ctx, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, h.clienteView(m))
}

func (h *MesaHandler) Llamar(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Waiter.Call(ctx, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Mesero llamado"})
}

func (h *MesaHandler) Extender(c echo.Context) error {
	var req extenderReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	exp, err := h.QR.Extend(ctx, c.Param("id"), req.Minutos)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Tiempo extendido", "expiracion": exp})
}
