package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/service"
)

type InventarioHandler struct {
	Items   *repository.InventarioRepo
	Origins Origins
}

func NewInventarioHandler(r *repository.InventarioRepo) *InventarioHandler {
	if r == nil {
		panic("nil repository passed to NewInventarioHandler")
	}
	return &InventarioHandler{Items: r}
}

type itemReq struct {
	Nombre      string `json:"nombre" validate:"required"`
	Descripcion string `json:"descripcion" validate:"required"`
	Cantidad    *int   `json:"cantidad" validate:"required,gte=0"`
}
type cantidadReq struct {
	Cantidad *int `json:"cantidad" validate:"required,gte=0"`
}

func (h *InventarioHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	items, err := h.Items.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *InventarioHandler) Create(c echo.Context) error {
	var req itemReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, inventarioMsg(err))
	}
	it := model.InventarioItem{
		Nombre:      strings.TrimSpace(req.Nombre),
		Descripcion: strings.TrimSpace(req.Descripcion),
		Cantidad:    *req.Cantidad,
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Items.Create(ctx, it)
	if err != nil {
		return respondError(c, err)
	}
	it.ID = id
	return c.JSON(http.StatusCreated, echo.Map{"mensaje": "Ítem agregado con éxito", "item": it})
}

// UpdateCantidad sets the stock count of an item.
func (h *InventarioHandler) UpdateCantidad(c echo.Context) error {
	var req cantidadReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, inventarioMsg(err))
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Items.Update(ctx, c.Param("id"), map[string]any{"cantidad": *req.Cantidad}); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Cantidad actualizada con éxito"})
}

func (h *InventarioHandler) Delete(c echo.Context) error {
	if !confirmed(c) {
		return needConfirm(c)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Items.Delete(ctx, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Ítem eliminado con éxito"})
}

func inventarioMsg(err error) error {
	var ve *service.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	switch ve.Field {
	case "nombre", "descripcion":
		ve.Msg = "El nombre y la descripción son obligatorios."
	case "cantidad":
		ve.Msg = "La cantidad debe ser un número positivo."
	}
	return ve
}
