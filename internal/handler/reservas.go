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

type ReservaHandler struct {
	Reservas *repository.ReservaRepo
}

func NewReservaHandler(r *repository.ReservaRepo) *ReservaHandler {
	if r == nil {
		panic("nil repository passed to NewReservaHandler")
	}
	return &ReservaHandler{Reservas: r}
}

type reservaReq struct {
	Nombre    string       `json:"nombre" validate:"required"`
	Fecha     string       `json:"fecha" validate:"required"`
	Hora      string       `json:"hora" validate:"required"`
	Personas  model.Scalar `json:"personas" validate:"required"`
	Correo    string       `json:"correo" validate:"required"`
	CreatedAt model.Scalar `json:"createdAt" validate:"required"`
}

// Create stores a booking. All six fields are mandatory and stored as sent.
func (h *ReservaHandler) Create(c echo.Context) error {
	var req reservaReq
	if err := bindValid(c, &req); err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) && ve.Field != "body" {
			ve.Msg = "Faltan campos obligatorios (nombre, fecha, hora, personas, correo, createdAt)."
		}
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Reservas.Create(ctx, model.Reserva{
		Nombre:    strings.TrimSpace(req.Nombre),
		Fecha:     req.Fecha,
		Hora:      req.Hora,
		Personas:  req.Personas,
		Correo:    strings.TrimSpace(req.Correo),
		CreatedAt: req.CreatedAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"mensaje": "Reserva guardada con éxito", "id": id})
}

// List returns every booking keyed by id.
func (h *ReservaHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	rs, err := h.Reservas.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make(map[string]model.Reserva, len(rs))
	for _, r := range rs {
		out[r.ID] = r
	}
	return c.JSON(http.StatusOK, out)
}
