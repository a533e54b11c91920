package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-service/internal/config"
	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/service"
	"github.com/iliyamo/restaurant-service/internal/session"
	"github.com/iliyamo/restaurant-service/internal/utils"
)

// UsuarioHandler manages staff accounts and their accesos. Staff logins
// are derived from nombre, apellido and carnet and shown once on write.
type UsuarioHandler struct {
	Cfg   config.Config
	Users *repository.UsuarioRepo
}

func NewUsuarioHandler(cfg config.Config, u *repository.UsuarioRepo) *UsuarioHandler {
	if u == nil {
		panic("nil repository passed to NewUsuarioHandler")
	}
	return &UsuarioHandler{Cfg: cfg, Users: u}
}

type staffReq struct {
	Nombre   string     `json:"nombre" validate:"required"`
	Apellido string     `json:"apellido" validate:"required"`
	Carnet   string     `json:"carnet" validate:"required"`
	Role     model.Role `json:"role" validate:"required,oneof=cliente admin cajero"`
}
type accesosReq struct {
	Accesos map[string]bool `json:"accesos" validate:"required"`
}

func (r staffReq) trimmed() staffReq {
	r.Nombre, r.Apellido, r.Carnet = strings.TrimSpace(r.Nombre), strings.TrimSpace(r.Apellido), strings.TrimSpace(r.Carnet)
	return r
}

func (h *UsuarioHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	us, err := h.Users.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]model.UsuarioPublico, 0, len(us))
	for _, u := range us {
		out = append(out, u.Public())
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UsuarioHandler) Create(c echo.Context) error {
	var req staffReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	req = req.trimmed()
	email, password := utils.StaffCredentials(req.Nombre, req.Apellido, req.Carnet)
	u := model.Usuario{Nombre: req.Nombre, Apellido: req.Apellido, Carnet: req.Carnet, Email: email, Role: req.Role}

	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Users.Create(ctx, u, password, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, err)
	}
	u.ID = id
	return c.JSON(http.StatusCreated, echo.Map{
		"mensaje":  "Usuario agregado con éxito.",
		"usuario":  u.Public(),
		"email":    email,
		"password": password,
	})
}

// Update rewrites the account data; login and password are derived again.
func (h *UsuarioHandler) Update(c echo.Context) error {
	var req staffReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	req = req.trimmed()
	email, password := utils.StaffCredentials(req.Nombre, req.Apellido, req.Carnet)
	patch := map[string]any{
		"nombre":   req.Nombre,
		"apellido": req.Apellido,
		"carnet":   req.Carnet,
		"email":    email,
		"password": password,
		"role":     string(req.Role),
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.Update(ctx, c.Param("id"), patch, h.Cfg.BcryptCost); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Usuario actualizado con éxito.", "email": email, "password": password})
}

func (h *UsuarioHandler) Delete(c echo.Context) error {
	if !confirmed(c) {
		return needConfirm(c)
	}
	id := c.Param("id")
	if sc, ok := session.From(c); ok && sc.User.ID == id {
		return respondError(c, &service.ValidationError{Field: "id", Msg: "No puede eliminar su propia cuenta."})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Users.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Usuario eliminado correctamente"})
}

// SetAccesos replaces the capability grants of a user. Unknown names are
// dropped and missing ones stored as false.
func (h *UsuarioHandler) SetAccesos(c echo.Context) error {
	var req accesosReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	accesos := service.NormalizeAccesos(req.Accesos)
	ctx, cancel := withTimeout(c)
	defer cancel()
	if _, err := h.Users.GetByID(ctx, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	if err := h.Users.SetAccesos(ctx, c.Param("id"), accesos); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Accesos actualizados para el usuario", "accesos": accesos})
}
