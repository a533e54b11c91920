package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/restaurant-service/internal/config"
	"github.com/iliyamo/restaurant-service/internal/middleware"
	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/service"
)

// MaxImageBytes caps uploaded dish pictures.
const MaxImageBytes = 5 << 20

// MenuHandler serves the public menu and its back-office writes. Every
// successful write purges the cached GET /menu responses.
type MenuHandler struct {
	Platos *repository.PlatoRepo
	Cache  config.CacheConfig
	Redis  *redis.Client // nil disables purging
}

func NewMenuHandler(p *repository.PlatoRepo, cache config.CacheConfig, rdb *redis.Client) *MenuHandler {
	if p == nil {
		panic("nil repository passed to NewMenuHandler")
	}
	return &MenuHandler{Platos: p, Cache: cache, Redis: rdb}
}

// platoReq is accepted as JSON or as multipart form fields next to an
// optional "imagen" file.
type platoReq struct {
	Nombre      string       `json:"nombre" form:"nombre" validate:"required"`
	Precio      model.Scalar `json:"precio" form:"precio" validate:"required"`
	Descripcion string       `json:"descripcion" form:"descripcion"`
	Categoria   string       `json:"categoria" form:"categoria"`
	ImagenURL   string       `json:"imagenUrl" form:"imagenUrl"`
}

// List returns the menu as a map keyed by dish id.
func (h *MenuHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	ps, err := h.Platos.List(ctx)
	if err != nil {
		return respondError(c, err)
	}
	out := make(map[string]model.Plato, len(ps))
	for _, p := range ps {
		out[p.ID] = p
	}
	return c.JSON(http.StatusOK, out)
}

func (h *MenuHandler) Create(c echo.Context) error {
	p, err := h.readPlato(c)
	if err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	id, err := h.Platos.Create(ctx, p)
	if err != nil {
		return respondError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusCreated, echo.Map{"mensaje": "Plato agregado con éxito", "id": id})
}

// Update merges the submitted fields into the dish. Nombre and precio are
// required as on create; an omitted picture keeps the stored one.
func (h *MenuHandler) Update(c echo.Context) error {
	id := c.Param("id")
	p, err := h.readPlato(c)
	if err != nil {
		return respondError(c, err)
	}
	patch := map[string]any{"nombre": p.Nombre, "precio": p.Precio}
	if p.Descripcion != "" {
		patch["descripcion"] = p.Descripcion
	}
	if p.Categoria != "" {
		patch["categoria"] = p.Categoria
	}
	if p.Imagen != "" {
		patch["imagen"] = p.Imagen
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Platos.Update(ctx, id, patch); err != nil {
		return respondError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Plato actualizado con éxito", "id": id})
}

func (h *MenuHandler) Delete(c echo.Context) error {
	if !confirmed(c) {
		return needConfirm(c)
	}
	id := c.Param("id")
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Platos.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	h.purge(c)
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Plato eliminado con éxito", "id": id})
}

func (h *MenuHandler) readPlato(c echo.Context) (model.Plato, error) {
	var req platoReq
	if err := bindValid(c, &req); err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) && ve.Field != "body" {
			ve.Msg = "Faltan campos obligatorios (nombre, precio)."
		}
		return model.Plato{}, err
	}
	if _, ok := req.Precio.Decimal(); !ok {
		return model.Plato{}, &service.ValidationError{Field: "precio", Msg: "El precio debe ser numérico."}
	}
	p := model.Plato{
		Nombre:      strings.TrimSpace(req.Nombre),
		Precio:      req.Precio,
		Descripcion: strings.TrimSpace(req.Descripcion),
		Categoria:   strings.TrimSpace(req.Categoria),
		Imagen:      strings.TrimSpace(req.ImagenURL),
	}
	fh, err := c.FormFile("imagen")
	switch {
	case err == nil:
		img, err := dataURL(fh)
		if err != nil {
			return model.Plato{}, err
		}
		p.Imagen = img
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return model.Plato{}, &service.ValidationError{Field: "imagen", Msg: "No se pudo leer la imagen."}
	}
	return p, nil
}

// dataURL inlines an uploaded picture. Only image/* up to MaxImageBytes is
// accepted; the bytes are stored as sent.
func dataURL(fh *multipart.FileHeader) (string, error) {
	mime := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		return "", &service.ValidationError{Field: "imagen", Msg: "Solo se permiten imágenes."}
	}
	if fh.Size > MaxImageBytes {
		return "", &service.ValidationError{Field: "imagen", Msg: "La imagen supera los 5 MB."}
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return "", err
	}
	if len(raw) > MaxImageBytes {
		return "", &service.ValidationError{Field: "imagen", Msg: "La imagen supera los 5 MB."}
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func (h *MenuHandler) purge(c echo.Context) {
	if err := middleware.PurgeCache(c.Request().Context(), h.Cache, h.Redis); err != nil {
		c.Logger().Warnf("purge menu cache: %v", err)
	}
}
