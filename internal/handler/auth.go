package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-service/internal/config"
	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/service"
	"github.com/iliyamo/restaurant-service/internal/session"
	"github.com/iliyamo/restaurant-service/internal/store"
	"github.com/iliyamo/restaurant-service/internal/utils"
)

// AuthHandler serves sign-up, login and the token lifecycle.
type AuthHandler struct {
	Cfg      config.Config
	Users    *repository.UsuarioRepo
	Sessions session.Store
}

func NewAuthHandler(cfg config.Config, u *repository.UsuarioRepo, s session.Store) *AuthHandler {
	if u == nil || s == nil {
		panic("nil dependency passed to NewAuthHandler")
	}
	return &AuthHandler{Cfg: cfg, Users: u, Sessions: s}
}

// ----- DTOs -----

type registerReq struct {
	Nombre   string `json:"nombre" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID     string     `json:"id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	Nombre string     `json:"nombre"`
}
type authResp struct {
	Mensaje string    `json:"mensaje"`
	Usuario userPart  `json:"usuario"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func userPartOf(u model.Usuario) userPart {
	return userPart{ID: u.ID, Email: u.Email, Role: u.Role, Nombre: u.Nombre}
}

// Register creates a cliente account. An already registered email answers
// 200 with the existing account instead of failing.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u := model.Usuario{Nombre: strings.TrimSpace(req.Nombre), Email: req.Email, Role: model.RoleCliente}
	id, err := h.Users.Create(ctx, u, req.Password, h.Cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		existing, err := h.Users.GetByEmail(ctx, req.Email)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"mensaje": "Usuario ya registrado", "usuario": userPartOf(existing)})
	}
	if err != nil {
		return respondError(c, err)
	}
	u.ID, u.Email = id, repository.NormalizeEmail(u.Email)
	return c.JSON(http.StatusCreated, echo.Map{"mensaje": "Usuario registrado con éxito", "usuario": userPartOf(u)})
}

// Login verifies the password and returns the public user plus a new
// token pair. Unknown email and wrong password are both 400.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Usuario no encontrado."})
	}
	if err != nil {
		return respondError(c, err)
	}
	if !utils.VerifyPassword(u.Password, req.Password) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Contraseña incorrecta."})
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return respondError(c, err)
	}
	resp.Mensaje = "Inicio de sesión exitoso."
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token: the old one is cleared and a new pair
// issued for the stored user.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	ctx, cancel := withTimeout(c)
	defer cancel()

	entry, err := h.Sessions.Take(ctx, hash)
	if errors.Is(err, session.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return respondError(c, err)
	}

	u, err := h.Users.GetByID(ctx, entry.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return respondError(c, err)
	}
	resp.Mensaje = "Sesión renovada."
	return c.JSON(http.StatusOK, resp)
}

// Logout forgets the refresh token. Unknown tokens are not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bindValid(c, &req); err != nil {
		return respondError(c, err)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Sessions.Clear(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Sesión cerrada."})
}

// Me returns the session user with its effective accesos.
func (h *AuthHandler) Me(c echo.Context) error {
	sc, ok := session.From(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	accesos := map[string]bool{}
	for cap, on := range service.Accesos(sc.User) {
		accesos[string(cap)] = on
	}
	pub := sc.User.Public()
	pub.Accesos = accesos
	return c.JSON(http.StatusOK, echo.Map{"usuario": pub})
}

func (h *AuthHandler) issue(c echo.Context, u model.Usuario) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, string(u.Role), h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	entry := session.Entry{UserID: u.ID, Role: string(u.Role), ExpiresAt: refresh.Exp}
	if err := h.Sessions.Set(c.Request().Context(), utils.HashRefreshRaw(refresh.Raw), entry); err != nil {
		return authResp{}, err
	}
	return authResp{
		Usuario: userPartOf(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}
