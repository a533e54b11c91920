package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/restaurant-service/internal/config"
	"github.com/iliyamo/restaurant-service/internal/handler"
	"github.com/iliyamo/restaurant-service/internal/middleware"
	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/queue"
	"github.com/iliyamo/restaurant-service/internal/repository"
	"github.com/iliyamo/restaurant-service/internal/service"
	"github.com/iliyamo/restaurant-service/internal/session"
	"github.com/iliyamo/restaurant-service/internal/store"
	"github.com/iliyamo/restaurant-service/internal/utils"
)

const secret = "test-secret"

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, queue.PedidoEvent) error { return nil }

type app struct {
	e     *echo.Echo
	users *repository.UsuarioRepo
	qr    *service.QRService
	cfg   config.Config
}

func newApp(t *testing.T) *app {
	t.Helper()
	st := store.NewMemory()
	cfg := config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost, QRTTL: time.Hour}

	users := repository.NewUsuarioRepo(st)
	mesaRepo := repository.NewMesaRepo(st)
	mesas := service.NewMesaService(mesaRepo, cfg.QRTTL)
	qr := service.NewQRService(mesaRepo, cfg.QRTTL)
	waiter := service.NewWaiterService(mesaRepo)
	pedidos := service.NewPedidoService(repository.NewPedidoRepo(st), mesaRepo, nopPublisher{}, time.UTC)

	e := echo.New()
	e.Validator = handler.NewValidator()
	limit := middleware.NewTokenBucket(config.RateLimitConfig{}, nil)
	cacheCfg := config.CacheConfig{}
	cache := middleware.NewRedisCache(cacheCfg, nil)
	guard := Guard{JWTSecret: secret, Users: users}

	auth := handler.NewAuthHandler(cfg, users, session.NewMemory())
	mesaH := handler.NewMesaHandler(mesas, qr, waiter)
	pedidoH := handler.NewPedidoHandler(pedidos)

	RegisterRoutes(e, handler.Health{Store: st})
	RegisterAuth(e, auth, guard, limit)
	RegisterPublic(e, handler.NewMenuHandler(repository.NewPlatoRepo(st), cacheCfg, nil),
		handler.NewReservaHandler(repository.NewReservaRepo(st)), auth, guard, limit, cache)
	RegisterCustomer(e, mesaH, pedidoH, limit)
	RegisterAdmin(e, AdminHandlers{
		Mesas:      mesaH,
		Pedidos:    pedidoH,
		Inventario: handler.NewInventarioHandler(repository.NewInventarioRepo(st)),
		Usuarios:   handler.NewUsuarioHandler(cfg, users),
	}, guard)
	return &app{e: e, users: users, qr: qr, cfg: cfg}
}

// token creates a stored account with role and returns a bearer token.
func (a *app) token(t *testing.T, role model.Role) string {
	t.Helper()
	email := fmt.Sprintf("%s-%d@gusto.com", role, time.Now().UnixNano())
	id, err := a.users.Create(context.Background(), model.Usuario{Nombre: string(role), Email: email, Role: role}, "secreto", bcrypt.MinCost)
	require.NoError(t, err)
	tok, err := utils.NewAccessToken(secret, id, string(role), 15)
	require.NoError(t, err)
	return tok.Token
}

func (a *app) do(t *testing.T, method, path string, body any, tok string) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	out := map[string]any{}
	if rec.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestHealthz(t *testing.T) {
	a := newApp(t)
	code, body := a.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body["status"])
}

func TestUsuariosAndLogin(t *testing.T) {
	a := newApp(t)
	reg := map[string]string{"nombre": "Ana", "email": "Ana@Mail.com", "password": "secreto"}

	code, body := a.do(t, http.MethodPost, "/usuarios", reg, "")
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, "cliente", body["usuario"].(map[string]any)["role"])

	code, _ = a.do(t, http.MethodPost, "/usuarios", reg, "")
	require.Equal(t, http.StatusOK, code)

	code, body = a.do(t, http.MethodPost, "/login", map[string]string{"email": "ana@mail.com", "password": "otra"}, "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Contraseña incorrecta.", body["error"])

	code, body = a.do(t, http.MethodPost, "/login", map[string]string{"email": "nadie@mail.com", "password": "x"}, "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, "Usuario no encontrado.", body["error"])

	code, body = a.do(t, http.MethodPost, "/login", map[string]string{"email": "ana@mail.com", "password": "secreto"}, "")
	require.Equal(t, http.StatusOK, code)
	access := body["access"].(map[string]any)["token"].(string)
	refresh := body["refresh"].(map[string]any)["token"].(string)

	code, body = a.do(t, http.MethodGet, "/v1/me", nil, access)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ana@mail.com", body["usuario"].(map[string]any)["email"])

	code, _ = a.do(t, http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusOK, code)
	// rotated: the old refresh token is gone
	code, _ = a.do(t, http.MethodPost, "/v1/auth/refresh", map[string]string{"refresh_token": refresh}, "")
	require.Equal(t, http.StatusUnauthorized, code)
}

func TestReservas(t *testing.T) {
	a := newApp(t)
	full := map[string]any{"nombre": "Luis", "fecha": "2024-05-20", "hora": "20:00", "personas": 4, "correo": "l@mail.com", "createdAt": 1715342400000}

	partial := map[string]any{"nombre": "Luis", "fecha": "2024-05-20"}
	code, body := a.do(t, http.MethodPost, "/reservas", partial, "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Contains(t, body["error"], "Faltan campos obligatorios")

	code, _ = a.do(t, http.MethodPost, "/reservas", full, "")
	require.Equal(t, http.StatusCreated, code)

	code, _ = a.do(t, http.MethodGet, "/reservas", nil, "")
	require.Equal(t, http.StatusUnauthorized, code)
	code, _ = a.do(t, http.MethodGet, "/reservas", nil, a.token(t, model.RoleCliente))
	require.Equal(t, http.StatusForbidden, code)

	code, body = a.do(t, http.MethodGet, "/reservas", nil, a.token(t, model.RoleAdmin))
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body, 1)
	for _, r := range body {
		require.Equal(t, float64(4), r.(map[string]any)["personas"])
	}
}

func TestMenuWritesNeedPlatos(t *testing.T) {
	a := newApp(t)
	plato := map[string]any{"nombre": "Sopa", "precio": "20", "categoria": "entradas"}

	code, _ := a.do(t, http.MethodPost, "/menu", plato, a.token(t, model.RoleCajero))
	require.Equal(t, http.StatusForbidden, code)

	admin := a.token(t, model.RoleAdmin)
	code, body := a.do(t, http.MethodPost, "/menu", plato, admin)
	require.Equal(t, http.StatusCreated, code)
	id := body["id"].(string)

	code, body = a.do(t, http.MethodGet, "/menu", nil, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Sopa", body[id].(map[string]any)["nombre"])

	code, _ = a.do(t, http.MethodDelete, "/menu/"+id, nil, admin)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = a.do(t, http.MethodDelete, "/menu/"+id+"?confirm=true", nil, admin)
	require.Equal(t, http.StatusOK, code)
}

func TestTableSessionFlow(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, model.RoleAdmin)
	cajero := a.token(t, model.RoleCajero)

	code, _ := a.do(t, http.MethodPost, "/v1/admin/mesas", map[string]any{"numero": "5", "capacidad": 4}, cajero)
	require.Equal(t, http.StatusForbidden, code)

	code, body := a.do(t, http.MethodPost, "/v1/admin/mesas", map[string]any{"numero": "5", "capacidad": 4}, admin)
	require.Equal(t, http.StatusCreated, code)
	mesa := body["mesa"].(map[string]any)
	id, qr := mesa["id"].(string), mesa["qr"].(string)

	code, _ = a.do(t, http.MethodPost, "/v1/mesas/validar", map[string]string{"codigo": "nope"}, "")
	require.Equal(t, http.StatusBadRequest, code)

	code, body = a.do(t, http.MethodPost, "/v1/mesas/validar", map[string]string{"codigo": qr}, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, id, body["mesaId"])

	code, _ = a.do(t, http.MethodPost, "/v1/mesas/validar", map[string]string{"codigo": qr}, "")
	require.Equal(t, http.StatusConflict, code)

	code, body = a.do(t, http.MethodGet, "/v1/mesas/"+id, nil, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ocupada", body["estado"])
	require.NotContains(t, body, "qr")

	code, _ = a.do(t, http.MethodPost, "/v1/mesas/"+id+"/llamar", nil, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPost, "/v1/admin/mesas/"+id+"/responder", map[string]string{"respuesta": "atendido"}, admin)
	require.Equal(t, http.StatusOK, code)

	cart := map[string]any{"mesa": id, "items": []map[string]any{{"nombre": "Sopa", "precio": 20, "cantidad": 2}}}
	code, body = a.do(t, http.MethodPost, "/v1/pedidos", cart, "")
	require.Equal(t, http.StatusCreated, code)
	pedidoID := body["pedido"].(map[string]any)["id"].(string)

	code, body = a.do(t, http.MethodGet, "/v1/mesas/"+id+"/pedidos", nil, "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "40", fmt.Sprint(body["total"]))

	code, _ = a.do(t, http.MethodPatch, "/v1/admin/pedidos/"+pedidoID+"/estado", map[string]string{"estado": "pendiente"}, cajero)
	require.Equal(t, http.StatusConflict, code)

	code, body = a.do(t, http.MethodPost, "/v1/admin/cajero/mesas/"+id+"/pagar", nil, cajero)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), body["pagados"])

	code, _ = a.do(t, http.MethodGet, "/v1/admin/reportes", nil, cajero)
	require.Equal(t, http.StatusForbidden, code)
	code, body = a.do(t, http.MethodGet, "/v1/admin/reportes", nil, admin)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, float64(1), body["diario"].(map[string]any)["cantidad"])

	code, _ = a.do(t, http.MethodDelete, "/v1/admin/mesas/"+id, nil, admin)
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = a.do(t, http.MethodDelete, "/v1/admin/mesas/"+id+"?confirm=true", nil, admin)
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodGet, "/v1/mesas/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestValidateExpiredCode(t *testing.T) {
	a := newApp(t)
	code, body := a.do(t, http.MethodPost, "/v1/admin/mesas", map[string]any{"numero": 7, "capacidad": "2"}, a.token(t, model.RoleAdmin))
	require.Equal(t, http.StatusCreated, code)
	qr := body["mesa"].(map[string]any)["qr"].(string)

	a.qr.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	code, _ = a.do(t, http.MethodPost, "/v1/mesas/validar", map[string]string{"codigo": qr}, "")
	require.Equal(t, http.StatusGone, code)
}

func TestAccesosRestrictAdmin(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, model.RoleAdmin)
	limitedTok := a.token(t, model.RoleAdmin)

	code, body := a.do(t, http.MethodGet, "/v1/me", nil, limitedTok)
	require.Equal(t, http.StatusOK, code)
	limitedID := body["usuario"].(map[string]any)["id"].(string)

	code, _ = a.do(t, http.MethodPut, "/v1/admin/usuarios/"+limitedID+"/accesos",
		map[string]any{"accesos": map[string]bool{"inventario": true}}, admin)
	require.Equal(t, http.StatusOK, code)

	code, _ = a.do(t, http.MethodGet, "/v1/admin/inventario", nil, limitedTok)
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodGet, "/v1/admin/mesas", nil, limitedTok)
	require.Equal(t, http.StatusForbidden, code)
}

func TestMesaStream(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, model.RoleAdmin)
	_, body := a.do(t, http.MethodPost, "/v1/admin/mesas", map[string]any{"numero": "3", "capacidad": 2}, admin)
	id := body["mesa"].(map[string]any)["id"].(string)

	srv := httptest.NewServer(a.e)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/mesas/" + id + "/stream"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg handler.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "mesa", msg.Event)
	require.Equal(t, id, msg.Payload.(map[string]any)["id"])

	code, _ := a.do(t, http.MethodPost, "/v1/mesas/"+id+"/llamar", nil, "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, true, msg.Payload.(map[string]any)["llamando"])

	code, _ = a.do(t, http.MethodDelete, "/v1/admin/mesas/"+id+"?confirm=true", nil, admin)
	require.Equal(t, http.StatusOK, code)
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)
}

func TestMesaStreamUnknownTable(t *testing.T) {
	a := newApp(t)
	srv := httptest.NewServer(a.e)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/mesas/nope/stream"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminStreamTokenInQuery(t *testing.T) {
	a := newApp(t)
	admin := a.token(t, model.RoleAdmin)
	srv := httptest.NewServer(a.e)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/admin/inventario/stream"

	_, resp, err := websocket.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+admin, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg handler.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "inventario", msg.Event)
	require.Empty(t, msg.Payload)

	code, _ := a.do(t, http.MethodPost, "/v1/admin/inventario", map[string]any{"nombre": "Harina", "descripcion": "kg", "cantidad": 3}, admin)
	require.Equal(t, http.StatusCreated, code)
	require.NoError(t, conn.ReadJSON(&msg))
	items := msg.Payload.([]any)
	require.Len(t, items, 1)
	require.Equal(t, "Harina", items[0].(map[string]any)["nombre"])
}
