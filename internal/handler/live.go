package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-service/internal/model"
	"github.com/iliyamo/restaurant-service/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Origins lists the browser origins allowed to open live streams, in the
// same form as the CORS allow list. Empty allows any origin.
type Origins []string

// Allow reports whether the handshake may proceed. Requests without an
// Origin header do not come from a browser page and are accepted.
func (o Origins) Allow(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(o) == 0 {
		return true
	}
	for _, a := range o {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func (o Origins) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     o.Allow,
	}
}

// Message is one websocket frame: the event name and the full current
// state it carries.
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// stream upgrades the request and forwards every value of the channel
// returned by open as a Message until the client leaves or the channel
// closes. The subscription lives exactly as long as the connection. A
// subscription that fails while open ends the connection with an internal
// error close frame.
func stream[T any](c echo.Context, origins Origins, event string, open func(context.Context) (<-chan T, error), view func(T) any) error {
	ctx, cancel := store.WithAbort(context.Background())
	defer cancel()

	ch, err := open(ctx)
	if err != nil {
		return respondError(c, err)
	}
	conn, err := origins.upgrader().Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil // upgrader already replied
	}
	defer conn.Close()

	// reader: only needed to notice the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			closeStream(ctx, c, conn, event)
			return nil
		case v, ok := <-ch:
			if !ok {
				closeStream(ctx, c, conn, event)
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Message{Event: event, Payload: view(v)}); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

// closeStream sends the close frame: normal when the feed ended or the
// client left, internal error when the subscription failed.
func closeStream(ctx context.Context, c echo.Context, conn *websocket.Conn, event string) {
	code, text := websocket.CloseNormalClosure, event+" cerrado"
	if err := context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.Logger().Errorf("%s stream: %v", event, err)
		code, text = websocket.CloseInternalServerErr, event+" no disponible"
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

func identity[T any](v T) any { return v }

// MesaStream pushes the customer view of one table; it ends when the table
// is deleted.
func (h *MesaHandler) MesaStream(c echo.Context) error {
	id := c.Param("id")
	return stream(c, h.Origins, "mesa", func(ctx context.Context) (<-chan model.Mesa, error) {
		// fail before upgrading when the table does not exist
		if _, err := h.Mesas.Get(ctx, id); err != nil {
			return nil, err
		}
		return h.Mesas.ObserveOne(ctx, id)
	}, func(m model.Mesa) any { return h.clienteView(m) })
}

// MesasStream pushes the full table list to the staff board.
func (h *MesaHandler) MesasStream(c echo.Context) error {
	return stream(c, h.Origins, "mesas", h.Mesas.Observe, identity[[]model.Mesa])
}

// PedidosStream pushes the filtered order board.
func (h *PedidoHandler) PedidosStream(c echo.Context) error {
	f, err := filterFrom(c)
	if err != nil {
		return respondError(c, err)
	}
	return stream(c, h.Origins, "pedidos", func(ctx context.Context) (<-chan []model.Pedido, error) {
		return h.Pedidos.Observe(ctx, f)
	}, identity[[]model.Pedido])
}

// Stream pushes the stock list to the inventory screen.
func (h *InventarioHandler) Stream(c echo.Context) error {
	return stream(c, h.Origins, "inventario", h.Items.Watch, identity[[]model.InventarioItem])
}
