package model

type TipoPedido string

const (
	PedidoLocal  TipoPedido = "local"
	PedidoOnline TipoPedido = "online"
)

// EstadoPedido is the order status. Pendiente is the only non-terminal one.
type EstadoPedido string

const (
	PedidoPendiente  EstadoPedido = "pendiente"
	PedidoPreparado  EstadoPedido = "preparado"
	PedidoFinalizado EstadoPedido = "finalizado"
	PedidoPagado     EstadoPedido = "pagado"
)

func (e EstadoPedido) Valid() bool {
	switch e {
	case PedidoPendiente, PedidoPreparado, PedidoFinalizado, PedidoPagado:
		return true
	}
	return false
}

// Item is one cart line. Precio and Cantidad arrive as numbers or numeric
// strings depending on the client.
type Item struct {
	ID       string `json:"id,omitempty"`
	Nombre   string `json:"nombre"`
	Cantidad Scalar `json:"cantidad,omitempty"`
	Precio   Scalar `json:"precio,omitempty"`
}

// Pedido is an order. Exactly one of Mesa and Direccion is set; Timestamp
// is unix milliseconds.
type Pedido struct {
	ID        string       `json:"id,omitempty"`
	Items     []Item       `json:"items"`
	Tipo      TipoPedido   `json:"tipo"`
	Mesa      string       `json:"mesa,omitempty"`
	Direccion string       `json:"direccion,omitempty"`
	Estado    EstadoPedido `json:"estado"`
	Timestamp int64        `json:"timestamp"`
}
