// Package queue carries order events over RabbitMQ: the publisher used by
// the order ledger and the consumer that keeps the sales log.
package queue

// Queue names. The event Type doubles as the routing key.
const (
    PedidoCreado = "pedido.creado"
    PedidoPagado = "pedido.pagado"
)

// PedidoEvent is published when an order is submitted and when it is paid.
// Total is the decimal order total rendered as a string so no precision is
// lost in transit.
type PedidoEvent struct {
    Type       string `json:"type"`
    PedidoID   string `json:"pedido_id"`
    Tipo       string `json:"tipo"`
    Mesa       string `json:"mesa,omitempty"`
    Direccion  string `json:"direccion,omitempty"`
    Estado     string `json:"estado"`
    Items      int    `json:"items"`
    Total      string `json:"total"`
    Timestamp  int64  `json:"timestamp"`
    OccurredAt string `json:"occurred_at"`
}
