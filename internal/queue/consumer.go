package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// SalesLogName is the file, under the log directory, that receives one line
// per paid order.
const SalesLogName = "ventas.log"

var consumerLog = log.New("sales-consumer")

// StartSalesConsumer consumes pedido.pagado and appends each event to
// dir/ventas.log. It reconnects with exponential backoff (capped at 30s)
// and returns only when ctx is cancelled. Malformed messages are rejected
// without requeue.
func StartSalesConsumer(ctx context.Context, url, dir string) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            consumerLog.Warnf("dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, dir)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        consumerLog.Warnf("consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, dir string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        consumerLog.Warnf("set QoS: %v", err)
    }
    if _, err := ch.QueueDeclare(PedidoPagado, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(PedidoPagado, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(dir, d.Body); err != nil {
                consumerLog.Errorf("handle message: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(dir string, body []byte) error {
    var ev PedidoEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.PedidoID == "" {
        return errors.New("event without pedido_id")
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, SalesLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatSale(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatSale(ev PedidoEvent) string {
    where := "mesa=" + ev.Mesa
    if ev.Tipo == "online" {
        where = fmt.Sprintf("direccion=%q", ev.Direccion)
    }
    total := ev.Total
    if strings.TrimSpace(total) == "" {
        total = "0"
    }
    return fmt.Sprintf("[%s] Pedido pagado | pedido_id=%s | tipo=%s | %s | items=%d | total=%s\n",
        ev.OccurredAt, ev.PedidoID, ev.Tipo, where, ev.Items, total)
}
