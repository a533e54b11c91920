package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/labstack/gommon/log"
    amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher publishes order events to a durable queue named after the
// event type. A connection is opened per event; order traffic is low and this
// keeps the publisher free of reconnect state.
type RabbitPublisher struct {
    URL string
    log *log.Logger
}

func NewRabbitPublisher(url string) *RabbitPublisher {
    return &RabbitPublisher{URL: url, log: log.New("rabbitmq")}
}

// Publish sends ev as a persistent JSON message. Errors are logged and
// returned so the caller may ignore them.
func (p *RabbitPublisher) Publish(ctx context.Context, ev PedidoEvent) error {
    if ev.Type != PedidoCreado && ev.Type != PedidoPagado {
        return fmt.Errorf("unknown event type %q", ev.Type)
    }
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        p.log.Warnf("dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.log.Warnf("channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
        p.log.Warnf("queue declare %s failed: %v", ev.Type, err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    // default exchange, routing key = queue name
    if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, msg); err != nil {
        p.log.Warnf("publish %s failed: %v", ev.Type, err)
        return err
    }
    return nil
}
