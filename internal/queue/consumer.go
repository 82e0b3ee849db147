package queue

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one message body.  routingKey is the key the message
// was published with.
type Handler func(ctx context.Context, routingKey string, body []byte) error

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; the message is dropped.
func Permanent(err error) error {
    if err == nil {
        return nil
    }
    return permanentError{err: err}
}

func IsPermanent(err error) bool {
    var p permanentError
    return errors.As(err, &p)
}

// Consumer binds a durable queue to routing keys on a topic exchange and
// feeds every delivery to Handle.  Run keeps reconnecting with backoff
// until ctx is cancelled.
type Consumer struct {
    Name     string // log prefix
    URL      string
    Exchange string
    Queue    string
    Keys     []string
    Prefetch int
    Handle   Handler
}

// Run blocks until ctx is done and returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if err := ctx.Err(); err != nil {
            return err
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Printf("%s: failed to dial broker: %v; retrying in %s", c.Name, err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consume(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("%s: consume loop ended: %v; reconnecting", c.Name, err)
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

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    prefetch := c.Prefetch
    if prefetch <= 0 {
        prefetch = 50
    }
    if err := ch.Qos(prefetch, 0, false); err != nil {
        log.Printf("%s: set QoS failed: %v", c.Name, err)
    }
    if err := declareExchange(ch, c.Exchange); err != nil {
        return err
    }
    if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    for _, key := range c.Keys {
        if err := ch.QueueBind(c.Queue, key, c.Exchange, false, nil); err != nil {
            return fmt.Errorf("bind %s: %w", key, err)
        }
    }
    msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
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
            c.dispatch(ctx, d)
        }
    }
}

// dispatch acks on success.  A failed message is requeued once; permanent
// errors and second failures are rejected.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
    if err := c.Handle(ctx, d.RoutingKey, d.Body); err != nil {
        requeue := !d.Redelivered && !IsPermanent(err)
        log.Printf("%s: handle %s failed (requeue=%t): %v", c.Name, d.RoutingKey, requeue, err)
        _ = d.Nack(false, requeue)
        return
    }
    _ = d.Ack(false)
}
