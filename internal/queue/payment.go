package queue

import (
    "context"
    "encoding/json"
    "fmt"
)

// PaymentSettler applies a payment outcome to its booking.
type PaymentSettler interface {
    SettlePayment(ctx context.Context, ev PaymentEvent) error
}

// PaymentHandler decodes payment.* messages and hands them to s.  When the
// body has no type the routing key is used.
func PaymentHandler(s PaymentSettler) Handler {
    return func(ctx context.Context, key string, body []byte) error {
        var ev PaymentEvent
        if err := json.Unmarshal(body, &ev); err != nil {
            return Permanent(fmt.Errorf("unmarshal: %w", err))
        }
        if ev.Type == "" {
            ev.Type = key
        }
        return s.SettlePayment(ctx, ev)
    }
}
