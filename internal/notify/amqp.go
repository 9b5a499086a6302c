package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pkordes/splitbuy/internal/domain"
)

// publisher is the part of *amqp.Channel the AMQP notifier uses.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQP publishes notifications as JSON to a topic exchange. Consumers bind
// on routing keys of the form notification.<type>.<action>, for example
// notification.group_full.create.
type AMQP struct {
	mu       sync.Mutex
	ch       publisher
	exchange string
	closeFn  func() error
}

// NewAMQP wraps an already-open channel. The exchange must exist.
func NewAMQP(ch publisher, exchange string) *AMQP {
	return &AMQP{ch: ch, exchange: exchange, closeFn: func() error { return nil }}
}

// DialAMQP connects to url, opens a channel and declares exchange as a
// durable topic exchange.
func DialAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("notify.DialAMQP: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("notify.DialAMQP: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("notify.DialAMQP: declare exchange: %w", err)
	}

	a := NewAMQP(ch, exchange)
	a.closeFn = func() error {
		_ = ch.Close()
		return conn.Close()
	}
	return a, nil
}

// RoutingKey returns the topic routing key for n.
func RoutingKey(n domain.Notification) string {
	return "notification." + strings.ToLower(string(n.Type)) + "." + strings.ToLower(string(n.Action))
}

// Notify implements service.Notifier.
func (a *AMQP) Notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify.AMQP.Notify: marshal: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    n.ID.String(),
		Timestamp:    n.CreatedAt,
		Type:         string(n.Type),
		Body:         body,
	}

	// Publishing on one channel from several goroutines interleaves frames.
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ch.PublishWithContext(ctx, a.exchange, RoutingKey(n), false, false, msg); err != nil {
		return fmt.Errorf("notify.AMQP.Notify: publish: %w", err)
	}
	return nil
}

// Close releases the channel and connection opened by DialAMQP.
func (a *AMQP) Close() error {
	return a.closeFn()
}
