// Package notify delivers admission notifications to users.
//
// The admission core hands every notification to a service.Notifier after
// its transaction commits and never waits on the outcome beyond logging it.
// Adapters here cover structured logs, a RabbitMQ topic exchange and Redis
// pub/sub channels keyed by user; Multi fans one notification out to all of
// them.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/service"
)

var (
	_ service.Notifier = (*Log)(nil)
	_ service.Notifier = (*Multi)(nil)
	_ service.Notifier = (*AMQP)(nil)
	_ service.Notifier = (*Redis)(nil)
)

// Log writes each notification as one structured log line. It is the
// default channel and the one used in development.
type Log struct {
	log *slog.Logger
}

// NewLog returns a Log notifier writing to log.
func NewLog(log *slog.Logger) *Log {
	return &Log{log: log.With("component", "notify")}
}

// Notify implements service.Notifier.
func (l *Log) Notify(ctx context.Context, n domain.Notification) error {
	l.log.InfoContext(ctx, "notification",
		"id", n.ID.String(),
		"user_id", n.UserID,
		"type", string(n.Type),
		"action", string(n.Action),
		"reference_id", n.ReferenceID,
		"title", n.Title,
	)
	return nil
}

// Multi delivers every notification to all of its notifiers concurrently.
// One failing channel does not stop the others; all failures are joined.
type Multi struct {
	notifiers []service.Notifier
}

// NewMulti returns a Multi over notifiers. Nil entries are skipped.
func NewMulti(notifiers ...service.Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len reports the number of channels.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify implements service.Notifier.
func (m *Multi) Notify(ctx context.Context, n domain.Notification) error {
	errs := make([]error, len(m.notifiers))
	var wg sync.WaitGroup
	for i, target := range m.notifiers {
		wg.Go(func() {
			errs[i] = target.Notify(ctx, n)
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}
