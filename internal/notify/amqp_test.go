package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/splitbuy/internal/domain"
	"github.com/pkordes/splitbuy/internal/notify"
)

// fakeChannel is a hand-written stand-in for *amqp.Channel.
type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestRoutingKey(t *testing.T) {
	n := sampleNotification()
	assert.Equal(t, "notification.approved.create", notify.RoutingKey(n))

	n.Type, n.Action = domain.NotifyJoinRequest, domain.ActionRetract
	assert.Equal(t, "notification.join_request.retract", notify.RoutingKey(n))
}

func TestAMQP_Notify_PublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	a := notify.NewAMQP(ch, "splitbuy.notifications")
	n := sampleNotification()

	require.NoError(t, a.Notify(context.Background(), n))

	assert.Equal(t, "splitbuy.notifications", ch.exchange)
	assert.Equal(t, "notification.approved.create", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, n.ID.String(), ch.msg.MessageId)

	var decoded domain.Notification
	require.NoError(t, json.Unmarshal(ch.msg.Body, &decoded))
	assert.Equal(t, n.UserID, decoded.UserID)
	assert.Equal(t, domain.ReferenceSplitGroup, decoded.ReferenceType)
}

func TestAMQP_Notify_PublishError(t *testing.T) {
	boom := errors.New("channel closed")
	a := notify.NewAMQP(&fakeChannel{err: boom}, "x")

	err := a.Notify(context.Background(), sampleNotification())
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, a.Close())
}

// TestAMQP_Integration publishes through a real broker and reads the message
// back from a queue bound to the exchange. Skipped without TEST_RABBIT_URL.
func TestAMQP_Integration(t *testing.T) {
	url := os.Getenv("TEST_RABBIT_URL")
	if url == "" {
		t.Skip("TEST_RABBIT_URL not set; skipping integration test")
	}
	const exchange = "splitbuy.notifications.test"

	a, err := notify.DialAMQP(url, exchange)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ch, err := conn.Channel()
	require.NoError(t, err)

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "notification.approved.*", exchange, false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	n := sampleNotification()
	require.NoError(t, a.Notify(context.Background(), n))

	select {
	case d := <-deliveries:
		assert.Equal(t, n.ID.String(), d.MessageId)
	case <-time.After(5 * time.Second):
		t.Fatal("no delivery within 5s")
	}
}
