package events

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artelab/backoffice/internal/domain/order"
)

type recordingConn struct {
	subject string
	data    []byte
	err     error
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.subject = subject
	c.data = data
	return c.err
}

func testOrder() *order.Order {
	return &order.Order{
		ID:         "ord-1",
		CustomerID: "cust-1",
		Items: []order.Item{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		},
		Subtotal:  decimal.RequireFromString("20.00"),
		Discounts: decimal.RequireFromString("5.00"),
		Total:     decimal.RequireFromString("15.00"),
		Status:    order.StatusPending,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPublisherOrderCreated(t *testing.T) {
	conn := &recordingConn{}
	p := NewPublisher(conn, "")

	require.NoError(t, p.OrderCreated(context.Background(), testOrder()))
	assert.Equal(t, SubjectOrderCreated, conn.subject)

	fields := map[string]string{}
	var items int
	err := jx.DecodeBytes(conn.data).Obj(func(d *jx.Decoder, key string) error {
		if key == "items" {
			return d.Arr(func(d *jx.Decoder) error {
				items++
				return d.Skip()
			})
		}
		v, err := d.Str()
		fields[key] = v
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, "order.created", fields["type"])
	assert.Equal(t, "ord-1", fields["order_id"])
	assert.Equal(t, "cust-1", fields["customer_id"])
	assert.Equal(t, "15", fields["total"])
	assert.Equal(t, "2025-01-02T03:04:05Z", fields["created_at"])
	assert.Equal(t, 1, items)
}

func TestPublisherCustomSubject(t *testing.T) {
	conn := &recordingConn{}
	p := NewPublisher(conn, "shop.orders")

	require.NoError(t, p.OrderCreated(context.Background(), testOrder()))
	assert.Equal(t, "shop.orders", conn.subject)
}

func TestPublisherError(t *testing.T) {
	conn := &recordingConn{err: errors.New("connection closed")}
	p := NewPublisher(conn, "")

	err := p.OrderCreated(context.Background(), testOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")
}

func TestPublisherCancelledContext(t *testing.T) {
	conn := &recordingConn{}
	p := NewPublisher(conn, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, p.OrderCreated(ctx, testOrder()), context.Canceled)
	assert.Empty(t, conn.subject)
}
