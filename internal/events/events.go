// Package events publishes domain events to NATS.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/domain/order"
)

// SubjectOrderCreated is the default subject for new orders.
const SubjectOrderCreated = "artelab.orders.created"

type publisher interface {
	Publish(subject string, data []byte) error
}

var _ order.Publisher = (*Publisher)(nil)

// Publisher sends order events as JSON messages.
type Publisher struct {
	conn    publisher
	subject string
}

// NewPublisher returns a Publisher writing to subject on conn. An empty
// subject selects SubjectOrderCreated.
func NewPublisher(conn publisher, subject string) *Publisher {
	if subject == "" {
		subject = SubjectOrderCreated
	}
	return &Publisher{conn: conn, subject: subject}
}

// Connect dials the NATS server at url.
func Connect(ctx context.Context, url, name string) (*nats.Conn, error) {
	lg := zctx.From(ctx)
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				lg.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			lg.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect nats")
	}
	return nc, nil
}

// OrderCreated publishes o.
func (p *Publisher) OrderCreated(ctx context.Context, o *order.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, encodeOrderCreated(o)); err != nil {
		return errors.Wrapf(err, "publish %s", p.subject)
	}
	return nil
}

func encodeOrderCreated(o *order.Order) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("type")
	e.Str("order.created")
	e.FieldStart("order_id")
	e.Str(o.ID)
	e.FieldStart("customer_id")
	e.Str(o.CustomerID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("subtotal")
	e.Str(o.Subtotal.String())
	e.FieldStart("discounts")
	e.Str(o.Discounts.String())
	e.FieldStart("total")
	e.Str(o.Total.String())
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_price")
		e.Str(it.UnitPrice.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}
