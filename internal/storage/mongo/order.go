package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/artelab/backoffice/internal/domain/order"
)

type itemDoc struct {
	ProductID string               `bson:"product_id"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
}

type orderDoc struct {
	ID              string               `bson:"_id"`
	CustomerID      string               `bson:"customer_id"`
	Items           []itemDoc            `bson:"items"`
	Subtotal        primitive.Decimal128 `bson:"subtotal"`
	Discounts       primitive.Decimal128 `bson:"discounts"`
	Total           primitive.Decimal128 `bson:"total"`
	DeliveryAddress string               `bson:"delivery_address"`
	DeliveryNotes   string               `bson:"delivery_notes"`
	Status          string               `bson:"status"`
	CreatedAt       time.Time            `bson:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at"`
}

func newOrderDoc(o *order.Order) (*orderDoc, error) {
	doc := &orderDoc{
		ID:              o.ID,
		CustomerID:      o.CustomerID,
		Items:           make([]itemDoc, len(o.Items)),
		DeliveryAddress: o.DeliveryAddress,
		DeliveryNotes:   o.DeliveryNotes,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for i, it := range o.Items {
		price, err := toDecimal128(it.UnitPrice)
		if err != nil {
			return nil, err
		}
		doc.Items[i] = itemDoc{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: price}
	}

	var err error
	if doc.Subtotal, err = toDecimal128(o.Subtotal); err != nil {
		return nil, err
	}
	if doc.Discounts, err = toDecimal128(o.Discounts); err != nil {
		return nil, err
	}
	if doc.Total, err = toDecimal128(o.Total); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *orderDoc) toDomain() (order.Order, error) {
	o := order.Order{
		ID:              d.ID,
		CustomerID:      d.CustomerID,
		Items:           make([]order.Item, len(d.Items)),
		DeliveryAddress: d.DeliveryAddress,
		DeliveryNotes:   d.DeliveryNotes,
		Status:          order.Status(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	for i, it := range d.Items {
		price, err := fromDecimal128(it.UnitPrice)
		if err != nil {
			return order.Order{}, err
		}
		o.Items[i] = order.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: price}
	}

	var err error
	if o.Subtotal, err = fromDecimal128(d.Subtotal); err != nil {
		return order.Order{}, err
	}
	if o.Discounts, err = fromDecimal128(d.Discounts); err != nil {
		return order.Order{}, err
	}
	if o.Total, err = fromDecimal128(d.Total); err != nil {
		return order.Order{}, err
	}
	return o, nil
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by MongoDB.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository returns an OrderRepository on db.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(ordersCollection)}
}

// Create inserts an order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order by id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	var doc orderDoc
	if err := r.coll.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.find(ctx, bson.M{})
}

// ListByCustomer returns the orders of one customer, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	return r.find(ctx, bson.M{"customer_id": customerID})
}

// Update overwrites an order.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	doc, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	res, err := r.coll.ReplaceOne(ctx, byID(o.ID), doc)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if res.MatchedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Delete removes an order.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M) ([]order.Order, error) {
	cur, err := r.coll.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	out := make([]order.Order, 0, len(docs))
	for i := range docs {
		o, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
