package order

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether an order in status s may move to next.
// Staying in the same status is always allowed.
func (s Status) CanTransitionTo(next Status) bool {
	return s == next || slices.Contains(transitions[s], next)
}

// Order is a placed customer order. Items carry the unit prices captured
// when the order was created.
type Order struct {
	ID              string
	CustomerID      string
	Items           []Item
	Subtotal        decimal.Decimal
	Discounts       decimal.Decimal
	Total           decimal.Decimal
	DeliveryAddress string
	DeliveryNotes   string
	Status          Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is a single priced line of an order.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineItem is a requested product and quantity.
type LineItem struct {
	ProductID string
	Quantity  int
}

// Repository defines persistence operations for orders. List operations
// return the newest orders first.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]Order, error)
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
}
