package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/domain/auth"
	"github.com/artelab/backoffice/internal/domain/pricing"
	"github.com/artelab/backoffice/internal/domain/profile"
	"github.com/artelab/backoffice/internal/domain/promotion"
)

const instrumentationName = "github.com/artelab/backoffice/internal/domain/order"

// Sentinel errors for order validation.
var (
	ErrEmptyItems        = errors.New("items required")
	ErrInvalidQuantity   = errors.New("quantity must be greater than 0")
	ErrForbiddenCustomer = errors.New("only admin or seller may place orders for another customer")
	ErrInvalidStatus     = errors.New("unknown order status")
	ErrNegativeTotal     = errors.New("total must not be negative")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Unwrap lets errors.Is match ErrInvalidQuantity.
func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// InvalidTransitionError indicates a status change that is not allowed.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// ActivePromotions lists the promotions in effect at a moment, in
// application order.
type ActivePromotions interface {
	ListActive(ctx context.Context, now time.Time) ([]promotion.Promotion, error)
}

// Profiles resolves the customer profile of a user.
type Profiles interface {
	FindByUserID(ctx context.Context, userID string) (*profile.Profile, error)
}

// Publisher announces created orders.
type Publisher interface {
	OrderCreated(ctx context.Context, o *Order) error
}

// CreateRequest holds the input for placing an order. CustomerID may only be
// set by privileged callers.
type CreateRequest struct {
	CustomerID      string
	Items           []LineItem
	DeliveryAddress string
	DeliveryNotes   string
}

// UpdateRequest holds a partial order update. Items are never re-priced.
type UpdateRequest struct {
	DeliveryAddress *string
	DeliveryNotes   *string
	Status          *Status
	Total           *decimal.Decimal
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the publisher notified about new orders.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithTracerProvider sets the tracer provider used for order spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// Service encapsulates order placement and management.
type Service struct {
	prices   pricing.PriceLookup
	promos   ActivePromotions
	profiles Profiles
	orders   Repository
	events   Publisher
	now      func() time.Time

	tracer  trace.Tracer
	meter   metric.Meter
	created metric.Int64Counter
	totals  metric.Float64Histogram
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	prices pricing.PriceLookup,
	promos ActivePromotions,
	profiles Profiles,
	orders Repository,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		prices:   prices,
		promos:   promos,
		profiles: profiles,
		orders:   orders,
		events:   nopPublisher{},
		now:      time.Now,
		tracer:   tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:    metricnoop.NewMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.created, err = s.meter.Int64Counter("artelab.orders.created",
		metric.WithDescription("Number of orders placed"),
	); err != nil {
		return nil, errors.Wrap(err, "orders created counter")
	}
	if s.totals, err = s.meter.Float64Histogram("artelab.orders.total",
		metric.WithDescription("Order totals after discounts"),
	); err != nil {
		return nil, errors.Wrap(err, "orders total histogram")
	}
	return s, nil
}

// Create validates items, resolves the customer, prices the order against
// active promotions, persists it and announces it.
func (s *Service) Create(ctx context.Context, actor auth.Identity, req CreateRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Create")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	lines := make([]pricing.LineItem, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		lines[i] = pricing.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	customerID, err := s.resolveCustomer(ctx, actor, req.CustomerID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	promos, err := s.promos.ListActive(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active promotions")
	}

	quote, err := pricing.Calculate(ctx, lines, s.prices, promos)
	if err != nil {
		return nil, errors.Wrap(err, "price order")
	}

	o := &Order{
		ID:              uuid.New().String(),
		CustomerID:      customerID,
		Items:           make([]Item, len(quote.Items)),
		Subtotal:        quote.Subtotal,
		Discounts:       quote.Discounts,
		Total:           quote.Total,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryNotes:   req.DeliveryNotes,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i, item := range quote.Items {
		o.Items[i] = Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.items", len(o.Items)),
		attribute.Int("order.promotions", len(promos)),
	)
	s.created.Add(ctx, 1)
	s.totals.Record(ctx, o.Total.InexactFloat64())

	if err := s.events.OrderCreated(ctx, o); err != nil {
		zctx.From(ctx).Warn("Publish order created",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
	return o, nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// GetFor returns an order by id on behalf of actor. Customers may only read
// their own orders.
func (s *Service) GetFor(ctx context.Context, actor auth.Identity, id string) (*Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Privileged() {
		return o, nil
	}

	p, err := s.profiles.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "find profile")
	}
	if p.ID != o.CustomerID {
		return nil, auth.ErrForbidden
	}
	return o, nil
}

// List returns all orders, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	orders, err := s.orders.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListByCustomer returns the orders of a customer, newest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "list customer orders")
	}
	return orders, nil
}

// ListMine returns the orders of the caller's own customer profile.
func (s *Service) ListMine(ctx context.Context, actor auth.Identity) ([]Order, error) {
	p, err := s.profiles.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "find profile")
	}
	return s.ListByCustomer(ctx, p.ID)
}

// Update applies a partial update. An explicit total replaces the computed
// one; discounts are adjusted so that subtotal - discounts = total.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}

	if req.DeliveryAddress != nil {
		o.DeliveryAddress = *req.DeliveryAddress
	}
	if req.DeliveryNotes != nil {
		o.DeliveryNotes = *req.DeliveryNotes
	}
	if req.Status != nil {
		next := *req.Status
		if !next.Valid() {
			return nil, ErrInvalidStatus
		}
		if !o.Status.CanTransitionTo(next) {
			return nil, &InvalidTransitionError{From: o.Status, To: next}
		}
		o.Status = next
	}
	if req.Total != nil {
		if req.Total.IsNegative() {
			return nil, ErrNegativeTotal
		}
		o.Total = req.Total.Round(2)
		o.Discounts = o.Subtotal.Sub(o.Total)
	}
	o.UpdatedAt = s.now().UTC()

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete order")
	}
	return nil
}

func (s *Service) resolveCustomer(ctx context.Context, actor auth.Identity, requested string) (string, error) {
	if requested != "" {
		if !actor.Privileged() {
			return "", ErrForbiddenCustomer
		}
		return requested, nil
	}

	p, err := s.profiles.FindByUserID(ctx, actor.UserID)
	if err != nil {
		return "", errors.Wrap(err, "find profile")
	}
	return p.ID, nil
}

type nopPublisher struct{}

func (nopPublisher) OrderCreated(context.Context, *Order) error { return nil }
