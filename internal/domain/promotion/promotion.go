// Package promotion manages percentage discounts applied when orders are
// priced.
package promotion

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for promotions.
var (
	ErrNotFound        = errors.New("promotion not found")
	ErrInvalidDiscount = errors.New("discount must be between 0 and 100")
	ErrInvalidWindow   = errors.New("valid_until must not be before valid_from")
)

// Promotion is a percentage discount. With no target products it applies to
// the whole order, otherwise only to the listed products.
type Promotion struct {
	ID         string
	Name       string
	Discount   decimal.Decimal
	ProductIDs []string
	Active     bool
	ValidFrom  *time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Global reports whether the promotion applies to the running order total.
func (p Promotion) Global() bool {
	return len(p.ProductIDs) == 0
}

// Targets reports whether productID is one of the promotion's products.
func (p Promotion) Targets(productID string) bool {
	return slices.Contains(p.ProductIDs, productID)
}

// ActiveAt reports whether the promotion is enabled and inside its validity
// window at now.
func (p Promotion) ActiveAt(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	return true
}

// Repository defines persistence operations for promotions. ListActive
// returns promotions ordered by creation time, then id.
type Repository interface {
	ListActive(ctx context.Context, now time.Time) ([]Promotion, error)
	List(ctx context.Context) ([]Promotion, error)
	GetByID(ctx context.Context, id string) (*Promotion, error)
	Create(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	Delete(ctx context.Context, id string) error
}
