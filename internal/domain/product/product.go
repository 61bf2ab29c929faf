package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for the product catalog.
var (
	ErrNotFound     = errors.New("product not found")
	ErrInvalidPrice = errors.New("price must not be negative")
	ErrPriceScale   = errors.New("price must have at most 2 decimal places")
	ErrInvalidStock = errors.New("stock must not be negative")
)

// ValidatePrice checks that price is a non-negative amount in cents.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	if !price.Equal(price.Round(2)) {
		return ErrPriceScale
	}
	return nil
}

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  string
	Image       Image
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Image references the stored picture of a product and its thumbnail.
type Image struct {
	URL          string
	ThumbnailURL string
	Key          string
	ThumbnailKey string
}

// Empty reports whether no image is attached.
func (i Image) Empty() bool {
	return i.Key == "" && i.URL == ""
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	ListByCategory(ctx context.Context, categoryID string) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
}

// Cache stores rendered catalog listings per generation. Invalidate starts a
// new generation, so a listing loaded before it and stored after it is
// never served. Implementations must treat a miss as (nil, false, nil).
type Cache interface {
	Generation(ctx context.Context) (int64, error)
	GetList(ctx context.Context, gen int64, key string) ([]Product, bool, error)
	SetList(ctx context.Context, gen int64, key string, products []Product) error
	Invalidate(ctx context.Context) error
}
