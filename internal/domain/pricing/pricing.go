// Package pricing computes order totals from catalog prices and promotions.
//
// Unit prices are resolved once per line item and captured in the result, so
// a priced order never depends on later catalog changes. Promotions are then
// folded over the subtotal in the order they are given:
//
//   - a targeted promotion subtracts price*pct/100*quantity for every line
//     item whose product it lists;
//   - a global promotion subtracts pct/100 of the current running total, so
//     consecutive global promotions compound.
//
// The result is clamped at zero and rounded to cents.
package pricing

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/artelab/backoffice/internal/domain/product"
	"github.com/artelab/backoffice/internal/domain/promotion"
)

const lookupConcurrency = 8

var hundred = decimal.NewFromInt(100)

// LineItem is a requested product and quantity.
type LineItem struct {
	ProductID string
	Quantity  int
}

// PricedItem is a line item with the unit price captured at pricing time.
type PricedItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns UnitPrice * Quantity.
func (i PricedItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Quote is the outcome of pricing a set of line items.
type Quote struct {
	Items     []PricedItem
	Subtotal  decimal.Decimal
	Discounts decimal.Decimal
	Total     decimal.Decimal
}

// PriceLookup returns the current unit price of a product, or an error
// wrapping product.ErrNotFound when the product does not exist.
type PriceLookup interface {
	UnitPrice(ctx context.Context, productID string) (decimal.Decimal, error)
}

// PriceLookupFunc adapts a function to PriceLookup.
type PriceLookupFunc func(ctx context.Context, productID string) (decimal.Decimal, error)

// UnitPrice implements PriceLookup.
func (f PriceLookupFunc) UnitPrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	return f(ctx, productID)
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Unwrap lets errors.Is match product.ErrNotFound.
func (e *ProductNotFoundError) Unwrap() error {
	return product.ErrNotFound
}

// Calculate resolves prices for items and applies promos in order.
func Calculate(ctx context.Context, items []LineItem, prices PriceLookup, promos []promotion.Promotion) (*Quote, error) {
	priced, err := Resolve(ctx, items, prices)
	if err != nil {
		return nil, err
	}

	subtotal, total := Apply(priced, promos)
	return &Quote{
		Items:     priced,
		Subtotal:  subtotal,
		Discounts: subtotal.Sub(total),
		Total:     total,
	}, nil
}

// Resolve looks up every unit price concurrently. The first failure cancels
// the remaining lookups. The result preserves the order of items.
func Resolve(ctx context.Context, items []LineItem, prices PriceLookup) ([]PricedItem, error) {
	priced := make([]PricedItem, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, item := range items {
		g.Go(func() error {
			price, err := prices.UnitPrice(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					return &ProductNotFoundError{ProductID: item.ProductID}
				}
				return errors.Wrapf(err, "price %s", item.ProductID)
			}
			priced[i] = PricedItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: price,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return priced, nil
}

// Apply returns the subtotal of items and the total after folding promos
// over it. A discounted total is rounded to cents; an untouched one equals
// the subtotal exactly.
func Apply(items []PricedItem, promos []promotion.Promotion) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}

	running := subtotal
	for _, p := range promos {
		rate := p.Discount.Div(hundred)
		if p.Global() {
			running = running.Sub(running.Mul(rate))
			continue
		}
		for _, item := range items {
			if p.Targets(item.ProductID) {
				running = running.Sub(item.LineTotal().Mul(rate))
			}
		}
	}

	total = floorAtZero(running)
	if !total.Equal(subtotal) {
		total = total.Round(2)
	}
	return subtotal, total
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
