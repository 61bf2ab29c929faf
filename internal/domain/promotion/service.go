package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CreateRequest holds the input for a new promotion.
type CreateRequest struct {
	Name       string
	Discount   decimal.Decimal
	ProductIDs []string
	Active     bool
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// UpdateRequest holds a partial promotion update. A nil field is left
// unchanged; the Clear flags remove a bound of the validity window.
type UpdateRequest struct {
	Name            *string
	Discount        *decimal.Decimal
	ProductIDs      *[]string
	Active          *bool
	ValidFrom       *time.Time
	ValidUntil      *time.Time
	ClearValidFrom  bool
	ClearValidUntil bool
}

// Service manages promotions.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a promotion Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Active returns the promotions that apply right now, in application order.
func (s *Service) Active(ctx context.Context) ([]Promotion, error) {
	promos, err := s.repo.ListActive(ctx, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "list active promotions")
	}
	return promos, nil
}

// List returns every promotion.
func (s *Service) List(ctx context.Context) ([]Promotion, error) {
	promos, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	return promos, nil
}

// Get returns a promotion by id.
func (s *Service) Get(ctx context.Context, id string) (*Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get promotion")
	}
	return p, nil
}

// Create validates and stores a promotion.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Promotion, error) {
	now := s.now().UTC()
	p := &Promotion{
		ID:         uuid.New().String(),
		Name:       req.Name,
		Discount:   req.Discount,
		ProductIDs: req.ProductIDs,
		Active:     req.Active,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create promotion")
	}
	return p, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Promotion, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get promotion")
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Discount != nil {
		p.Discount = *req.Discount
	}
	if req.ProductIDs != nil {
		p.ProductIDs = *req.ProductIDs
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	switch {
	case req.ClearValidFrom:
		p.ValidFrom = nil
	case req.ValidFrom != nil:
		p.ValidFrom = req.ValidFrom
	}
	switch {
	case req.ClearValidUntil:
		p.ValidUntil = nil
	case req.ValidUntil != nil:
		p.ValidUntil = req.ValidUntil
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update promotion")
	}
	return p, nil
}

// Delete removes a promotion.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete promotion")
	}
	return nil
}

func validate(p *Promotion) error {
	if p.Discount.IsNegative() || p.Discount.GreaterThan(hundred) {
		return ErrInvalidDiscount
	}
	if p.ValidFrom != nil && p.ValidUntil != nil && p.ValidUntil.Before(*p.ValidFrom) {
		return ErrInvalidWindow
	}
	return nil
}
