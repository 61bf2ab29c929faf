package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/media"
)

const imagePrefix = "products"

// ImageStore uploads and removes product pictures.
type ImageStore interface {
	UploadImage(ctx context.Context, prefix string, up media.Upload) (*media.Image, error)
	DeleteImage(ctx context.Context, keys ...string) error
}

// CreateRequest holds the input for adding a product to the catalog.
type CreateRequest struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  string
}

// UpdateRequest holds a partial product update. Nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	CategoryID  *string
}

// Service encapsulates catalog management.
type Service struct {
	repo   Repository
	images ImageStore
	cache  Cache
	now    func() time.Time
}

// NewService creates a catalog Service. A nil cache disables list caching.
func NewService(repo Repository, images ImageStore, cache Cache) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{
		repo:   repo,
		images: images,
		cache:  cache,
		now:    time.Now,
	}
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.cached(ctx, "all", s.repo.List)
}

// ListByCategory returns the products of a single category.
func (s *Service) ListByCategory(ctx context.Context, categoryID string) ([]Product, error) {
	return s.cached(ctx, "category:"+categoryID, func(ctx context.Context) ([]Product, error) {
		return s.repo.ListByCategory(ctx, categoryID)
	})
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

// PriceOf returns the current unit price of a product. It is the price
// lookup used when orders are priced.
func (s *Service) PriceOf(ctx context.Context, id string) (decimal.Decimal, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Price, nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if err := validate(req.Price, req.Stock); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := &Product{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	s.invalidate(ctx)
	return p, nil
}

// Update applies a partial update to an existing product.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
	}
	if err := validate(p.Price, p.Stock); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	s.invalidate(ctx)
	return p, nil
}

// AttachImage uploads a new picture for the product and replaces the
// previous one.
func (s *Service) AttachImage(ctx context.Context, id string, up media.Upload) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	img, err := s.images.UploadImage(ctx, imagePrefix, up)
	if err != nil {
		return nil, errors.Wrap(err, "upload image")
	}

	previous := p.Image
	p.Image = Image{
		URL:          img.URL,
		ThumbnailURL: img.ThumbnailURL,
		Key:          img.Key,
		ThumbnailKey: img.ThumbnailKey,
	}
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		s.removeImage(ctx, p.Image)
		return nil, errors.Wrap(err, "update product")
	}
	s.removeImage(ctx, previous)
	s.invalidate(ctx)
	return p, nil
}

// Delete removes a product together with its stored image.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "get product")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}
	s.removeImage(ctx, p.Image)
	s.invalidate(ctx)
	return nil
}

func (s *Service) cached(ctx context.Context, key string, load func(context.Context) ([]Product, error)) ([]Product, error) {
	lg := zctx.From(ctx)

	// Captured before loading; a write in between moves readers to a newer generation.
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		lg.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		products, err := load(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "list products")
		}
		return products, nil
	}

	products, ok, err := s.cache.GetList(ctx, gen, key)
	switch {
	case err != nil:
		lg.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		return products, nil
	}

	products, err = load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	if err := s.cache.SetList(ctx, gen, key, products); err != nil {
		lg.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
	return products, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		zctx.From(ctx).Warn("Catalog cache invalidation failed", zap.Error(err))
	}
}

// removeImage deletes stored image objects. Failures leave orphaned files
// behind and are only logged.
func (s *Service) removeImage(ctx context.Context, img Image) {
	if img.Empty() || s.images == nil {
		return
	}
	var keys []string
	for _, k := range []string{img.Key, img.ThumbnailKey} {
		if k != "" {
			keys = append(keys, k)
		}
	}
	if err := s.images.DeleteImage(ctx, keys...); err != nil {
		zctx.From(ctx).Warn("Delete product image",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}

func validate(price decimal.Decimal, stock int) error {
	if err := ValidatePrice(price); err != nil {
		return err
	}
	if stock < 0 {
		return ErrInvalidStock
	}
	return nil
}

type nopCache struct{}

func (nopCache) Generation(context.Context) (int64, error)                      { return 0, nil }
func (nopCache) GetList(context.Context, int64, string) ([]Product, bool, error) { return nil, false, nil }
func (nopCache) SetList(context.Context, int64, string, []Product) error         { return nil }
func (nopCache) Invalidate(context.Context) error                                { return nil }
