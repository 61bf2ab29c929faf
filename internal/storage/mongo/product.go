package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/artelab/backoffice/internal/domain/product"
)

type productDoc struct {
	ID           string               `bson:"_id"`
	Name         string               `bson:"name"`
	Description  string               `bson:"description"`
	Price        primitive.Decimal128 `bson:"price"`
	Stock        int                  `bson:"stock"`
	CategoryID   string               `bson:"category_id"`
	ImageURL     string               `bson:"image_url"`
	ImageKey     string               `bson:"image_key"`
	ThumbnailURL string               `bson:"thumbnail_url"`
	ThumbnailKey string               `bson:"thumbnail_key"`
	CreatedAt    time.Time            `bson:"created_at"`
	UpdatedAt    time.Time            `bson:"updated_at"`
}

func newProductDoc(p *product.Product) (*productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return nil, err
	}
	return &productDoc{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        price,
		Stock:        p.Stock,
		CategoryID:   p.CategoryID,
		ImageURL:     p.Image.URL,
		ImageKey:     p.Image.Key,
		ThumbnailURL: p.Image.ThumbnailURL,
		ThumbnailKey: p.Image.ThumbnailKey,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}, nil
}

func (d *productDoc) toDomain() (product.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return product.Product{}, err
	}
	return product.Product{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Stock:       d.Stock,
		CategoryID:  d.CategoryID,
		Image: product.Image{
			URL:          d.ImageURL,
			ThumbnailURL: d.ThumbnailURL,
			Key:          d.ImageKey,
			ThumbnailKey: d.ThumbnailKey,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by MongoDB.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository returns a ProductRepository on db.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection)}
}

// List returns the whole catalog ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	return r.find(ctx, bson.M{})
}

// ListByCategory returns the products of one category.
func (r *ProductRepository) ListByCategory(ctx context.Context, categoryID string) ([]product.Product, error) {
	return r.find(ctx, bson.M{"category_id": categoryID})
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns products matching any of ids.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// Create inserts a product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	doc, err := newProductDoc(p)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts a product or refreshes its catalog fields, keeping images.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	doc, err := newProductDoc(p)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"name":        doc.Name,
			"description": doc.Description,
			"price":       doc.Price,
			"stock":       doc.Stock,
			"category_id": doc.CategoryID,
			"updated_at":  doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"image_url":     doc.ImageURL,
			"image_key":     doc.ImageKey,
			"thumbnail_url": doc.ThumbnailURL,
			"thumbnail_key": doc.ThumbnailKey,
			"created_at":    doc.CreatedAt,
		},
	}
	if _, err := r.coll.UpdateOne(ctx, byID(p.ID), update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites a product.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	doc, err := newProductDoc(p)
	if err != nil {
		return err
	}
	res, err := r.coll.ReplaceOne(ctx, byID(p.ID), doc)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// IDs returns the id of every product.
func (r *ProductRepository) IDs(ctx context.Context) ([]string, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("listing product ids: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("listing product ids: %w", err)
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (r *ProductRepository) find(ctx context.Context, filter bson.M) ([]product.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	out := make([]product.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
