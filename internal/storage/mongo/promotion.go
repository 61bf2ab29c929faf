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

	"github.com/artelab/backoffice/internal/domain/promotion"
)

type promotionDoc struct {
	ID         string               `bson:"_id"`
	Name       string               `bson:"name"`
	Discount   primitive.Decimal128 `bson:"discount"`
	ProductIDs []string             `bson:"product_ids"`
	Active     bool                 `bson:"active"`
	ValidFrom  *time.Time           `bson:"valid_from"`
	ValidUntil *time.Time           `bson:"valid_until"`
	CreatedAt  time.Time            `bson:"created_at"`
	UpdatedAt  time.Time            `bson:"updated_at"`
}

func newPromotionDoc(p *promotion.Promotion) (*promotionDoc, error) {
	discount, err := toDecimal128(p.Discount)
	if err != nil {
		return nil, err
	}
	ids := p.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	return &promotionDoc{
		ID:         p.ID,
		Name:       p.Name,
		Discount:   discount,
		ProductIDs: ids,
		Active:     p.Active,
		ValidFrom:  p.ValidFrom,
		ValidUntil: p.ValidUntil,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}, nil
}

func (d *promotionDoc) toDomain() (promotion.Promotion, error) {
	discount, err := fromDecimal128(d.Discount)
	if err != nil {
		return promotion.Promotion{}, err
	}
	return promotion.Promotion{
		ID:         d.ID,
		Name:       d.Name,
		Discount:   discount,
		ProductIDs: d.ProductIDs,
		Active:     d.Active,
		ValidFrom:  d.ValidFrom,
		ValidUntil: d.ValidUntil,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by MongoDB.
type PromotionRepository struct {
	coll *mongo.Collection
}

// NewPromotionRepository returns a PromotionRepository on db.
func NewPromotionRepository(db *mongo.Database) *PromotionRepository {
	return &PromotionRepository{coll: db.Collection(promotionsCollection)}
}

// activeFilter matches enabled promotions whose optional window contains now.
func activeFilter(now time.Time) bson.M {
	return bson.M{
		"active": true,
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"valid_from": nil},
				bson.M{"valid_from": bson.M{"$lte": now}},
			}},
			bson.M{"$or": bson.A{
				bson.M{"valid_until": nil},
				bson.M{"valid_until": bson.M{"$gte": now}},
			}},
		},
	}
}

// ListActive returns promotions in effect at now, oldest first.
func (r *PromotionRepository) ListActive(ctx context.Context, now time.Time) ([]promotion.Promotion, error) {
	return r.find(ctx, activeFilter(now))
}

// List returns every promotion, oldest first.
func (r *PromotionRepository) List(ctx context.Context) ([]promotion.Promotion, error) {
	return r.find(ctx, bson.M{})
}

// GetByID returns a promotion by id.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	var doc promotionDoc
	if err := r.coll.FindOne(ctx, byID(id)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("getting promotion %q: %w", id, err)
	}
	p, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a promotion.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	doc, err := newPromotionDoc(p)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating promotion %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts a promotion or overwrites the one with the same id.
func (r *PromotionRepository) Upsert(ctx context.Context, p *promotion.Promotion) error {
	doc, err := newPromotionDoc(p)
	if err != nil {
		return err
	}
	if _, err := r.coll.ReplaceOne(ctx, byID(p.ID), doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("upserting promotion %q: %w", p.ID, err)
	}
	return nil
}

// Update overwrites a promotion.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	doc, err := newPromotionDoc(p)
	if err != nil {
		return err
	}
	res, err := r.coll.ReplaceOne(ctx, byID(p.ID), doc)
	if err != nil {
		return fmt.Errorf("updating promotion %q: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

// Delete removes a promotion.
func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("deleting promotion %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func (r *PromotionRepository) find(ctx context.Context, filter bson.M) ([]promotion.Promotion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	var docs []promotionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}

	out := make([]promotion.Promotion, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
