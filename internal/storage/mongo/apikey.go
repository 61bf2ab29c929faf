package mongo

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/artelab/backoffice/internal/domain/auth"
)

type apiKeyDoc struct {
	ID      string `bson:"_id"`
	KeyHash string `bson:"key_hash"`
	Name    string `bson:"name"`
	UserID  string `bson:"user_id"`
	Role    string `bson:"role"`
	Active  bool   `bson:"active"`
}

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by MongoDB.
type APIKeyRepository struct {
	coll *mongo.Collection
}

// NewAPIKeyRepository returns an APIKeyRepository on db.
func NewAPIKeyRepository(db *mongo.Database) *APIKeyRepository {
	return &APIKeyRepository{coll: db.Collection(apiKeysCollection)}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var doc apiKeyDoc
	err := r.coll.FindOne(ctx, bson.M{"key_hash": hash, "active": true}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auth.ErrUnauthorized
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &auth.APIKeyInfo{
		ID:      doc.ID,
		KeyHash: doc.KeyHash,
		Name:    doc.Name,
		UserID:  doc.UserID,
		Role:    auth.Role(doc.Role),
		Active:  doc.Active,
	}, nil
}

// Upsert stores an API key.
func (r *APIKeyRepository) Upsert(ctx context.Context, k *auth.APIKeyInfo) error {
	doc := apiKeyDoc{
		ID:      k.ID,
		KeyHash: k.KeyHash,
		Name:    k.Name,
		UserID:  k.UserID,
		Role:    string(k.Role),
		Active:  k.Active,
	}
	if _, err := r.coll.ReplaceOne(ctx, byID(k.ID), doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("upserting api key %q: %w", k.ID, err)
	}
	return nil
}
