package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/artelab/backoffice/internal/domain/profile"
)

type profileDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Phone     string    `bson:"phone"`
	Address   string    `bson:"address"`
	AvatarURL string    `bson:"avatar_url"`
	AvatarKey string    `bson:"avatar_key"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d *profileDoc) toDomain() profile.Profile {
	return profile.Profile{
		ID:        d.ID,
		UserID:    d.UserID,
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		Address:   d.Address,
		AvatarURL: d.AvatarURL,
		AvatarKey: d.AvatarKey,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

var _ profile.Repository = (*ProfileRepository)(nil)

// ProfileRepository implements profile.Repository backed by MongoDB.
type ProfileRepository struct {
	coll *mongo.Collection
}

// NewProfileRepository returns a ProfileRepository on db.
func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profilesCollection)}
}

// FindByUserID returns the profile owned by userID.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*profile.Profile, error) {
	var doc profileDoc
	if err := r.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, profile.ErrNotFound
		}
		return nil, fmt.Errorf("finding profile of user %q: %w", userID, err)
	}
	p := doc.toDomain()
	return &p, nil
}

// List returns all profiles, newest first.
func (r *ProfileRepository) List(ctx context.Context) ([]profile.Profile, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	var docs []profileDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	out := make([]profile.Profile, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}

// Upsert stores p keyed by its user id. Avatar fields are managed by
// SetAvatar and are not overwritten here.
func (r *ProfileRepository) Upsert(ctx context.Context, p *profile.Profile) error {
	update := bson.M{
		"$set": bson.M{
			"name":       p.Name,
			"email":      p.Email,
			"phone":      p.Phone,
			"address":    p.Address,
			"updated_at": p.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"_id":        p.ID,
			"avatar_url": p.AvatarURL,
			"avatar_key": p.AvatarKey,
			"created_at": p.CreatedAt,
		},
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"user_id": p.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting profile of user %q: %w", p.UserID, err)
	}
	return nil
}

// SetAvatar records the avatar of userID.
func (r *ProfileRepository) SetAvatar(ctx context.Context, userID, url, key string) error {
	update := bson.M{"$set": bson.M{
		"avatar_url": url,
		"avatar_key": key,
		"updated_at": time.Now().UTC(),
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"user_id": userID}, update)
	if err != nil {
		return fmt.Errorf("setting avatar of user %q: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return profile.ErrNotFound
	}
	return nil
}
