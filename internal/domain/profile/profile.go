package profile

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a user has no client profile.
var ErrNotFound = errors.New("profile not found")

// Profile holds the customer data attached to a user.
type Profile struct {
	ID        string
	UserID    string
	Name      string
	Email     string
	Phone     string
	Address   string
	AvatarURL string
	AvatarKey string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository defines persistence operations for client profiles. Profiles
// are unique per user id.
type Repository interface {
	FindByUserID(ctx context.Context, userID string) (*Profile, error)
	List(ctx context.Context) ([]Profile, error)
	Upsert(ctx context.Context, p *Profile) error
	SetAvatar(ctx context.Context, userID, url, key string) error
}
