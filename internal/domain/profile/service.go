package profile

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/media"
)

const avatarPrefix = "avatars"

// ImageStore uploads and removes avatar images.
type ImageStore interface {
	UploadImage(ctx context.Context, prefix string, up media.Upload) (*media.Image, error)
	DeleteImage(ctx context.Context, keys ...string) error
}

// UpdateRequest holds changes to the caller's own profile.
type UpdateRequest struct {
	Name    *string
	Email   *string
	Phone   *string
	Address *string
}

// Service manages client profiles.
type Service struct {
	repo   Repository
	images ImageStore
	now    func() time.Time
}

// NewService creates a profile Service.
func NewService(repo Repository, images ImageStore) *Service {
	return &Service{repo: repo, images: images, now: time.Now}
}

// ByUserID returns the profile of a user.
func (s *Service) ByUserID(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "find profile")
	}
	return p, nil
}

// List returns every profile.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list profiles")
	}
	return profiles, nil
}

// Update changes the profile of userID, creating it on first use.
func (s *Service) Update(ctx context.Context, userID string, req UpdateRequest) (*Profile, error) {
	now := s.now().UTC()

	p, err := s.repo.FindByUserID(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		p = &Profile{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: now,
		}
	case err != nil:
		return nil, errors.Wrap(err, "find profile")
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
	p.UpdatedAt = now

	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, errors.Wrap(err, "save profile")
	}
	return p, nil
}

// UploadAvatar stores a new avatar for userID and drops the previous one.
func (s *Service) UploadAvatar(ctx context.Context, userID string, up media.Upload) (*Profile, error) {
	p, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "find profile")
	}

	img, err := s.images.UploadImage(ctx, avatarPrefix, up)
	if err != nil {
		return nil, errors.Wrap(err, "upload avatar")
	}
	if err := s.repo.SetAvatar(ctx, userID, img.URL, img.Key); err != nil {
		if derr := s.images.DeleteImage(ctx, img.Key, img.ThumbnailKey); derr != nil {
			zctx.From(ctx).Warn("Delete unsaved avatar",
				zap.String("user_id", userID),
				zap.String("key", img.Key),
				zap.Error(derr),
			)
		}
		return nil, errors.Wrap(err, "save avatar")
	}

	if p.AvatarKey != "" {
		if err := s.images.DeleteImage(ctx, p.AvatarKey, media.ThumbnailKey(p.AvatarKey)); err != nil {
			zctx.From(ctx).Warn("Delete previous avatar",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}

	p.AvatarURL = img.URL
	p.AvatarKey = img.Key
	return p, nil
}
