package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artelab/backoffice/internal/domain/profile"
)

const profileColumns = `id, user_id, name, email, phone, address, avatar_url, avatar_key, created_at, updated_at`

const (
	findProfileByUserIDSQL = `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1`

	listProfilesSQL = `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC, id`

	upsertProfileSQL = `INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			updated_at = EXCLUDED.updated_at`

	setProfileAvatarSQL = `UPDATE profiles SET avatar_url = $2, avatar_key = $3, updated_at = now()
		WHERE user_id = $1`
)

var _ profile.Repository = (*ProfileRepository)(nil)

// ProfileRepository implements profile.Repository backed by PostgreSQL.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a ProfileRepository that uses the given pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// FindByUserID returns the profile owned by userID.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*profile.Profile, error) {
	rows, err := r.pool.Query(ctx, findProfileByUserIDSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("finding profile of user %q: %w", userID, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProfile)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, profile.ErrNotFound
		}
		return nil, fmt.Errorf("finding profile of user %q: %w", userID, err)
	}
	return &p, nil
}

// List returns all profiles, newest first.
func (r *ProfileRepository) List(ctx context.Context) ([]profile.Profile, error) {
	rows, err := r.pool.Query(ctx, listProfilesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return pgx.CollectRows(rows, scanProfile)
}

// Upsert stores p keyed by its user id. Avatar fields are managed by
// SetAvatar and are not overwritten here.
func (r *ProfileRepository) Upsert(ctx context.Context, p *profile.Profile) error {
	_, err := r.pool.Exec(ctx, upsertProfileSQL,
		p.ID, p.UserID, p.Name, p.Email, p.Phone, p.Address,
		p.AvatarURL, p.AvatarKey, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting profile of user %q: %w", p.UserID, err)
	}
	return nil
}

// SetAvatar records the avatar of userID.
func (r *ProfileRepository) SetAvatar(ctx context.Context, userID, url, key string) error {
	tag, err := r.pool.Exec(ctx, setProfileAvatarSQL, userID, url, key)
	if err != nil {
		return fmt.Errorf("setting avatar of user %q: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return profile.ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.CollectableRow) (profile.Profile, error) {
	var p profile.Profile
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Email, &p.Phone, &p.Address,
		&p.AvatarURL, &p.AvatarKey, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
