// Package auth defines caller identities, roles and API key lookup.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"slices"

	"github.com/go-faster/errors"
)

// Role is the permission group an API key belongs to.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSeller, RoleCustomer:
		return true
	}
	return false
}

// Sentinel errors returned by authentication and authorization.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Identity is the authenticated caller of a request.
type Identity struct {
	KeyID  string
	UserID string
	Role   Role
}

// Privileged reports whether the caller may act on behalf of other customers.
func (i Identity) Privileged() bool {
	return i.Role == RoleAdmin || i.Role == RoleSeller
}

// HasRole reports whether the caller holds any of the given roles. An empty
// list matches every authenticated identity.
func (i Identity) HasRole(roles ...Role) bool {
	if len(roles) == 0 {
		return i.Role.Valid()
	}
	return slices.Contains(roles, i.Role)
}

// APIKeyInfo holds the identity and permission data for a stored API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Role    Role
	Active  bool
}

// Identity converts the stored key into the identity of its holder.
func (k *APIKeyInfo) Identity() Identity {
	return Identity{KeyID: k.ID, UserID: k.UserID, Role: k.Role}
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex encoded HMAC-SHA256 of key under pepper.
func HashKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
