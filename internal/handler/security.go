package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/domain/auth"
)

// HeaderAPIKey is the header API keys are sent in. A bearer token in
// Authorization is accepted as well.
const HeaderAPIKey = "api_key"

func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get(HeaderAPIKey); key != "" {
		return key
	}
	if v := r.Header.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

// authenticate resolves the identity behind an API key. The stored hash is
// compared in constant time.
func (h *Handler) authenticate(ctx context.Context, key string) (auth.Identity, error) {
	if key == "" {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	hash := auth.HashKey(h.pepper, key)

	info, err := h.keys.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return auth.Identity{}, auth.ErrUnauthorized
		}
		return auth.Identity{}, errors.Wrap(err, "find api key")
	}

	want, err := hex.DecodeString(hash)
	if err != nil {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	got, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(want, got) != 1 || !info.Active || !info.Role.Valid() {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	return info.Identity(), nil
}

// guard authenticates the request and requires one of roles. An empty list
// admits every authenticated caller.
func (h *Handler) guard(roles []auth.Role, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := h.authenticate(ctx, apiKeyFrom(r))
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		if !id.HasRole(roles...) {
			zctx.From(ctx).Info("Access denied",
				zap.String("key_id", id.KeyID),
				zap.String("role", string(id.Role)),
			)
			writeError(ctx, w, auth.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(ctx, id)))
	})
}

func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}
