package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/artelab/backoffice/internal/domain/profile"
)

type profileResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toProfileResponse(p *profile.Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		Email:     p.Email,
		Phone:     p.Phone,
		Address:   p.Address,
		AvatarURL: p.AvatarURL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type updateProfileRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone" validate:"omitempty,max=40"`
	Address *string `json:"address" validate:"omitempty,max=500"`
}

func (h *Handler) getMyProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.ByUserID(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "", toProfileResponse(p))
}

func (h *Handler) updateMyProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	p, err := h.profiles.Update(r.Context(), identity(r).UserID, profile.UpdateRequest{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "profile updated", toProfileResponse(p))
}

func (h *Handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	up, closeFn, err := h.formFile(w, r, "image")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	defer closeFn()

	p, err := h.profiles.UploadAvatar(r.Context(), identity(r).UserID, up)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "avatar uploaded", toProfileResponse(p))
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	ps, err := h.profiles.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	out := make([]profileResponse, len(ps))
	for i := range ps {
		out[i] = toProfileResponse(&ps[i])
	}
	okList(r.Context(), w, out)
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.ByUserID(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "", toProfileResponse(p))
}
