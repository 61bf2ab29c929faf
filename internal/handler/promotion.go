package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/artelab/backoffice/internal/domain/promotion"
)

type promotionResponse struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Discount   decimal.Decimal `json:"discount"`
	ProductIDs []string        `json:"product_ids"`
	Active     bool            `json:"active"`
	ValidFrom  *time.Time      `json:"valid_from,omitempty"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func toPromotionResponse(p *promotion.Promotion) promotionResponse {
	ids := p.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	return promotionResponse{
		ID:         p.ID,
		Name:       p.Name,
		Discount:   p.Discount,
		ProductIDs: ids,
		Active:     p.Active,
		ValidFrom:  p.ValidFrom,
		ValidUntil: p.ValidUntil,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

type createPromotionRequest struct {
	Name       string          `json:"name" validate:"required,max=200"`
	Discount   decimal.Decimal `json:"discount"`
	ProductIDs []string        `json:"product_ids" validate:"omitempty,dive,required"`
	Active     *bool           `json:"active"`
	ValidFrom  *time.Time      `json:"valid_from"`
	ValidUntil *time.Time      `json:"valid_until"`
}

type updatePromotionRequest struct {
	Name       *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Discount   *decimal.Decimal `json:"discount"`
	ProductIDs *[]string        `json:"product_ids" validate:"omitempty,dive,required"`
	Active     *bool            `json:"active"`
	ValidFrom  optionalTime     `json:"valid_from"`
	ValidUntil optionalTime     `json:"valid_until"`
}

// optionalTime tells an absent field apart from an explicit null.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// cleared reports whether the field was sent as null.
func (o optionalTime) cleared() bool { return o.Set && o.Value == nil }

func (h *Handler) listPromotions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.promotions.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	out := make([]promotionResponse, len(ps))
	for i := range ps {
		out[i] = toPromotionResponse(&ps[i])
	}
	okList(r.Context(), w, out)
}

func (h *Handler) getPromotion(w http.ResponseWriter, r *http.Request) {
	p, err := h.promotions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "", toPromotionResponse(p))
}

func (h *Handler) createPromotion(w http.ResponseWriter, r *http.Request) {
	var req createPromotionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p, err := h.promotions.Create(r.Context(), promotion.CreateRequest{
		Name:       req.Name,
		Discount:   req.Discount,
		ProductIDs: req.ProductIDs,
		Active:     active,
		ValidFrom:  req.ValidFrom,
		ValidUntil: req.ValidUntil,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusCreated, "promotion created", toPromotionResponse(p))
}

func (h *Handler) updatePromotion(w http.ResponseWriter, r *http.Request) {
	var req updatePromotionRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	p, err := h.promotions.Update(r.Context(), mux.Vars(r)["id"], promotion.UpdateRequest{
		Name:            req.Name,
		Discount:        req.Discount,
		ProductIDs:      req.ProductIDs,
		Active:          req.Active,
		ValidFrom:       req.ValidFrom.Value,
		ValidUntil:      req.ValidUntil.Value,
		ClearValidFrom:  req.ValidFrom.cleared(),
		ClearValidUntil: req.ValidUntil.cleared(),
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "promotion updated", toPromotionResponse(p))
}

func (h *Handler) deletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := h.promotions.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "promotion deleted", nil)
}
