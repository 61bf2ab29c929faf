package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/artelab/backoffice/internal/domain/product"
)

type productResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	CategoryID   string          `json:"category_id"`
	ImageURL     string          `json:"image_url,omitempty"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		Stock:        p.Stock,
		CategoryID:   p.CategoryID,
		ImageURL:     p.Image.URL,
		ThumbnailURL: p.Image.ThumbnailURL,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toProductResponses(ps []product.Product) []productResponse {
	out := make([]productResponse, len(ps))
	for i := range ps {
		out[i] = toProductResponse(&ps[i])
	}
	return out
}

type createProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=4000"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	CategoryID  string          `json:"category_id" validate:"required"`
}

type updateProductRequest struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=4000"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0"`
	CategoryID  *string          `json:"category_id" validate:"omitempty,min=1"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.products.List(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	okList(r.Context(), w, toProductResponses(ps))
}

func (h *Handler) listCategoryProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.products.ListByCategory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	okList(r.Context(), w, toProductResponses(ps))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "", toProductResponse(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	p, err := h.products.Create(r.Context(), product.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusCreated, "product created", toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := h.decode(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	p, err := h.products.Update(r.Context(), mux.Vars(r)["id"], product.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "product updated", toProductResponse(p))
}

func (h *Handler) uploadProductImage(w http.ResponseWriter, r *http.Request) {
	up, closeFn, err := h.formFile(w, r, "file")
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	defer closeFn()

	p, err := h.products.AttachImage(r.Context(), mux.Vars(r)["id"], up)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "image uploaded", toProductResponse(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	ok(r.Context(), w, http.StatusOK, "product deleted", nil)
}
