// Package handler exposes the back-office services over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/artelab/backoffice/internal/domain/auth"
	"github.com/artelab/backoffice/internal/domain/order"
	"github.com/artelab/backoffice/internal/domain/product"
	"github.com/artelab/backoffice/internal/domain/profile"
	"github.com/artelab/backoffice/internal/domain/promotion"
	"github.com/artelab/backoffice/internal/media"
)

// Products is the catalog service used by the handlers.
type Products interface {
	List(ctx context.Context) ([]product.Product, error)
	ListByCategory(ctx context.Context, categoryID string) ([]product.Product, error)
	Get(ctx context.Context, id string) (*product.Product, error)
	Create(ctx context.Context, req product.CreateRequest) (*product.Product, error)
	Update(ctx context.Context, id string, req product.UpdateRequest) (*product.Product, error)
	AttachImage(ctx context.Context, id string, up media.Upload) (*product.Product, error)
	Delete(ctx context.Context, id string) error
}

// Promotions is the promotion service used by the handlers.
type Promotions interface {
	List(ctx context.Context) ([]promotion.Promotion, error)
	Get(ctx context.Context, id string) (*promotion.Promotion, error)
	Create(ctx context.Context, req promotion.CreateRequest) (*promotion.Promotion, error)
	Update(ctx context.Context, id string, req promotion.UpdateRequest) (*promotion.Promotion, error)
	Delete(ctx context.Context, id string) error
}

// Profiles is the profile service used by the handlers.
type Profiles interface {
	ByUserID(ctx context.Context, userID string) (*profile.Profile, error)
	List(ctx context.Context) ([]profile.Profile, error)
	Update(ctx context.Context, userID string, req profile.UpdateRequest) (*profile.Profile, error)
	UploadAvatar(ctx context.Context, userID string, up media.Upload) (*profile.Profile, error)
}

// Orders is the order service used by the handlers.
type Orders interface {
	Create(ctx context.Context, actor auth.Identity, req order.CreateRequest) (*order.Order, error)
	GetFor(ctx context.Context, actor auth.Identity, id string) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	ListByCustomer(ctx context.Context, customerID string) ([]order.Order, error)
	ListMine(ctx context.Context, actor auth.Identity) ([]order.Order, error)
	Update(ctx context.Context, id string, req order.UpdateRequest) (*order.Order, error)
	Delete(ctx context.Context, id string) error
}

// Config holds non-dependency handler settings.
type Config struct {
	// APIKeyPepper is the HMAC key API keys are hashed with.
	APIKeyPepper []byte
	// MaxUploadBytes bounds multipart request bodies.
	MaxUploadBytes int64
}

// Handler serves the /api routes.
type Handler struct {
	keys       auth.Repository
	pepper     []byte
	maxUpload  int64
	validate   *validator.Validate
	products   Products
	promotions Promotions
	profiles   Profiles
	orders     Orders
}

// New constructs a Handler.
func New(
	cfg Config,
	keys auth.Repository,
	products Products,
	promotions Promotions,
	profiles Profiles,
	orders Orders,
) *Handler {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = media.DefaultMaxBytes
	}
	return &Handler{
		keys:       keys,
		pepper:     cfg.APIKeyPepper,
		maxUpload:  maxUpload,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		products:   products,
		promotions: promotions,
		profiles:   profiles,
		orders:     orders,
	}
}

var (
	anyRole   []auth.Role
	staff     = []auth.Role{auth.RoleAdmin, auth.RoleSeller}
	adminOnly = []auth.Role{auth.RoleAdmin}
	customers = []auth.Role{auth.RoleCustomer}
)

// Register mounts the API under /api on r.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	route := func(method, path string, fn http.HandlerFunc) {
		api.HandleFunc(path, fn).Methods(method)
	}
	guarded := func(method, path string, roles []auth.Role, fn http.HandlerFunc) {
		api.Handle(path, h.guard(roles, fn)).Methods(method)
	}

	route(http.MethodGet, "/products", h.listProducts)
	route(http.MethodGet, "/products/{id}", h.getProduct)
	route(http.MethodGet, "/categories/{id}/products", h.listCategoryProducts)
	guarded(http.MethodPost, "/products", staff, h.createProduct)
	guarded(http.MethodPut, "/products/{id}", staff, h.updateProduct)
	guarded(http.MethodPost, "/products/{id}/image", staff, h.uploadProductImage)
	guarded(http.MethodDelete, "/products/{id}", adminOnly, h.deleteProduct)

	guarded(http.MethodGet, "/promotions", staff, h.listPromotions)
	guarded(http.MethodGet, "/promotions/{id}", staff, h.getPromotion)
	guarded(http.MethodPost, "/promotions", adminOnly, h.createPromotion)
	guarded(http.MethodPut, "/promotions/{id}", adminOnly, h.updatePromotion)
	guarded(http.MethodDelete, "/promotions/{id}", adminOnly, h.deletePromotion)

	guarded(http.MethodGet, "/profile/me", customers, h.getMyProfile)
	guarded(http.MethodPut, "/profile/me", customers, h.updateMyProfile)
	guarded(http.MethodPost, "/profile/me/avatar", customers, h.uploadAvatar)
	guarded(http.MethodGet, "/profiles", adminOnly, h.listProfiles)
	guarded(http.MethodGet, "/profiles/{userId}", adminOnly, h.getProfile)

	guarded(http.MethodPost, "/orders", anyRole, h.createOrder)
	guarded(http.MethodGet, "/orders/mine", customers, h.listMyOrders)
	guarded(http.MethodGet, "/orders", adminOnly, h.listOrders)
	guarded(http.MethodGet, "/orders/{id}", anyRole, h.getOrder)
	guarded(http.MethodPut, "/orders/{id}", adminOnly, h.updateOrder)
	guarded(http.MethodDelete, "/orders/{id}", adminOnly, h.deleteOrder)
	guarded(http.MethodGet, "/customers/{id}/orders", adminOnly, h.listCustomerOrders)
}
