package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artelab/backoffice/internal/domain/auth"
	"github.com/artelab/backoffice/internal/domain/order"
	"github.com/artelab/backoffice/internal/domain/pricing"
	"github.com/artelab/backoffice/internal/domain/product"
	"github.com/artelab/backoffice/internal/domain/profile"
	"github.com/artelab/backoffice/internal/domain/promotion"
	"github.com/artelab/backoffice/internal/media"
)

var pepper = []byte("test-pepper")

// Mock implementations

type keyStore struct {
	byHash map[string]*auth.APIKeyInfo
}

func newKeyStore(keys map[string]auth.APIKeyInfo) *keyStore {
	s := &keyStore{byHash: make(map[string]*auth.APIKeyInfo)}
	for raw, info := range keys {
		info.KeyHash = auth.HashKey(pepper, raw)
		s.byHash[info.KeyHash] = &info
	}
	return s
}

func (s *keyStore) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	k, ok := s.byHash[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return k, nil
}

type mockProducts struct {
	list      []product.Product
	err       error
	created   *product.CreateRequest
	uploaded  *media.Upload
	uploadRaw []byte
}

func (m *mockProducts) List(context.Context) ([]product.Product, error) { return m.list, m.err }

func (m *mockProducts) ListByCategory(_ context.Context, categoryID string) ([]product.Product, error) {
	var out []product.Product
	for _, p := range m.list {
		if p.CategoryID == categoryID {
			out = append(out, p)
		}
	}
	return out, m.err
}

func (m *mockProducts) Get(_ context.Context, id string) (*product.Product, error) {
	for i := range m.list {
		if m.list[i].ID == id {
			return &m.list[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProducts) Create(_ context.Context, req product.CreateRequest) (*product.Product, error) {
	m.created = &req
	return &product.Product{ID: "new", Name: req.Name, Price: req.Price, CategoryID: req.CategoryID}, nil
}

func (m *mockProducts) Update(_ context.Context, id string, _ product.UpdateRequest) (*product.Product, error) {
	return m.Get(context.Background(), id)
}

func (m *mockProducts) AttachImage(_ context.Context, id string, up media.Upload) (*product.Product, error) {
	m.uploaded = &up
	data, err := io.ReadAll(up.Body)
	if err != nil {
		return nil, err
	}
	m.uploadRaw = data
	p, err := m.Get(context.Background(), id)
	if err != nil {
		return nil, err
	}
	p.Image = product.Image{URL: "http://cdn/" + up.Filename}
	return p, nil
}

func (m *mockProducts) Delete(context.Context, string) error { return m.err }

type mockPromotions struct {
	updated *promotion.UpdateRequest
}

func (*mockPromotions) List(context.Context) ([]promotion.Promotion, error) {
	return []promotion.Promotion{{ID: "promo", Discount: decimal.NewFromInt(10), Active: true}}, nil
}
func (*mockPromotions) Get(context.Context, string) (*promotion.Promotion, error) {
	return nil, promotion.ErrNotFound
}
func (*mockPromotions) Create(_ context.Context, req promotion.CreateRequest) (*promotion.Promotion, error) {
	if req.Discount.GreaterThan(decimal.NewFromInt(100)) {
		return nil, promotion.ErrInvalidDiscount
	}
	return &promotion.Promotion{ID: "promo", Name: req.Name, Discount: req.Discount, Active: req.Active}, nil
}
func (m *mockPromotions) Update(_ context.Context, id string, req promotion.UpdateRequest) (*promotion.Promotion, error) {
	if id != "promo" {
		return nil, promotion.ErrNotFound
	}
	m.updated = &req
	return &promotion.Promotion{ID: id, ValidFrom: req.ValidFrom, ValidUntil: req.ValidUntil}, nil
}
func (*mockPromotions) Delete(context.Context, string) error { return nil }

type mockProfiles struct {
	avatar []byte
}

func (m *mockProfiles) ByUserID(_ context.Context, userID string) (*profile.Profile, error) {
	if userID != "u-customer" {
		return nil, profile.ErrNotFound
	}
	return &profile.Profile{ID: "prof-1", UserID: userID, Name: "Ada"}, nil
}
func (m *mockProfiles) List(context.Context) ([]profile.Profile, error) { return nil, nil }
func (m *mockProfiles) Update(_ context.Context, userID string, req profile.UpdateRequest) (*profile.Profile, error) {
	p := &profile.Profile{UserID: userID}
	if req.Email != nil {
		p.Email = *req.Email
	}
	return p, nil
}
func (m *mockProfiles) UploadAvatar(_ context.Context, userID string, up media.Upload) (*profile.Profile, error) {
	data, err := io.ReadAll(up.Body)
	if err != nil {
		return nil, err
	}
	m.avatar = data
	return &profile.Profile{UserID: userID, AvatarURL: "http://cdn/avatars/" + up.Filename}, nil
}

type mockOrders struct {
	actor   auth.Identity
	req     order.CreateRequest
	err     error
	updated order.UpdateRequest
}

func (m *mockOrders) Create(_ context.Context, actor auth.Identity, req order.CreateRequest) (*order.Order, error) {
	m.actor, m.req = actor, req
	if m.err != nil {
		return nil, m.err
	}
	return &order.Order{
		ID:         "ord-1",
		CustomerID: "cust-1",
		Items:      []order.Item{{ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")}},
		Subtotal:   decimal.RequireFromString("20.00"),
		Discounts:  decimal.RequireFromString("5.00"),
		Total:      decimal.RequireFromString("15.00"),
		Status:     order.StatusPending,
		CreatedAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}
func (m *mockOrders) GetFor(_ context.Context, actor auth.Identity, _ string) (*order.Order, error) {
	if actor.Role == auth.RoleCustomer {
		return nil, auth.ErrForbidden
	}
	return &order.Order{ID: "ord-1"}, nil
}
func (m *mockOrders) List(context.Context) ([]order.Order, error) { return []order.Order{{ID: "a"}, {ID: "b"}}, nil }
func (m *mockOrders) ListByCustomer(context.Context, string) ([]order.Order, error) {
	return nil, nil
}
func (m *mockOrders) ListMine(_ context.Context, actor auth.Identity) ([]order.Order, error) {
	m.actor = actor
	return []order.Order{{ID: "mine"}}, nil
}
func (m *mockOrders) Update(_ context.Context, _ string, req order.UpdateRequest) (*order.Order, error) {
	m.updated = req
	if req.Status != nil && *req.Status == order.StatusDelivered {
		return nil, &order.InvalidTransitionError{From: order.StatusPending, To: order.StatusDelivered}
	}
	return &order.Order{ID: "ord-1"}, nil
}
func (m *mockOrders) Delete(context.Context, string) error { return order.ErrNotFound }

// Test fixture

type fixture struct {
	router   *mux.Router
	products   *mockProducts
	promotions *mockPromotions
	profiles   *mockProfiles
	orders   *mockOrders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	keys := newKeyStore(map[string]auth.APIKeyInfo{
		"admin-key":    {ID: "k1", UserID: "u-admin", Role: auth.RoleAdmin, Active: true},
		"seller-key":   {ID: "k2", UserID: "u-seller", Role: auth.RoleSeller, Active: true},
		"customer-key": {ID: "k3", UserID: "u-customer", Role: auth.RoleCustomer, Active: true},
		"revoked-key":  {ID: "k4", UserID: "u-old", Role: auth.RoleAdmin, Active: false},
	})
	f := &fixture{
		router: mux.NewRouter(),
		products: &mockProducts{list: []product.Product{
			{ID: "p1", Name: "Mug", Price: decimal.RequireFromString("12.50"), CategoryID: "kitchen"},
			{ID: "p2", Name: "Lamp", Price: decimal.RequireFromString("40"), CategoryID: "living"},
		}},
		promotions: &mockPromotions{},
		profiles:   &mockProfiles{},
		orders:     &mockOrders{},
	}
	h := New(Config{APIKeyPepper: pepper, MaxUploadBytes: 1 << 20}, keys, f.products, f.promotions, f.profiles, f.orders)
	h.Register(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path, key string, body any) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()

	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	if key != "" {
		req.Header.Set(HeaderAPIKey, key)
	}
	return f.serve(t, req)
}

func (f *fixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelopeBody
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

type envelopeBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Total   *int            `json:"total"`
}

// Tests

func TestListProductsIsPublic(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodGet, "/api/products", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Total)
	assert.Equal(t, 2, *env.Total)

	var products []productResponse
	require.NoError(t, json.Unmarshal(env.Data, &products))
	assert.Equal(t, "p1", products[0].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("12.5")))
}

func TestListCategoryProductsEmpty(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodGet, "/api/categories/garden/products", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))
	assert.Equal(t, 0, *env.Total)
}

func TestGetProductNotFound(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodGet, "/api/products/missing", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, product.ErrNotFound.Error(), env.Message)
}

func TestRouteGuards(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		key    string
		body   any
		want   int
	}{
		{"no key", http.MethodPost, "/api/products", "", nil, http.StatusUnauthorized},
		{"unknown key", http.MethodPost, "/api/products", "nope", nil, http.StatusUnauthorized},
		{"revoked key", http.MethodGet, "/api/orders", "revoked-key", nil, http.StatusUnauthorized},
		{"customer creates product", http.MethodPost, "/api/products", "customer-key", map[string]any{"name": "x", "price": "1", "category_id": "c"}, http.StatusForbidden},
		{"seller creates product", http.MethodPost, "/api/products", "seller-key", map[string]any{"name": "x", "price": "1", "category_id": "c"}, http.StatusCreated},
		{"seller deletes product", http.MethodDelete, "/api/products/p1", "seller-key", nil, http.StatusForbidden},
		{"admin deletes product", http.MethodDelete, "/api/products/p1", "admin-key", nil, http.StatusOK},
		{"seller lists promotions", http.MethodGet, "/api/promotions", "seller-key", nil, http.StatusOK},
		{"seller creates promotion", http.MethodPost, "/api/promotions", "seller-key", map[string]any{"name": "x", "discount": 5}, http.StatusForbidden},
		{"customer lists profiles", http.MethodGet, "/api/profiles", "customer-key", nil, http.StatusForbidden},
		{"admin lists orders", http.MethodGet, "/api/orders", "admin-key", nil, http.StatusOK},
		{"customer lists all orders", http.MethodGet, "/api/orders", "customer-key", nil, http.StatusForbidden},
		{"admin reads own profile", http.MethodGet, "/api/profile/me", "admin-key", nil, http.StatusForbidden},
		{"customer reads own profile", http.MethodGet, "/api/profile/me", "customer-key", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w, _ := f.do(t, tt.method, tt.path, tt.key, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestBearerToken(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/mine", nil)
	req.Header.Set("Authorization", "Bearer customer-key")
	w, env := f.serve(t, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *env.Total)
	assert.Equal(t, "u-customer", f.orders.actor.UserID)
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodPost, "/api/orders", "customer-key", map[string]any{
		"items":            []map[string]any{{"product_id": "p1", "quantity": 2}},
		"delivery_address": "Via Roma 1",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "order created", env.Message)
	assert.Equal(t, auth.Identity{KeyID: "k3", UserID: "u-customer", Role: auth.RoleCustomer}, f.orders.actor)
	assert.Equal(t, []order.LineItem{{ProductID: "p1", Quantity: 2}}, f.orders.req.Items)

	var got orderResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.Total.Equal(decimal.NewFromInt(15)))
	assert.True(t, got.Items[0].LineTotal.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, order.StatusPending, got.Status)
}

func TestCreateOrderErrors(t *testing.T) {
	validBody := map[string]any{"items": []map[string]any{{"product_id": "p1", "quantity": 1}}}

	tests := []struct {
		name    string
		body    any
		err     error
		want    int
		message string
	}{
		{"malformed json", "{", nil, http.StatusBadRequest, "invalid request body"},
		{"unknown field", `{"items":[{"product_id":"p1","quantity":1}],"coupon":"X"}`, nil, http.StatusBadRequest, "invalid request body"},
		{"no items", map[string]any{"items": []any{}}, nil, http.StatusBadRequest, "Items must be at least 1"},
		{"invalid quantity", validBody, &order.InvalidQuantityError{ProductID: "p1"}, http.StatusBadRequest, "quantity must be greater than 0 for product p1"},
		{"unknown product", validBody, &pricing.ProductNotFoundError{ProductID: "zz"}, http.StatusUnprocessableEntity, ""},
		{"foreign customer", validBody, order.ErrForbiddenCustomer, http.StatusForbidden, order.ErrForbiddenCustomer.Error()},
		{"missing profile", validBody, profile.ErrNotFound, http.StatusNotFound, profile.ErrNotFound.Error()},
		{"storage failure", validBody, errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.orders.err = tt.err

			w, env := f.do(t, http.MethodPost, "/api/orders", "customer-key", tt.body)

			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.False(t, env.Success)
			if tt.message != "" {
				assert.Equal(t, tt.message, env.Message)
			}
		})
	}
}

func TestGetOrderForeignCustomer(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodGet, "/api/orders/ord-9", "customer-key", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = f.do(t, http.MethodGet, "/api/orders/ord-9", "seller-key", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateOrder(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPut, "/api/orders/ord-1", "admin-key", map[string]any{"status": "confirmed", "total": "9.99"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, f.orders.updated.Status)
	assert.Equal(t, order.StatusConfirmed, *f.orders.updated.Status)
	assert.True(t, f.orders.updated.Total.Equal(decimal.RequireFromString("9.99")))

	w, _ = f.do(t, http.MethodPut, "/api/orders/ord-1", "admin-key", map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/orders/ord-1", "admin-key", map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodDelete, "/api/orders/ord-1", "admin-key", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePromotion(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodPost, "/api/promotions", "admin-key", map[string]any{"name": "Spring", "discount": "15"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var got promotionResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.True(t, got.Active, "promotions are active unless disabled")
	assert.Equal(t, []string{}, got.ProductIDs)

	w, _ = f.do(t, http.MethodPost, "/api/promotions", "admin-key", map[string]any{"name": "Too much", "discount": "150"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdatePromotionValidityWindow(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		clearFrom  bool
		clearUntil bool
		setUntil   bool
	}{
		{name: "absent fields unchanged", body: `{"name":"Spring"}`},
		{name: "null clears", body: `{"valid_from":null,"valid_until":null}`, clearFrom: true, clearUntil: true},
		{name: "value sets", body: `{"valid_until":"2026-06-30T00:00:00Z"}`, setUntil: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			w, _ := f.do(t, http.MethodPut, "/api/promotions/promo", "admin-key", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			req := f.promotions.updated
			require.NotNil(t, req)
			assert.Equal(t, tt.clearFrom, req.ClearValidFrom)
			assert.Equal(t, tt.clearUntil, req.ClearValidUntil)
			assert.Nil(t, req.ValidFrom)
			assert.Equal(t, tt.setUntil, req.ValidUntil != nil)
		})
	}

	f := newFixture(t)
	w, _ := f.do(t, http.MethodPut, "/api/promotions/promo", "admin-key", `{"valid_until":"tomorrow"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProfileValidation(t *testing.T) {
	f := newFixture(t)

	w, env := f.do(t, http.MethodPut, "/api/profile/me", "customer-key", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email must be a valid email", env.Message)

	w, _ = f.do(t, http.MethodPut, "/api/profile/me", "customer-key", map[string]any{"email": "ada@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func multipartRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAvatar(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/api/profile/me/avatar", "image", "me.png", []byte("png-bytes"))
	req.Header.Set(HeaderAPIKey, "customer-key")
	w, env := f.serve(t, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []byte("png-bytes"), f.profiles.avatar)

	var got profileResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "http://cdn/avatars/me.png", got.AvatarURL)
}

func TestUploadProductImage(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/api/products/p1/image", "file", "mug.jpg", []byte("jpeg-bytes"))
	req.Header.Set(HeaderAPIKey, "seller-key")
	w, _ := f.serve(t, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "mug.jpg", f.products.uploaded.Filename)
	assert.Equal(t, []byte("jpeg-bytes"), f.products.uploadRaw)

	req = multipartRequest(t, "/api/products/p1/image", "", "", nil)
	req.Header.Set(HeaderAPIKey, "seller-key")
	w, env := f.serve(t, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "file is required", env.Message)
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/api/profile/me/avatar", "image", "big.png", bytes.Repeat([]byte{1}, 3<<20))
	req.Header.Set(HeaderAPIKey, "customer-key")
	w, _ := f.serve(t, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.Wrap(product.ErrNotFound, "get"), http.StatusNotFound},
		{&pricing.ProductNotFoundError{ProductID: "p"}, http.StatusUnprocessableEntity},
		{promotion.ErrInvalidWindow, http.StatusBadRequest},
		{media.ErrNotImage, http.StatusBadRequest},
		{media.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{auth.ErrUnauthorized, http.StatusUnauthorized},
		{errors.Wrap(auth.ErrForbidden, "order"), http.StatusForbidden},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}
