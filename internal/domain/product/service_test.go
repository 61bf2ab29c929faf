package product

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artelab/backoffice/internal/media"
)

// --- Mock implementations ---

type mockRepo struct {
	byID      map[string]*Product
	listCalls int
	updateErr error
	deleted   []string
}

func newMockRepo(products ...Product) *mockRepo {
	m := &mockRepo{byID: map[string]*Product{}}
	for i := range products {
		m.byID[products[i].ID] = &products[i]
	}
	return m
}

func (m *mockRepo) List(_ context.Context) ([]Product, error) {
	m.listCalls++
	out := make([]Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockRepo) ListByCategory(_ context.Context, categoryID string) ([]Product, error) {
	m.listCalls++
	var out []Product
	for _, p := range m.byID {
		if p.CategoryID == categoryID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByIDs(_ context.Context, _ []string) ([]Product, error) {
	return nil, nil
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	m.byID[p.ID] = p
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Product) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.byID[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockImages struct {
	uploadErr error
	deleted   []string
}

func (m *mockImages) UploadImage(_ context.Context, prefix string, up media.Upload) (*media.Image, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	return &media.Image{
		Key:          prefix + "/" + up.Filename,
		URL:          "https://cdn.test/" + prefix + "/" + up.Filename,
		ThumbnailKey: prefix + "/thumb_" + up.Filename,
		ThumbnailURL: "https://cdn.test/" + prefix + "/thumb_" + up.Filename,
	}, nil
}

func (m *mockImages) DeleteImage(_ context.Context, keys ...string) error {
	m.deleted = append(m.deleted, keys...)
	return nil
}

type mockCache struct {
	lists       map[string][]Product
	gen         int64
	genErr      error
	invalidated int
}

func (m *mockCache) entry(gen int64, key string) string {
	return fmt.Sprintf("%d:%s", gen, key)
}

func (m *mockCache) Generation(context.Context) (int64, error) {
	return m.gen, m.genErr
}

func (m *mockCache) GetList(_ context.Context, gen int64, key string) ([]Product, bool, error) {
	ps, ok := m.lists[m.entry(gen, key)]
	return ps, ok, nil
}

func (m *mockCache) SetList(_ context.Context, gen int64, key string, ps []Product) error {
	m.lists[m.entry(gen, key)] = ps
	return nil
}

func (m *mockCache) Invalidate(_ context.Context) error {
	m.invalidated++
	m.gen++
	return nil
}

// racingRepo runs a write after the listing has been read from the
// database, imitating a concurrent update.
type racingRepo struct {
	*mockRepo
	onList func()
}

func (r *racingRepo) List(ctx context.Context) ([]Product, error) {
	ps, err := r.mockRepo.List(ctx)
	if r.onList != nil {
		f := r.onList
		r.onList = nil
		f()
	}
	return ps, err
}

func testProduct(id string, price string) Product {
	return Product{
		ID:         id,
		Name:       "Product " + id,
		Price:      decimal.RequireFromString(price),
		Stock:      5,
		CategoryID: "ceramics",
	}
}

// --- Tests ---

func TestCreate(t *testing.T) {
	repo := newMockRepo()
	cache := &mockCache{lists: map[string][]Product{}}
	svc := NewService(repo, &mockImages{}, cache)

	p, err := svc.Create(context.Background(), CreateRequest{
		Name:       "Vase",
		Price:      decimal.RequireFromString("19.90"),
		Stock:      3,
		CategoryID: "ceramics",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Contains(t, repo.byID, p.ID)
	assert.Equal(t, 1, cache.invalidated)
}

func TestCreate_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), &mockImages{}, nil)

	_, err := svc.Create(context.Background(), CreateRequest{Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.Create(context.Background(), CreateRequest{Price: decimal.RequireFromString("12.345")})
	require.ErrorIs(t, err, ErrPriceScale)

	_, err = svc.Create(context.Background(), CreateRequest{Price: decimal.NewFromInt(1), Stock: -2})
	require.ErrorIs(t, err, ErrInvalidStock)
}

func TestValidatePrice(t *testing.T) {
	tests := []struct {
		price string
		want  error
	}{
		{price: "0"},
		{price: "12"},
		{price: "12.5"},
		{price: "12.50"},
		{price: "12.500"},
		{price: "0.333", want: ErrPriceScale},
		{price: "12.345", want: ErrPriceScale},
		{price: "-0.01", want: ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			err := ValidatePrice(decimal.RequireFromString(tt.price))
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestList_UsesCache(t *testing.T) {
	repo := newMockRepo(testProduct("p1", "10"))
	cache := &mockCache{lists: map[string][]Product{}}
	svc := NewService(repo, &mockImages{}, cache)

	first, err := svc.List(context.Background())
	require.NoError(t, err)
	second, err := svc.List(context.Background())
	require.NoError(t, err)

	assert.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.listCalls)

	_, err = svc.ListByCategory(context.Background(), "ceramics")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestList_WriteDuringLoadIsNotCached(t *testing.T) {
	base := newMockRepo(testProduct("p1", "10"))
	repo := &racingRepo{mockRepo: base}
	cache := &mockCache{lists: map[string][]Product{}}
	svc := NewService(repo, &mockImages{}, cache)

	price := decimal.RequireFromString("12")
	repo.onList = func() {
		_, err := svc.Update(context.Background(), "p1", UpdateRequest{Price: &price})
		require.NoError(t, err)
	}

	stale, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.True(t, decimal.RequireFromString("10").Equal(stale[0].Price))

	fresh, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.True(t, price.Equal(fresh[0].Price), "got %s", fresh[0].Price)
	assert.Equal(t, 2, base.listCalls)
}

func TestList_GenerationErrorSkipsCache(t *testing.T) {
	repo := newMockRepo(testProduct("p1", "10"))
	cache := &mockCache{lists: map[string][]Product{}, genErr: errors.New("redis down")}
	svc := NewService(repo, &mockImages{}, cache)

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Empty(t, cache.lists)
}

func TestUpdate_Partial(t *testing.T) {
	repo := newMockRepo(testProduct("p1", "10"))
	svc := NewService(repo, &mockImages{}, nil)

	price := decimal.RequireFromString("12.50")
	p, err := svc.Update(context.Background(), "p1", UpdateRequest{Price: &price})
	require.NoError(t, err)

	assert.True(t, price.Equal(p.Price))
	assert.Equal(t, "Product p1", p.Name)
	assert.Equal(t, 5, p.Stock)
}

func TestUpdate_NotFound(t *testing.T) {
	svc := NewService(newMockRepo(), &mockImages{}, nil)

	_, err := svc.Update(context.Background(), "missing", UpdateRequest{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAttachImage_ReplacesPrevious(t *testing.T) {
	p := testProduct("p1", "10")
	p.Image = Image{Key: "products/old.png", ThumbnailKey: "products/thumb_old.png"}
	repo := newMockRepo(p)
	images := &mockImages{}
	svc := NewService(repo, images, nil)

	got, err := svc.AttachImage(context.Background(), "p1", media.Upload{
		Filename: "new.png",
		Body:     strings.NewReader("img"),
	})
	require.NoError(t, err)

	assert.Equal(t, "https://cdn.test/products/new.png", got.Image.URL)
	assert.Equal(t, "https://cdn.test/products/thumb_new.png", got.Image.ThumbnailURL)
	assert.Equal(t, []string{"products/old.png", "products/thumb_old.png"}, images.deleted)
}

func TestAttachImage_UpdateFailureRemovesUpload(t *testing.T) {
	repo := newMockRepo(testProduct("p1", "10"))
	repo.updateErr = errors.New("db down")
	images := &mockImages{}
	svc := NewService(repo, images, nil)

	_, err := svc.AttachImage(context.Background(), "p1", media.Upload{Filename: "new.png"})
	require.Error(t, err)
	assert.Equal(t, []string{"products/new.png", "products/thumb_new.png"}, images.deleted)
}

func TestAttachImage_UploadRejected(t *testing.T) {
	repo := newMockRepo(testProduct("p1", "10"))
	svc := NewService(repo, &mockImages{uploadErr: media.ErrNotImage}, nil)

	_, err := svc.AttachImage(context.Background(), "p1", media.Upload{Filename: "doc.pdf"})
	require.ErrorIs(t, err, media.ErrNotImage)
}

func TestDelete_RemovesImage(t *testing.T) {
	p := testProduct("p1", "10")
	p.Image = Image{Key: "products/a.png", ThumbnailKey: "products/a_thumb.jpg"}
	repo := newMockRepo(p)
	images := &mockImages{}
	svc := NewService(repo, images, nil)

	require.NoError(t, svc.Delete(context.Background(), "p1"))
	assert.Equal(t, []string{"p1"}, repo.deleted)
	assert.Equal(t, []string{"products/a.png", "products/a_thumb.jpg"}, images.deleted)
}

func TestDelete_NotFound(t *testing.T) {
	svc := NewService(newMockRepo(), &mockImages{}, nil)
	require.ErrorIs(t, svc.Delete(context.Background(), "missing"), ErrNotFound)
}

func TestPriceOf(t *testing.T) {
	svc := NewService(newMockRepo(testProduct("p1", "7.25")), &mockImages{}, nil)

	price, err := svc.PriceOf(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("7.25").Equal(price))

	_, err = svc.PriceOf(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
