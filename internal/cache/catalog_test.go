package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artelab/backoffice/internal/domain/product"
)

func newTestCatalog(t *testing.T) (*Catalog, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewCatalog(rdb, "", time.Minute), mr
}

func sampleProducts() []product.Product {
	now := time.Date(2025, 5, 4, 10, 30, 0, 0, time.UTC)
	return []product.Product{
		{
			ID:         "p1",
			Name:       "Ceramic mug",
			Price:      decimal.RequireFromString("12.50"),
			Stock:      4,
			CategoryID: "kitchen",
			Image: product.Image{
				URL:          "http://cdn/products/p1.png",
				Key:          "products/p1.png",
				ThumbnailURL: "http://cdn/products/p1_thumb.jpg",
				ThumbnailKey: "products/p1_thumb.jpg",
			},
			CreatedAt: now,
			UpdatedAt: now,
		},
		{ID: "p2", Name: "Tea towel", Price: decimal.RequireFromString("4"), CategoryID: "kitchen", CreatedAt: now, UpdatedAt: now},
	}
}

func TestCatalogMiss(t *testing.T) {
	c, _ := newTestCatalog(t)

	gen, err := c.Generation(context.Background())
	require.NoError(t, err)
	assert.Zero(t, gen)

	got, ok, err := c.GetList(context.Background(), gen, "all")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCatalogSetGet(t *testing.T) {
	c, mr := newTestCatalog(t)
	ctx := context.Background()
	in := sampleProducts()

	require.NoError(t, c.SetList(ctx, 0, "category:kitchen", in))
	assert.True(t, mr.Exists(defaultPrefix+"list:0:category:kitchen"))
	assert.Equal(t, time.Minute, mr.TTL(defaultPrefix+"list:0:category:kitchen"))

	got, ok, err := c.GetList(ctx, 0, "category:kitchen")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, in[0].Image, got[0].Image)
	assert.True(t, in[0].Price.Equal(got[0].Price))
	assert.True(t, in[0].CreatedAt.Equal(got[0].CreatedAt))
	assert.Equal(t, in[1].ID, got[1].ID)
}

func TestCatalogEmptyList(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.SetList(ctx, 0, "category:none", nil))

	got, ok, err := c.GetList(ctx, 0, "category:none")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestCatalogInvalidate(t *testing.T) {
	c, mr := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, c.SetList(ctx, 0, "all", sampleProducts()))
	require.NoError(t, c.SetList(ctx, 0, "category:kitchen", sampleProducts()))
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.Invalidate(ctx))

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	_, ok, err := c.GetList(ctx, gen, "all")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = c.GetList(ctx, gen, "category:kitchen")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(defaultPrefix+"list:0:all"))
	assert.True(t, mr.Exists("unrelated"))
}

func TestCatalogLateWriteForOldGeneration(t *testing.T) {
	c, _ := newTestCatalog(t)
	ctx := context.Background()

	// A reader observed generation 0 and loaded before the write below.
	gen, err := c.Generation(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.SetList(ctx, gen, "all", sampleProducts()))

	current, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NotEqual(t, gen, current)

	_, ok, err := c.GetList(ctx, current, "all")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetList(ctx, current, "all", sampleProducts()[:1]))
	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.GetList(ctx, current, "all")
	require.NoError(t, err)
	assert.False(t, ok, "listings of older generations are dropped")
}

func TestCatalogCorruptEntry(t *testing.T) {
	c, mr := newTestCatalog(t)
	require.NoError(t, mr.Set(defaultPrefix+"list:0:all", "{not json"))

	_, _, err := c.GetList(context.Background(), 0, "all")
	require.Error(t, err)
}
