// Package cache implements the catalog list cache on Redis.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/artelab/backoffice/internal/domain/product"
)

const defaultPrefix = "artelab:catalog:"

var _ product.Cache = (*Catalog)(nil)

// Catalog caches product listings under a key prefix.
type Catalog struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewCatalog returns a Catalog storing entries for ttl. An empty prefix
// selects the default one.
func NewCatalog(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Catalog {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Catalog{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Catalog) genKey() string { return c.prefix + "gen" }

func (c *Catalog) listPrefix() string { return c.prefix + "list:" }

func (c *Catalog) listKey(gen int64, key string) string {
	return c.listPrefix() + strconv.FormatInt(gen, 10) + ":" + key
}

// Generation returns the current listing generation. A missing counter is
// generation zero.
func (c *Catalog) Generation(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, c.genKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading catalog generation: %w", err)
	}
	return gen, nil
}

// GetList returns the listing cached for key in generation gen.
func (c *Catalog) GetList(ctx context.Context, gen int64, key string) ([]product.Product, bool, error) {
	data, err := c.rdb.Get(ctx, c.listKey(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading catalog cache %q: %w", key, err)
	}
	products, err := decodeProducts(data)
	if err != nil {
		return nil, false, err
	}
	return products, true, nil
}

// SetList stores a listing under key in generation gen.
func (c *Catalog) SetList(ctx context.Context, gen int64, key string, products []product.Product) error {
	if err := c.rdb.Set(ctx, c.listKey(gen, key), encodeProducts(products), c.ttl).Err(); err != nil {
		return fmt.Errorf("writing catalog cache %q: %w", key, err)
	}
	return nil
}

// Invalidate starts a new generation and drops listings of older ones.
// Entries written late for an old generation expire with their TTL.
func (c *Catalog) Invalidate(ctx context.Context) error {
	gen, err := c.rdb.Incr(ctx, c.genKey()).Result()
	if err != nil {
		return fmt.Errorf("bumping catalog generation: %w", err)
	}

	current := c.listPrefix() + strconv.FormatInt(gen, 10) + ":"
	iter := c.rdb.Scan(ctx, 0, c.listPrefix()+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		if k := iter.Val(); !strings.HasPrefix(k, current) {
			keys = append(keys, k)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning catalog cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating catalog cache: %w", err)
	}
	return nil
}

func encodeProducts(products []product.Product) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("description")
		e.Str(p.Description)
		e.FieldStart("price")
		e.Str(p.Price.String())
		e.FieldStart("stock")
		e.Int(p.Stock)
		e.FieldStart("category_id")
		e.Str(p.CategoryID)
		e.FieldStart("image_url")
		e.Str(p.Image.URL)
		e.FieldStart("image_key")
		e.Str(p.Image.Key)
		e.FieldStart("thumbnail_url")
		e.Str(p.Image.ThumbnailURL)
		e.FieldStart("thumbnail_key")
		e.Str(p.Image.ThumbnailKey)
		e.FieldStart("created_at")
		e.Str(p.CreatedAt.Format(time.RFC3339Nano))
		e.FieldStart("updated_at")
		e.Str(p.UpdatedAt.Format(time.RFC3339Nano))
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeProducts(data []byte) ([]product.Product, error) {
	products := []product.Product{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				return str(d, &p.ID)
			case "name":
				return str(d, &p.Name)
			case "description":
				return str(d, &p.Description)
			case "price":
				var raw string
				if err := str(d, &raw); err != nil {
					return err
				}
				v, err := decimal.NewFromString(raw)
				p.Price = v
				return err
			case "stock":
				v, err := d.Int()
				p.Stock = v
				return err
			case "category_id":
				return str(d, &p.CategoryID)
			case "image_url":
				return str(d, &p.Image.URL)
			case "image_key":
				return str(d, &p.Image.Key)
			case "thumbnail_url":
				return str(d, &p.Image.ThumbnailURL)
			case "thumbnail_key":
				return str(d, &p.Image.ThumbnailKey)
			case "created_at":
				return timestamp(d, &p.CreatedAt)
			case "updated_at":
				return timestamp(d, &p.UpdatedAt)
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode cached products")
	}
	return products, nil
}

func str(d *jx.Decoder, dst *string) error {
	v, err := d.Str()
	*dst = v
	return err
}

func timestamp(d *jx.Decoder, dst *time.Time) error {
	v, err := d.Str()
	if err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	*dst = t
	return err
}
