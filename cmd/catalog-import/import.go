package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/artelab/backoffice/internal/domain/product"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
	maxLineBytes  = 1 << 20
)

// Sink receives imported products.
type Sink interface {
	Upsert(ctx context.Context, p *product.Product) error
}

// Stats counts what an import run did.
type Stats struct {
	Lines      int64
	Written    int64
	Duplicates int64
}

// dedupe tracks product ids across concurrently read files. The bloom filter
// answers the common "never seen" case; positives are confirmed in the exact
// set so false positives never drop a product.
type dedupe struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	exact  map[string]struct{}
}

func newDedupe(capacity uint, fpr float64) *dedupe {
	return &dedupe{
		filter: bloom.NewWithEstimates(capacity, fpr),
		exact:  make(map[string]struct{}),
	}
}

// Seen records id and reports whether it had been recorded before.
func (d *dedupe) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestAndAddString(id) {
		if _, ok := d.exact[id]; ok {
			return true
		}
	}
	d.exact[id] = struct{}{}
	return false
}

// parseProduct decodes one NDJSON line:
//
//	{"id":"p1","name":"Mug","description":"...","price":"12.50","stock":3,"category_id":"ceramics"}
//
// Price may be a JSON string or number.
func parseProduct(line []byte, now time.Time) (product.Product, error) {
	p := product.Product{CreatedAt: now, UpdatedAt: now}
	d := jx.DecodeBytes(line)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			v, err := d.Str()
			p.ID = strings.TrimSpace(v)
			return err
		case "name":
			v, err := d.Str()
			p.Name = v
			return err
		case "description":
			v, err := d.Str()
			p.Description = v
			return err
		case "category_id":
			v, err := d.Str()
			p.CategoryID = v
			return err
		case "stock":
			v, err := d.Int()
			p.Stock = v
			return err
		case "price":
			var raw string
			switch d.Next() {
			case jx.String:
				v, err := d.Str()
				if err != nil {
					return err
				}
				raw = v
			default:
				v, err := d.Num()
				if err != nil {
					return err
				}
				raw = v.String()
			}
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return errors.Wrap(err, "price")
			}
			p.Price = price
			return nil
		default:
			return d.Skip()
		}
	}); err != nil {
		return product.Product{}, err
	}

	switch {
	case p.ID == "":
		return product.Product{}, errors.New("missing id")
	case p.Name == "":
		return product.Product{}, errors.New("missing name")
	case p.Stock < 0:
		return product.Product{}, product.ErrInvalidStock
	}
	if err := product.ValidatePrice(p.Price); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

// importFiles streams every file concurrently and upserts each product id
// once. Invalid lines are logged and skipped.
func importFiles(ctx context.Context, lg *zap.Logger, files []string, seen *dedupe, sink Sink) (Stats, error) {
	var (
		lines, written, dups atomic.Int64
		now                  = time.Now().UTC()
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, path := range files {
		g.Go(func() error {
			flg := lg.With(zap.String("file", path))
			var n int64

			err := streamGzFile(ctx, path, func(lineNo int, line []byte) error {
				if len(line) == 0 {
					return nil
				}
				lines.Add(1)
				n++
				if n%progressEvery == 0 {
					flg.Info("Import progress", zap.Int64("lines", n))
				}

				p, err := parseProduct(line, now)
				if err != nil {
					flg.Warn("Skipping invalid line", zap.Int("line", lineNo), zap.Error(err))
					return nil
				}
				if seen.Seen(p.ID) {
					dups.Add(1)
					return nil
				}
				if err := sink.Upsert(ctx, &p); err != nil {
					return errors.Wrapf(err, "upsert product %s", p.ID)
				}
				written.Add(1)
				return nil
			})
			if err != nil {
				return errors.Wrapf(err, "import %s", path)
			}

			flg.Info("File complete", zap.Int64("lines", n))
			return nil
		})
	}

	err := g.Wait()
	return Stats{Lines: lines.Load(), Written: written.Load(), Duplicates: dups.Load()}, err
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(lineNo int, line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		if err := fn(lineNo, scanner.Bytes()); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
