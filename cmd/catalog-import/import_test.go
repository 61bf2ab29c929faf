package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/domain/product"
)

type memorySink struct {
	mu       sync.Mutex
	products map[string]product.Product
	err      error
}

func (s *memorySink) Upsert(_ context.Context, p *product.Product) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.products == nil {
		s.products = make(map[string]product.Product)
	}
	s.products[p.ID] = *p
	return nil
}

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestParseProduct(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		line    string
		price   string
		wantErr bool
	}{
		{name: "string price", line: `{"id":"p1","name":"Mug","price":"12.50","stock":3,"category_id":"ceramics"}`, price: "12.5"},
		{name: "number price", line: `{"id":"p1","name":"Mug","price":7.25}`, price: "7.25"},
		{name: "unknown fields skipped", line: `{"id":"p1","name":"Mug","price":"1","tags":["a",{"b":1}]}`, price: "1"},
		{name: "missing id", line: `{"name":"Mug","price":"1"}`, wantErr: true},
		{name: "missing name", line: `{"id":"p1","price":"1"}`, wantErr: true},
		{name: "negative price", line: `{"id":"p1","name":"Mug","price":"-1"}`, wantErr: true},
		{name: "sub-cent price", line: `{"id":"p1","name":"Mug","price":"12.345"}`, wantErr: true},
		{name: "negative stock", line: `{"id":"p1","name":"Mug","price":"1","stock":-2}`, wantErr: true},
		{name: "bad price", line: `{"id":"p1","name":"Mug","price":"abc"}`, wantErr: true},
		{name: "not json", line: `p1,Mug,1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseProduct([]byte(tt.line), now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "p1", p.ID)
			assert.Equal(t, "Mug", p.Name)
			assert.True(t, decimal.RequireFromString(tt.price).Equal(p.Price))
			assert.Equal(t, now, p.CreatedAt)
		})
	}
}

func TestDedupe(t *testing.T) {
	d := newDedupe(1000, 0.01)
	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))
	assert.False(t, d.Seen("b"))

	// A saturated filter answers "maybe" for everything; the exact set decides.
	tiny := newDedupe(1, 0.5)
	for i := range 200 {
		assert.False(t, tiny.Seen(fmt.Sprintf("id-%d", i)))
	}
	assert.True(t, tiny.Seen("id-7"))
}

func TestImportFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.ndjson.gz",
			`{"id":"p1","name":"Mug","price":"12.00"}`,
			`{"id":"p2","name":"Bowl","price":"18.50"}`,
			``,
			`{"id":"p3","name":"","price":"1"}`,
		),
		writeGz(t, dir, "b.ndjson.gz",
			`{"id":"p2","name":"Bowl","price":"18.50"}`,
			`{"id":"p4","name":"Vase","price":"34.90","stock":4}`,
		),
	}

	sink := &memorySink{}
	stats, err := importFiles(context.Background(), zap.NewNop(), files, newDedupe(1000, 0.001), sink)
	require.NoError(t, err)

	assert.Equal(t, Stats{Lines: 5, Written: 3, Duplicates: 1}, stats)
	assert.Len(t, sink.products, 3)
	assert.Equal(t, 4, sink.products["p4"].Stock)
}

func TestImportFilesSkipsSeeded(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeGz(t, dir, "a.ndjson.gz",
		`{"id":"existing","name":"Mug","price":"12.00"}`,
		`{"id":"fresh","name":"Bowl","price":"18.50"}`,
	)}

	seen := newDedupe(1000, 0.001)
	seen.Seen("existing")

	sink := &memorySink{}
	stats, err := importFiles(context.Background(), zap.NewNop(), files, seen, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Written)
	assert.Contains(t, sink.products, "fresh")
}

func TestImportFilesErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeGz(t, dir, "a.ndjson.gz", `{"id":"p1","name":"Mug","price":"1"}`)

	t.Run("sink failure", func(t *testing.T) {
		sink := &memorySink{err: errors.New("db down")}
		_, err := importFiles(context.Background(), zap.NewNop(), []string{good}, newDedupe(10, 0.01), sink)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})

	t.Run("not gzip", func(t *testing.T) {
		plain := filepath.Join(dir, "plain.ndjson.gz")
		require.NoError(t, os.WriteFile(plain, []byte(`{"id":"p1"}`), 0o600))
		_, err := importFiles(context.Background(), zap.NewNop(), []string{plain}, newDedupe(10, 0.01), &memorySink{})
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := importFiles(context.Background(), zap.NewNop(), []string{filepath.Join(dir, "nope.gz")}, newDedupe(10, 0.01), &memorySink{})
		require.Error(t, err)
	})
}
