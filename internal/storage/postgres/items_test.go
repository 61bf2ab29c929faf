package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artelab/backoffice/internal/domain/order"
)

func TestEncodeItems(t *testing.T) {
	data := encodeItems([]order.Item{
		{ProductID: "vase", Quantity: 2, UnitPrice: decimal.RequireFromString("19.90")},
		{ProductID: "bowl", Quantity: 1, UnitPrice: decimal.RequireFromString("5")},
	})

	assert.JSONEq(t, `[
		{"product_id":"vase","quantity":2,"unit_price":"19.9"},
		{"product_id":"bowl","quantity":1,"unit_price":"5"}
	]`, string(data))
}

func TestDecodeItems(t *testing.T) {
	items, err := decodeItems([]byte(`[
		{"product_id":"vase","quantity":2,"unit_price":"19.90","legacy":true},
		{"unit_price":12.345,"quantity":3,"product_id":"mug"}
	]`))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "vase", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.True(t, decimal.RequireFromString("19.90").Equal(items[0].UnitPrice))
	assert.Equal(t, "mug", items[1].ProductID)
	assert.True(t, decimal.RequireFromString("12.345").Equal(items[1].UnitPrice))
}

func TestDecodeItems_Empty(t *testing.T) {
	items, err := decodeItems([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDecodeItems_Invalid(t *testing.T) {
	for _, in := range []string{`{}`, `[{"unit_price":true}]`, `[{"quantity":"x"}]`, `[`} {
		_, err := decodeItems([]byte(in))
		assert.Error(t, err, in)
	}
}
