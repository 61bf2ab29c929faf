package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artelab/backoffice/internal/domain/auth"
)

func TestDemoDataConsistent(t *testing.T) {
	data := demoData(time.Now())

	products := make(map[string]bool)
	for _, p := range data.products {
		assert.False(t, products[p.ID], "duplicate product %s", p.ID)
		products[p.ID] = true
		assert.True(t, p.Price.IsPositive(), p.ID)
	}

	for _, promo := range data.promotions {
		assert.True(t, promo.Discount.GreaterThanOrEqual(decimal.Zero), promo.ID)
		assert.True(t, promo.Discount.LessThanOrEqual(decimal.NewFromInt(100)), promo.ID)
		for _, id := range promo.ProductIDs {
			assert.True(t, products[id], "promotion %s targets unknown product %s", promo.ID, id)
		}
	}
	for i := 1; i < len(data.promotions); i++ {
		assert.True(t, data.promotions[i-1].CreatedAt.Before(data.promotions[i].CreatedAt))
	}

	roles := make(map[auth.Role]bool)
	for _, k := range data.apiKeys {
		require.True(t, k.Role.Valid())
		roles[k.Role] = true
	}
	assert.Len(t, roles, 3, "one key per role")

	var customerHasProfile bool
	for _, k := range data.apiKeys {
		if k.Role != auth.RoleCustomer {
			continue
		}
		for _, p := range data.profiles {
			customerHasProfile = customerHasProfile || p.UserID == k.UserID
		}
	}
	assert.True(t, customerHasProfile)
}

func TestRandomKey(t *testing.T) {
	a, err := randomKey()
	require.NoError(t, err)
	b, err := randomKey()
	require.NoError(t, err)

	assert.Len(t, a, 48)
	assert.NotEqual(t, a, b)
}
