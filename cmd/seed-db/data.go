package main

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/artelab/backoffice/internal/domain/auth"
	"github.com/artelab/backoffice/internal/domain/product"
	"github.com/artelab/backoffice/internal/domain/profile"
	"github.com/artelab/backoffice/internal/domain/promotion"
)

type seedData struct {
	products   []product.Product
	promotions []promotion.Promotion
	profiles   []profile.Profile
	apiKeys    []auth.APIKeyInfo
}

func demoData(now time.Time) seedData {
	item := func(id, name, category, price string, stock int) product.Product {
		return product.Product{
			ID:         id,
			Name:       name,
			Price:      decimal.RequireFromString(price),
			Stock:      stock,
			CategoryID: category,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	// Creation times are spaced so the promotion order is stable.
	promo := func(id, name, discount string, offset time.Duration, products ...string) promotion.Promotion {
		return promotion.Promotion{
			ID:         id,
			Name:       name,
			Discount:   decimal.RequireFromString(discount),
			ProductIDs: products,
			Active:     true,
			CreatedAt:  now.Add(offset),
			UpdatedAt:  now,
		}
	}

	return seedData{
		products: []product.Product{
			item("vase-terracotta", "Terracotta vase", "ceramics", "34.90", 25),
			item("bowl-glazed", "Glazed bowl", "ceramics", "18.50", 40),
			item("mug-speckled", "Speckled mug", "ceramics", "12.00", 120),
			item("scarf-linen", "Linen scarf", "textiles", "29.00", 30),
			item("cushion-wool", "Wool cushion cover", "textiles", "42.00", 15),
			item("board-olive", "Olive wood board", "woodwork", "55.00", 10),
			item("spoon-set", "Carved spoon set", "woodwork", "24.00", 50),
		},
		promotions: []promotion.Promotion{
			promo("ceramics-week", "Ceramics week", "20", 0, "vase-terracotta", "bowl-glazed", "mug-speckled"),
			promo("spring-sale", "Spring sale", "10", time.Second),
		},
		profiles: []profile.Profile{
			{
				ID:        "profile-demo",
				UserID:    "user-customer",
				Name:      "Demo Customer",
				Email:     "customer@example.com",
				Address:   "Via dei Mille 12, Milano",
				CreatedAt: now,
				UpdatedAt: now,
			},
		},
		apiKeys: []auth.APIKeyInfo{
			{ID: "seed-admin", Name: "Seed admin key", UserID: "user-admin", Role: auth.RoleAdmin, Active: true},
			{ID: "seed-seller", Name: "Seed seller key", UserID: "user-seller", Role: auth.RoleSeller, Active: true},
			{ID: "seed-customer", Name: "Seed customer key", UserID: "user-customer", Role: auth.RoleCustomer, Active: true},
		},
	}
}
