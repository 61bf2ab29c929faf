// Package storage selects and opens the persistence backend.
package storage

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/domain/auth"
	"github.com/artelab/backoffice/internal/domain/order"
	"github.com/artelab/backoffice/internal/domain/product"
	"github.com/artelab/backoffice/internal/domain/profile"
	"github.com/artelab/backoffice/internal/domain/promotion"
	"github.com/artelab/backoffice/internal/storage/mongo"
	"github.com/artelab/backoffice/internal/storage/postgres"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config selects the backend and its connection parameters.
type Config struct {
	Driver        string `default:"postgres" usage:"Storage driver: postgres or mongo"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (ARTELAB_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MongoURI      string `default:"mongodb://localhost:27017" usage:"MongoDB connection URI" flag:"mongo-uri"`
	MongoDatabase string `default:"artelab" usage:"MongoDB database name" flag:"mongo-database"`
}

// Validate reports missing connection parameters for the chosen driver.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set ARTELAB_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return errors.New("mongo URI is required")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Driver)
	}
	return nil
}

// ProductStore is the product repository plus the bulk operations used by
// the seed and import commands.
type ProductStore interface {
	product.Repository
	Upsert(ctx context.Context, p *product.Product) error
	IDs(ctx context.Context) ([]string, error)
}

// PromotionStore is the promotion repository plus upsert.
type PromotionStore interface {
	promotion.Repository
	Upsert(ctx context.Context, p *promotion.Promotion) error
}

// APIKeyStore is the API key repository plus upsert.
type APIKeyStore interface {
	auth.Repository
	Upsert(ctx context.Context, k *auth.APIKeyInfo) error
}

// Backend bundles the repositories of one database.
type Backend struct {
	Driver     string
	Products   ProductStore
	Promotions PromotionStore
	Profiles   profile.Repository
	Orders     order.Repository
	APIKeys    APIKeyStore

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping checks connectivity to the database.
func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases the database connections.
func (b *Backend) Close(ctx context.Context) error {
	return b.close(ctx)
}

// Open connects to the configured backend and prepares its schema: goose
// migrations for PostgreSQL, indexes for MongoDB.
func Open(ctx context.Context, lg *zap.Logger, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverMongo:
		return openMongo(ctx, lg, cfg)
	default:
		return openPostgres(ctx, lg, cfg)
	}
}

func openPostgres(ctx context.Context, lg *zap.Logger, cfg Config) (*Backend, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	lg.Info("Storage ready", zap.String("driver", DriverPostgres))

	return &Backend{
		Driver:     DriverPostgres,
		Products:   postgres.NewProductRepository(pool),
		Promotions: postgres.NewPromotionRepository(pool),
		Profiles:   postgres.NewProfileRepository(pool),
		Orders:     postgres.NewOrderRepository(pool),
		APIKeys:    postgres.NewAPIKeyRepository(pool),
		ping:       pool.Ping,
		close: func(context.Context) error {
			pool.Close()
			return nil
		},
	}, nil
}

func openMongo(ctx context.Context, lg *zap.Logger, cfg Config) (*Backend, error) {
	client, err := mongo.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.MongoDatabase)
	if err := mongo.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("preparing mongo: %w", err)
	}
	lg.Info("Storage ready",
		zap.String("driver", DriverMongo),
		zap.String("database", cfg.MongoDatabase),
	)

	return &Backend{
		Driver:     DriverMongo,
		Products:   mongo.NewProductRepository(db),
		Promotions: mongo.NewPromotionRepository(db),
		Profiles:   mongo.NewProfileRepository(db),
		Orders:     mongo.NewOrderRepository(db),
		APIKeys:    mongo.NewAPIKeyRepository(db),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		close: client.Disconnect,
	}, nil
}
