// Command seed-db prepares the schema and loads demo catalog, promotion,
// profile and API key data.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/domain/auth"
	"github.com/artelab/backoffice/internal/storage"
)

func main() {
	var (
		cfg    storage.Config
		pepper string
		keys   = map[auth.Role]*string{
			auth.RoleAdmin:    new(string),
			auth.RoleSeller:   new(string),
			auth.RoleCustomer: new(string),
		}
	)
	flag.StringVar(&cfg.Driver, "driver", envOr("ARTELAB_STORAGE_DRIVER", storage.DriverPostgres), "storage driver: postgres or mongo")
	flag.StringVar(&cfg.DatabaseURL, "database-url", envOr("DATABASE_URL", ""), "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", envOr("ARTELAB_STORAGE_MONGO_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	flag.StringVar(&cfg.MongoDatabase, "mongo-database", envOr("ARTELAB_STORAGE_MONGO_DATABASE", "artelab"), "MongoDB database name")
	flag.StringVar(&pepper, "api-key-pepper", os.Getenv("ARTELAB_API_KEY_PEPPER"), "HMAC pepper for API key hashing (or ARTELAB_API_KEY_PEPPER env)")
	flag.StringVar(keys[auth.RoleAdmin], "admin-key", os.Getenv("ARTELAB_SEED_ADMIN_KEY"), "admin API key, generated when empty")
	flag.StringVar(keys[auth.RoleSeller], "seller-key", os.Getenv("ARTELAB_SEED_SELLER_KEY"), "seller API key, generated when empty")
	flag.StringVar(keys[auth.RoleCustomer], "customer-key", os.Getenv("ARTELAB_SEED_CUSTOMER_KEY"), "customer API key, generated when empty")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if pepper == "" {
		lg.Fatal("API key pepper is required: set --api-key-pepper or ARTELAB_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	raw := make(map[auth.Role]string, len(keys))
	for role, k := range keys {
		raw[role] = *k
	}
	if err := run(ctx, lg, cfg, []byte(pepper), raw); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, lg *zap.Logger, cfg storage.Config, pepper []byte, rawKeys map[auth.Role]string) error {
	backend, err := storage.Open(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close(context.Background()) }()

	now := time.Now().UTC()
	data := demoData(now)

	for i := range data.products {
		p := &data.products[i]
		if err := backend.Products.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	lg.Info("Products seeded", zap.Int("count", len(data.products)))

	for i := range data.promotions {
		p := &data.promotions[i]
		if err := backend.Promotions.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert promotion %s", p.ID)
		}
	}
	lg.Info("Promotions seeded", zap.Int("count", len(data.promotions)))

	for i := range data.profiles {
		p := &data.profiles[i]
		if err := backend.Profiles.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert profile %s", p.UserID)
		}
	}
	lg.Info("Profiles seeded", zap.Int("count", len(data.profiles)))

	for _, k := range data.apiKeys {
		raw := rawKeys[k.Role]
		generated := raw == ""
		if generated {
			if raw, err = randomKey(); err != nil {
				return err
			}
		}
		k.KeyHash = auth.HashKey(pepper, raw)
		if err := backend.APIKeys.Upsert(ctx, &k); err != nil {
			return errors.Wrapf(err, "upsert api key %s", k.ID)
		}

		fields := []zap.Field{zap.String("id", k.ID), zap.String("role", string(k.Role)), zap.String("user_id", k.UserID)}
		if generated {
			// Generated keys are shown once; only their hash is stored.
			fields = append(fields, zap.String("key", raw))
		}
		lg.Info("API key seeded", fields...)
	}
	return nil
}

func randomKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "generate api key")
	}
	return hex.EncodeToString(b), nil
}
