// Package app wires configuration, storage, services and the HTTP server.
package app

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/artelab/backoffice/internal/cache"
	"github.com/artelab/backoffice/internal/domain/order"
	"github.com/artelab/backoffice/internal/domain/pricing"
	"github.com/artelab/backoffice/internal/domain/product"
	"github.com/artelab/backoffice/internal/domain/profile"
	"github.com/artelab/backoffice/internal/domain/promotion"
	"github.com/artelab/backoffice/internal/events"
	"github.com/artelab/backoffice/internal/handler"
	"github.com/artelab/backoffice/internal/media"
	"github.com/artelab/backoffice/internal/storage"
	"github.com/artelab/backoffice/pkg/health"
	"github.com/artelab/backoffice/pkg/httpmiddleware"
)

const serviceName = "artelab-backoffice"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("media", cfg.Media.Driver),
	)

	backend, err := storage.Open(ctx, lg, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer func() {
		if err := backend.Close(context.Background()); err != nil {
			lg.Warn("Close storage", zap.Error(err))
		}
	}()

	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadinessCheck(backend.Driver, 5*time.Second, health.PingCheck(backend.Ping))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	var catalogCache product.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		catalogCache = cache.NewCatalog(rdb, "", cfg.Redis.TTL)
	}

	orderOpts := []order.Option{
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(zctx.Base(ctx, lg.Named("nats")), cfg.NATS.URL, serviceName)
		if err != nil {
			return err
		}
		defer func() { _ = nc.Drain() }()
		healthSvc.AddReadinessCheck("nats", time.Second, func(context.Context) error {
			if nc.Status() != nats.CONNECTED {
				return errors.Errorf("nats status %s", nc.Status())
			}
			return nil
		})
		orderOpts = append(orderOpts, order.WithPublisher(events.NewPublisher(nc, cfg.NATS.Subject)))
	}

	store, err := newMediaStore(ctx, cfg.Media)
	if err != nil {
		return errors.Wrap(err, "create media store")
	}
	uploader := media.NewUploader(store,
		media.WithMaxBytes(cfg.Media.MaxUploadBytes),
		media.WithMaxPixels(cfg.Media.MaxPixels),
		media.WithThumbnailWidth(cfg.Media.ThumbnailWidth),
	)

	// Domain services.
	productSvc := product.NewService(backend.Products, uploader, catalogCache)
	promotionSvc := promotion.NewService(backend.Promotions)
	profileSvc := profile.NewService(backend.Profiles, uploader)
	orderSvc, err := order.NewService(
		pricing.PriceLookupFunc(productSvc.PriceOf),
		backend.Promotions,
		backend.Profiles,
		backend.Orders,
		orderOpts...,
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.New(
		handler.Config{
			APIKeyPepper:   []byte(cfg.APIKeyPepper),
			MaxUploadBytes: cfg.Media.MaxUploadBytes,
		},
		backend.APIKeys,
		productSvc,
		promotionSvc,
		profileSvc,
		orderSvc,
	)

	router := mux.NewRouter()
	router.Use(httpmiddleware.RouteLabeler)
	router.HandleFunc("/livez", healthSvc.LiveEndpoint).Methods(http.MethodGet)
	router.HandleFunc("/readyz", healthSvc.ReadyEndpoint).Methods(http.MethodGet)
	if cfg.Media.Driver == "local" {
		prefix := localMediaPrefix(cfg.Media.PublicURL)
		router.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(cfg.Media.LocalDir))))
	}
	h.Register(router)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderAPIKey},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				KeyFunc: httpmiddleware.APIKeyOrIP,
			}),
			httpmiddleware.Instrument(serviceName, m),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newMediaStore(ctx context.Context, cfg MediaConfig) (media.Store, error) {
	if cfg.Driver == "s3" {
		return media.NewS3Store(ctx, media.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.PublicURL,
		})
	}
	return media.NewLocalStore(cfg.LocalDir, cfg.PublicURL)
}

// localMediaPrefix returns the path under which local uploads are served,
// derived from the public URL.
func localMediaPrefix(publicURL string) string {
	p := publicURL
	if u, err := url.Parse(publicURL); err == nil {
		p = u.Path
	}
	return "/" + strings.Trim(p, "/") + "/"
}
