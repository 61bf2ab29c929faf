package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/artelab/backoffice/internal/storage"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (ARTELAB_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (ARTELAB_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Storage      storage.Config
	Redis        RedisConfig
	NATS         NATSConfig
	Media        MediaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig controls the catalog cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address for the catalog cache"`
	Password string        `default:"" usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database number"`
	TTL      time.Duration `default:"5m" usage:"Catalog cache entry lifetime"`
}

// NATSConfig controls order event publishing. An empty URL disables events.
type NATSConfig struct {
	URL     string `default:"" usage:"NATS server URL"`
	Subject string `default:"artelab.orders.created" usage:"Subject for order created events"`
}

// MediaConfig selects where uploaded images are stored.
type MediaConfig struct {
	Driver         string `default:"local" usage:"Image storage driver: local or s3"`
	LocalDir       string `default:"./uploads" usage:"Directory for the local driver" flag:"media-dir"`
	PublicURL      string `default:"/uploads" usage:"Public URL prefix of stored images" flag:"media-public-url"`
	MaxUploadBytes int64  `default:"5242880" usage:"Maximum accepted image size in bytes"`
	MaxPixels      int64  `default:"25000000" usage:"Maximum accepted image width times height"`
	ThumbnailWidth int    `default:"200" usage:"Thumbnail width in pixels"`
	S3             S3Config
}

// S3Config configures the s3 media driver.
type S3Config struct {
	Bucket    string `usage:"Bucket name"`
	Region    string `default:"us-east-1" usage:"Bucket region"`
	Endpoint  string `usage:"Custom endpoint for S3-compatible services"`
	AccessKey string `usage:"Static access key"`
	SecretKey string `usage:"Static secret key"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig reads .env (if present) into the environment, then loads
// configuration from environment variables, YAML files and flags.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(nil)
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ARTELAB",
		Files:     []string{"config.yaml", "/etc/artelab/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
		Args: args,
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.APIKeyPepper == "" {
		return errors.New("api key pepper is required: set ARTELAB_API_KEY_PEPPER")
	}
	switch c.Media.Driver {
	case "local":
	case "s3":
		if c.Media.S3.Bucket == "" {
			return errors.New("media bucket is required for the s3 driver")
		}
	default:
		return errors.Errorf("unknown media driver %q", c.Media.Driver)
	}
	return nil
}

// applyPlatformDefaults maps DATABASE_URL and PORT, as set by hosting
// platforms, onto the ARTELAB_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
