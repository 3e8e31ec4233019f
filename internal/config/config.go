package config // package config loads application configuration from the environment

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable named in its envconfig tag; fields marked
// required must be set, the rest fall back to their defaults.
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"dev"`   // application environment (dev/test/prod)
	Port string `envconfig:"APP_PORT" default:"8080"` // HTTP port to listen on

	DBUser string `envconfig:"DB_USER" required:"true"`
	DBPass string `envconfig:"DB_PASS"` // empty allowed
	DBHost string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort string `envconfig:"DB_PORT" default:"3306"`
	DBName string `envconfig:"DB_NAME" required:"true"`

	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLMin int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`
	BcryptCost   int    `envconfig:"BCRYPT_COST" default:"10"`

	// REDIS_HOST and REDIS_PORT together take precedence over REDIS_ADDR.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisHost     string `envconfig:"REDIS_HOST"`
	RedisPort     string `envconfig:"REDIS_PORT"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisTLS      bool   `envconfig:"REDIS_TLS" default:"false"`

	RabbitURL            string `envconfig:"RABBITMQ_URL"` // empty disables event publishing
	EventsExchange       string `envconfig:"EVENTS_EXCHANGE" default:"quickreserve.events"`
	EventConsumerEnabled bool   `envconfig:"EVENT_CONSUMER_ENABLED" default:"false"`

	TwoGISAPIKey   string `envconfig:"TWOGIS_API_KEY"` // empty disables the directory
	TwoGISBaseURL  string `envconfig:"TWOGIS_BASE_URL" default:"https://catalog.api.2gis.com/3.0/items"`
	TwoGISRPMLimit int    `envconfig:"TWOGIS_RPM_LIMIT" default:"60"`

	APIRateLimitPerMin int  `envconfig:"API_RATE_LIMIT_PER_MIN" default:"30"`
	JobsEnabled        bool `envconfig:"JOBS_ENABLED" default:"true"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"` // empty disables tracing
}

// Load reads an optional .env file and then decodes the environment into a
// Config.  Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, fmt.Errorf("config: BCRYPT_COST %d out of range [4, 31]", cfg.BcryptCost)
	}
	if cfg.AccessTTLMin <= 0 {
		return Config{}, fmt.Errorf("config: ACCESS_TOKEN_TTL_MIN must be positive")
	}
	return cfg, nil
}

// RedisEndpoint resolves the Redis address.
func (c Config) RedisEndpoint() string {
	if c.RedisHost != "" && c.RedisPort != "" {
		return c.RedisHost + ":" + c.RedisPort
	}
	return c.RedisAddr
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}
