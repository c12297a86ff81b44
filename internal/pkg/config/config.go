package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	PostgresURL        string        `env:"POSTGRES_URL,required,notEmpty"`
	RedisAddr          string        `env:"REDIS_ADDR"` // empty: resyncs are serialized in-process only
	SyncLockKey        string        `env:"SYNC_LOCK_KEY" envDefault:"customer-authz:tenant-sync"`
	SyncLockTTL        time.Duration `env:"SYNC_LOCK_TTL" envDefault:"30s"`
	SearchGuardURL     string        `env:"SEARCHGUARD_URL,required,notEmpty"`
	SearchGuardUser    string        `env:"SEARCHGUARD_USERNAME" envDefault:"admin"`
	SearchGuardPass    string        `env:"SEARCHGUARD_PASSWORD"`
	SearchGuardRole    string        `env:"SEARCHGUARD_ROLE" envDefault:"lagoonadmin"`
	SearchGuardRPS     float64       `env:"SEARCHGUARD_RPS" envDefault:"10"`
	SearchGuardTimeout time.Duration `env:"SEARCHGUARD_TIMEOUT" envDefault:"10s"`
	JWTSecret          string        `env:"JWT_SECRET,required,notEmpty"`
	APIServerAddr      string        `env:"API_SERVER_ADDR" envDefault:":3000"`
	MetricsServerAddr  string        `env:"METRICS_SERVER_ADDR" envDefault:":9091"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	PIIRedactionFields []string      `env:"PII_REDACTION_FIELDS" envDefault:"privateKey" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
