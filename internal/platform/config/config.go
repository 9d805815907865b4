package config

import (
	"os"
	"strconv"
	"time"

	id "lifebank/pkg/domain"
)

// Config captures everything the engine treats as tunable rather than baked
// in: shelf lives, match validity, sweep cadence, and summary thresholds.
type Config struct {
	Addr          string
	JWTSigningKey string

	// PostgresURL and RedisURL select the durable backends. Empty values fall
	// back to in-memory stores (dev and tests).
	PostgresURL string
	RedisURL    string

	// ShelfLives maps each component to its shelf life; ExpiresAt is derived
	// as AddedAt + shelf life at intake.
	ShelfLives map[id.Component]time.Duration

	// MatchTTL bounds how long a donation match confirmation link stays valid.
	MatchTTL time.Duration

	// RequestTTL sets the default deadline on new need requests.
	RequestTTL time.Duration

	// SweepInterval is the period of the expiration sweeper.
	SweepInterval time.Duration

	// ConfirmBaseURL prefixes donor confirmation links.
	ConfirmBaseURL string

	// SufficientThreshold and CriticalThreshold bound the summary bands:
	// total > sufficient → "sufficient", total > critical → "medium",
	// otherwise "critical".
	SufficientThreshold int
	CriticalThreshold   int
}

// Redis client tuning; kept out of Config because only the redis wrapper
// cares about them.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Default clinical shelf lives; override per deployment via env.
var defaultShelfLives = map[id.Component]time.Duration{
	id.WholeBlood: 35 * 24 * time.Hour,
	id.RedCells:   42 * 24 * time.Hour,
	id.Plasma:     365 * 24 * time.Hour,
	id.Platelets:  5 * 24 * time.Hour,
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Default()

	if addr := os.Getenv("LIFEBANK_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if key := os.Getenv("JWT_SIGNING_KEY"); key != "" {
		cfg.JWTSigningKey = key
	}
	cfg.PostgresURL = os.Getenv("POSTGRES_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if base := os.Getenv("CONFIRM_BASE_URL"); base != "" {
		cfg.ConfirmBaseURL = base
	}

	cfg.MatchTTL = durationEnv("MATCH_TTL", cfg.MatchTTL)
	cfg.RequestTTL = durationEnv("REQUEST_TTL", cfg.RequestTTL)
	cfg.SweepInterval = durationEnv("SWEEP_INTERVAL", cfg.SweepInterval)
	cfg.SufficientThreshold = intEnv("SUMMARY_SUFFICIENT_THRESHOLD", cfg.SufficientThreshold)
	cfg.CriticalThreshold = intEnv("SUMMARY_CRITICAL_THRESHOLD", cfg.CriticalThreshold)

	cfg.ShelfLives = map[id.Component]time.Duration{
		id.WholeBlood: durationEnv("SHELF_LIFE_WHOLE_BLOOD", defaultShelfLives[id.WholeBlood]),
		id.RedCells:   durationEnv("SHELF_LIFE_RED_CELLS", defaultShelfLives[id.RedCells]),
		id.Plasma:     durationEnv("SHELF_LIFE_PLASMA", defaultShelfLives[id.Plasma]),
		id.Platelets:  durationEnv("SHELF_LIFE_PLATELETS", defaultShelfLives[id.Platelets]),
	}

	return cfg
}

// Default returns the development configuration used by tests.
func Default() Config {
	shelfLives := make(map[id.Component]time.Duration, len(defaultShelfLives))
	for component, ttl := range defaultShelfLives {
		shelfLives[component] = ttl
	}
	return Config{
		Addr: ":8080",
		// Overridden in production; a default keeps local runs friction-free.
		JWTSigningKey:       "dev-secret-key-change-in-production",
		ShelfLives:          shelfLives,
		ConfirmBaseURL:      "http://localhost:8080",
		MatchTTL:            72 * time.Hour,
		RequestTTL:          7 * 24 * time.Hour,
		SweepInterval:       time.Minute,
		SufficientThreshold: 20,
		CriticalThreshold:   10,
	}
}

// RedisFromEnv builds redis client settings with sane pool defaults.
func RedisFromEnv() RedisConfig {
	return RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     intEnv("REDIS_POOL_SIZE", 10),
		MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}
