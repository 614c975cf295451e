package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"arebasic/internal/ledger"
	"arebasic/internal/logger"

	"github.com/joho/godotenv"
)

// ledger backends
const (
	LedgerModeLocal  = "local"
	LedgerModeRemote = "remote"
)

type Config struct {
	AppPort       string
	DatabaseURL   string // пусто = история раундов не сохраняется
	JWTSecret     string
	AllowedOrigin string

	LogLevel string
	LogJSON  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EvaluatorURL string

	LedgerMode   string
	LedgerURL    string
	LedgerAPIKey string
	LedgerDBPath string

	// Game economics
	StartingBalance int64
	StakeCost       int64
	RoundDuration   time.Duration

	CallTimeout       time.Duration
	ReconcileAttempts int
	ReconcileDelay    time.Duration

	GameRateLimit        int
	GameRateWindow       int
	APIRateLimit         int
	APIRateWindowSeconds int
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	if os.Getenv("JWT_SECRET") == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "error", err)
	}
	return cfg
}

// LoadLedger reads the same env for tools that only talk to the ledger;
// JWT_SECRET is not required
func LoadLedger() (*Config, error) {
	_ = godotenv.Load()

	cfg := fromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LedgerOptions maps the ledger settings onto ledger.Open
func (c *Config) LedgerOptions() ledger.Options {
	return ledger.Options{
		Mode:            c.LedgerMode,
		URL:             c.LedgerURL,
		APIKey:          c.LedgerAPIKey,
		DBPath:          c.LedgerDBPath,
		StartingBalance: c.StartingBalance,
		Timeout:         c.CallTimeout,
	}
}

func fromEnv() *Config {
	return &Config{
		AppPort:       envString("APP_PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AllowedOrigin: envString("ALLOWED_ORIGIN", "*"),

		LogLevel: envString("LOG_LEVEL", "info"),
		LogJSON:  strings.EqualFold(os.Getenv("LOG_FORMAT"), "json"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		EvaluatorURL: envString("EVALUATOR_URL", "http://localhost:8000/evaluate"),

		LedgerMode:   strings.ToLower(envString("LEDGER_MODE", LedgerModeLocal)),
		LedgerURL:    os.Getenv("LEDGER_URL"),
		LedgerAPIKey: os.Getenv("LEDGER_API_KEY"),
		LedgerDBPath: envString("LEDGER_DB_PATH", "ledger.db"),

		StartingBalance: envInt64("STARTING_BALANCE", 10),
		StakeCost:       envInt64("STAKE_COST", 1),
		RoundDuration:   time.Duration(envInt("ROUND_SECONDS", 15)) * time.Second,

		CallTimeout:       time.Duration(envInt("CALL_TIMEOUT_SECONDS", 12)) * time.Second,
		ReconcileAttempts: envInt("RECONCILE_ATTEMPTS", 3),
		ReconcileDelay:    time.Duration(envInt("RECONCILE_DELAY_MS", 1000)) * time.Millisecond,

		GameRateLimit:        envInt("GAME_RATE_LIMIT", 30), // раундов за ->
		GameRateWindow:       envInt("GAME_RATE_WINDOW", 60), // -> 60 секунд
		APIRateLimit:         envInt("API_RATE_LIMIT", 120),
		APIRateWindowSeconds: envInt("API_RATE_WINDOW_SECONDS", 60),
	}
}

// Validate checks combinations the env parsers cannot
func (c *Config) Validate() error {
	switch c.LedgerMode {
	case LedgerModeLocal:
	case LedgerModeRemote:
		if c.LedgerURL == "" {
			return errLedgerURL
		}
	default:
		return errLedgerMode
	}
	if c.StakeCost <= 0 {
		return errStake
	}
	if c.StartingBalance < 0 {
		return errStartingBalance
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// невалидные и неположительные значения -> дефолт
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		logger.Warn("ignoring invalid env value", "key", key, "value", v)
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
		logger.Warn("ignoring invalid env value", "key", key, "value", v)
	}
	return def
}
