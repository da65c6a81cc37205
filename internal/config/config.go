package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven knob for the RAPTOR core. The Telegram bot UI,
// settings CRUD, and REST surface are external collaborators and load their own config.
type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (optional event-bus fallback, spec.md §4.K worker wake-ups)
	RedisAddr string

	// Solana RPC fan-out endpoints, primary then fallbacks (spec.md §6)
	SolanaRPC1 string
	SolanaRPC2 string
	SolanaRPC3 string

	// pump.pro metadata REST fallback (spec.md §4.E, §6); versioned paths are
	// appended by the caller, never hardcoded here.
	PumpRESTBase string

	// Solana WebSocket endpoint for logsSubscribe (spec.md §4.E); falls back to the
	// first configured RPC endpoint's wss scheme when unset.
	SolanaWS string

	// Bags Telegram feed (spec.md §4.E Bags Telegram parser); the bot token is the
	// discovery source's own long-poll session, decoupled from the settings-CRUD bot.
	TelegramBotToken string
	BagsChatID       int64

	// Feature switches (spec.md §6, §4.G, §4.J)
	AutoExecuteEnabled       bool
	GraduationEnabled        bool
	GraduationPollInterval   time.Duration
	StrictMetadataHardStops  bool // spec.md §9 open question: strict vs relaxed soft metadata stops

	// Signer service boundary (spec.md §1, out of scope beyond its URL)
	SignerURL string

	// AMM aggregator (Jupiter) used by the post-graduation venue router (spec.md §4.C).
	JupiterBaseURL string
	JupiterAPIKey  string

	// Scoring configuration (spec.md §9 open questions)
	MinQualificationScore float64
	ScoreScale            float64

	// Trigger / discovery cadence
	TriggerSweepInterval time.Duration
	PriceCacheTTL        time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "raptor"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		SolanaRPC1: getEnv("SOLANA_RPC_1", ""),
		SolanaRPC2: getEnv("SOLANA_RPC_2", ""),
		SolanaRPC3: getEnv("SOLANA_RPC_3", ""),

		PumpRESTBase: getEnv("PUMP_REST_BASE", ""),

		SolanaWS: getEnv("SOLANA_WS", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		BagsChatID:       getEnvInt64("BAGS_CHAT_ID", 0),

		AutoExecuteEnabled:      getEnvBool("AUTO_EXECUTE_ENABLED", false),
		GraduationEnabled:       getEnvBool("GRADUATION_ENABLED", true),
		GraduationPollInterval:  getEnvDurationMS("GRADUATION_POLL_INTERVAL_MS", 10*time.Second),
		StrictMetadataHardStops: getEnvBool("STRICT_METADATA_HARD_STOPS", false),

		SignerURL: getEnv("SIGNER_URL", "http://localhost:9090"),

		JupiterBaseURL: getEnv("JUPITER_BASE_URL", "https://quote-api.jup.ag"),
		JupiterAPIKey:  getEnv("JUPITER_API_KEY", ""),

		MinQualificationScore: getEnvFloat("MIN_QUALIFICATION_SCORE", 23.0),
		ScoreScale:            getEnvFloat("SCORE_SCALE", 60.0),

		TriggerSweepInterval: getEnvDurationMS("TRIGGER_SWEEP_INTERVAL_MS", 2*time.Second),
		PriceCacheTTL:        getEnvDurationMS("PRICE_CACHE_TTL_MS", 10*time.Second),
	}
	if cfg.SolanaWS == "" {
		if eps := cfg.RPCEndpoints(); len(eps) > 0 {
			cfg.SolanaWS = strings.Replace(strings.Replace(eps[0], "https://", "wss://", 1), "http://", "ws://", 1)
		}
	}
	return cfg, nil
}

// RPCEndpoints returns the configured Solana RPC endpoints in priority order,
// skipping blanks. Callers must treat an empty result as "degrade to public fallbacks"
// (spec.md §4.A) and log a warning.
func (c *Config) RPCEndpoints() []string {
	var out []string
	for _, e := range []string{c.SolanaRPC1, c.SolanaRPC2, c.SolanaRPC3} {
		if strings.TrimSpace(e) != "" {
			out = append(out, e)
		}
	}
	return out
}

func (c *Config) DBDSN() string {
	return "host=" + c.DBHost + " port=" + c.DBPort + " user=" + c.DBUser +
		" dbname=" + c.DBName + " password=" + c.DBPassword + " sslmode=" + c.DBSSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvInt64(key string, defaultValue int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDurationMS(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
