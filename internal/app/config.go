package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendRedis     = "redis"
	BackendSimulated = "simulated"
)

type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	BackendMode           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	BackendCommandChannel string
	BackendEventChannel   string

	// Simulated backend tuning.
	SimulatedStepInterval time.Duration
	SimulatedStartup      string // none | ready | update
	SimulatedUpdateURL    string
	SimulatedFailAt       string

	JournalEnabled         bool
	MongoURI               string // empty disables Mongo; the memory journal is used
	MongoDatabase          string
	MongoJournalCollection string
	JournalMemoryCapacity  int

	DispatchTimeout       time.Duration
	LaunchSignalTimeout   time.Duration
	BroadcastMaxPerSecond float64
	HTTPRateLimitRPS      float64
	HTTPRateLimitBurst    int
	CORSAllowedOrigins    []string
	DefaultLocale         string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8090"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		BackendMode:           strings.ToLower(getEnv("BACKEND_MODE", BackendRedis)),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               int(getEnvInt64("REDIS_DB", 0)),
		BackendCommandChannel: getEnv("BACKEND_COMMAND_CHANNEL", "launcher:commands"),
		BackendEventChannel:   getEnv("BACKEND_EVENT_CHANNEL", "launcher:events"),

		SimulatedStepInterval: getEnvDuration("SIMULATED_STEP_INTERVAL", 200*time.Millisecond),
		SimulatedStartup:      strings.ToLower(getEnv("SIMULATED_STARTUP", "none")),
		SimulatedUpdateURL:    getEnv("SIMULATED_UPDATE_URL", ""),
		SimulatedFailAt:       strings.ToLower(getEnv("SIMULATED_FAIL_AT", "")),

		JournalEnabled:         getEnvBool("JOURNAL_ENABLED", true),
		MongoURI:               getEnv("MONGO_URI", ""),
		MongoDatabase:          getEnv("MONGO_DB", "launcherd"),
		MongoJournalCollection: getEnv("MONGO_JOURNAL_COLLECTION", "journal"),
		JournalMemoryCapacity:  int(getEnvInt64("JOURNAL_MEMORY_CAPACITY", 1024)),

		DispatchTimeout:       getEnvDuration("DISPATCH_TIMEOUT", 5*time.Second),
		LaunchSignalTimeout:   getEnvDuration("LAUNCH_SIGNAL_TIMEOUT", 30*time.Second),
		BroadcastMaxPerSecond: getEnvFloat("BROADCAST_MAX_PER_SECOND", 10),
		HTTPRateLimitRPS:      getEnvFloat("HTTP_RATE_LIMIT_RPS", 100),
		HTTPRateLimitBurst:    int(getEnvInt64("HTTP_RATE_LIMIT_BURST", 200)),
		CORSAllowedOrigins:    parseCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),
		DefaultLocale:         getEnv("DEFAULT_LOCALE", "en"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("750ms") or whole seconds ("30").
// Zero is kept: it disables the timeout it configures.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs < 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
