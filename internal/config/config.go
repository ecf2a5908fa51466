package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Chunking  ChunkingConfig
	Session   SessionConfig
	Ai        AIConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	UploadTopic        string
}

type CacheConfig struct {
	Dir                  string
	TTL                  time.Duration
	MemoryMaxEntries     int
	ExpiredSweepInterval time.Duration
	StaleSweepInterval   time.Duration
	StaleAfter           time.Duration
}

type RateLimitConfig struct {
	SnapshotPath    string
	SaveEvery       int
	NewUserLimit    int
	RegularLimit    int
	PowerLimit      int
	EnterpriseLimit int
	WindowSeconds   int
}

type ChunkingConfig struct {
	MaxChunkSize   int
	MinChunkLength int
	OverlapSize    int
}

type SessionConfig struct {
	DebounceDelay time.Duration
}

type AIConfig struct {
	LLMProvider   string // "ollama", "openai"
	LLMModel      string // e.g. "llama3", "gpt-4o-mini"
	OllamaBaseURL string
	OpenAIAPIKey  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			UploadTopic:        getEnv("DOCUMENT_UPLOAD_TOPIC_NAME", "DOCUMENT_UPLOADED"),
		},
		Cache: CacheConfig{
			Dir:                  getEnv("CACHE_DIR", "data/cache"),
			TTL:                  getEnvAsDuration("CACHE_TTL_HOURS", 24) * time.Hour,
			MemoryMaxEntries:     getEnvAsInt("CACHE_MEMORY_MAX_ENTRIES", 100),
			ExpiredSweepInterval: getEnvAsDuration("CACHE_EXPIRED_SWEEP_HOURS", 6) * time.Hour,
			StaleSweepInterval:   getEnvAsDuration("CACHE_STALE_SWEEP_HOURS", 24) * time.Hour,
			StaleAfter:           getEnvAsDuration("CACHE_STALE_AFTER_HOURS", 168) * time.Hour,
		},
		RateLimit: RateLimitConfig{
			SnapshotPath:    getEnv("RATELIMIT_SNAPSHOT_PATH", "data/ratelimit/snapshot.json"),
			SaveEvery:       getEnvAsInt("RATELIMIT_SAVE_EVERY", 100),
			NewUserLimit:    getEnvAsInt("RATELIMIT_NEW_USER_LIMIT", 5),
			RegularLimit:    getEnvAsInt("RATELIMIT_REGULAR_LIMIT", 15),
			PowerLimit:      getEnvAsInt("RATELIMIT_POWER_LIMIT", 25),
			EnterpriseLimit: getEnvAsInt("RATELIMIT_ENTERPRISE_LIMIT", 50),
			WindowSeconds:   getEnvAsInt("RATELIMIT_WINDOW_SECONDS", 60),
		},
		Chunking: ChunkingConfig{
			MaxChunkSize:   getEnvAsInt("CHUNK_MAX_SIZE", 25000),
			MinChunkLength: getEnvAsInt("CHUNK_MIN_LENGTH", 100),
			OverlapSize:    getEnvAsInt("CHUNK_OVERLAP_SIZE", 1000),
		},
		Session: SessionConfig{
			DebounceDelay: time.Duration(getEnvAsInt("SESSION_DEBOUNCE_MS", 300)) * time.Millisecond,
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback))
}
