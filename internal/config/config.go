package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	TTS      TTSConfig
	Quota    QuotaConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

// BreakerConfig tunes one provider's circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
}

type TTSConfig struct {
	ElevenLabsKey   string
	ElevenLabsModel string
	OpenAIKey       string
	OpenAIModel     string
	GoogleVoice     string

	CallTimeout time.Duration

	ElevenLabsBreaker BreakerConfig
	OpenAIBreaker     BreakerConfig
	GoogleBreaker     BreakerConfig

	MaxInputChars    int
	ParagraphWords   int
	MaxParagraphs    int
	BatchConcurrency int
}

type QuotaConfig struct {
	PremiumVoicesPerStory int
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ttsCfg, err := loadTTS()
	if err != nil {
		return nil, err
	}

	premiumVoices, err := getEnvInt("QUOTA_PREMIUM_VOICES_PER_STORY", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid QUOTA_PREMIUM_VOICES_PER_STORY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "story-audio"),
		},
		TTS:   ttsCfg,
		Quota: QuotaConfig{PremiumVoicesPerStory: premiumVoices},
	}

	return cfg, nil
}

func loadTTS() (TTSConfig, error) {
	callTimeout, err := getEnvDuration("TTS_CALL_TIMEOUT", 60*time.Second)
	if err != nil {
		return TTSConfig{}, fmt.Errorf("invalid TTS_CALL_TIMEOUT: %w", err)
	}

	maxInput, err := getEnvInt("TTS_MAX_INPUT_CHARS", 5000)
	if err != nil {
		return TTSConfig{}, fmt.Errorf("invalid TTS_MAX_INPUT_CHARS: %w", err)
	}

	paragraphWords, err := getEnvInt("TTS_PARAGRAPH_WORDS", 30)
	if err != nil {
		return TTSConfig{}, fmt.Errorf("invalid TTS_PARAGRAPH_WORDS: %w", err)
	}

	maxParagraphs, err := getEnvInt("TTS_MAX_PARAGRAPHS", 50)
	if err != nil {
		return TTSConfig{}, fmt.Errorf("invalid TTS_MAX_PARAGRAPHS: %w", err)
	}

	concurrency, err := getEnvInt("TTS_BATCH_CONCURRENCY", 5)
	if err != nil {
		return TTSConfig{}, fmt.Errorf("invalid TTS_BATCH_CONCURRENCY: %w", err)
	}

	elBreaker, err := loadBreaker("ELEVENLABS", 5, 30*time.Second)
	if err != nil {
		return TTSConfig{}, err
	}
	oaBreaker, err := loadBreaker("OPENAI", 5, 30*time.Second)
	if err != nil {
		return TTSConfig{}, err
	}
	// the always-available tier gets a longer leash before tripping
	gBreaker, err := loadBreaker("GOOGLE", 8, 15*time.Second)
	if err != nil {
		return TTSConfig{}, err
	}

	return TTSConfig{
		ElevenLabsKey:     getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsModel:   getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_TTS_MODEL", "tts-1"),
		GoogleVoice:       getEnv("GOOGLE_TTS_VOICE", "en-US-Neural2-F"),
		CallTimeout:       callTimeout,
		ElevenLabsBreaker: elBreaker,
		OpenAIBreaker:     oaBreaker,
		GoogleBreaker:     gBreaker,
		MaxInputChars:     maxInput,
		ParagraphWords:    paragraphWords,
		MaxParagraphs:     maxParagraphs,
		BatchConcurrency:  concurrency,
	}, nil
}

func loadBreaker(prefix string, defaultThreshold int, defaultReset time.Duration) (BreakerConfig, error) {
	threshold, err := getEnvInt("TTS_"+prefix+"_FAILURE_THRESHOLD", defaultThreshold)
	if err != nil {
		return BreakerConfig{}, fmt.Errorf("invalid TTS_%s_FAILURE_THRESHOLD: %w", prefix, err)
	}
	reset, err := getEnvDuration("TTS_"+prefix+"_RESET_TIMEOUT", defaultReset)
	if err != nil {
		return BreakerConfig{}, fmt.Errorf("invalid TTS_%s_RESET_TIMEOUT: %w", prefix, err)
	}
	return BreakerConfig{FailureThreshold: threshold, ResetTimeout: reset}, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Storage.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.Storage.SupabaseKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
