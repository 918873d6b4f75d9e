package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Weather  WeatherConfig
	Cache    CacheConfig
	Corpus   CorpusConfig
	Logging  LoggingConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds Postgres configuration for the task store
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LLMConfig holds chat-completion engine configuration.
// The endpoint is any OpenAI-compatible /chat/completions server.
type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	RequestTimeout time.Duration
}

// WeatherConfig holds QWeather API configuration
type WeatherConfig struct {
	APIKey         string
	GeoURL         string
	WeatherURL     string
	RequestTimeout time.Duration
}

// CacheConfig holds TTLs for the two result caches
type CacheConfig struct {
	CommandTTL time.Duration
	QueryTTL   time.Duration
}

// CorpusConfig holds training-corpus configuration
type CorpusConfig struct {
	DataDir  string
	SeedFile string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "3000"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "taskpilot"),
			Password:        getEnv("DB_PASSWORD", "taskpilot"),
			Name:            getEnv("DB_NAME", "taskpilot"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			RequestTimeout: getEnvDuration("OPENAI_REQUEST_TIMEOUT", 2*time.Minute),
		},
		Weather: WeatherConfig{
			APIKey:         getEnv("WEATHER_API_KEY", ""),
			GeoURL:         getEnv("WEATHER_GEO_URL", "https://geoapi.qweather.com/v2/city/lookup"),
			WeatherURL:     getEnv("WEATHER_NOW_URL", "https://devapi.qweather.com/v7/weather/now"),
			RequestTimeout: getEnvDuration("WEATHER_REQUEST_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			CommandTTL: getEnvDuration("COMMAND_CACHE_TTL", 2*time.Hour),
			QueryTTL:   getEnvDuration("QUERY_CACHE_TTL", 1*time.Hour),
		},
		Corpus: CorpusConfig{
			DataDir:  getEnv("CORPUS_DATA_DIR", "./data"),
			SeedFile: getEnv("CORPUS_SEED_FILE", "./seed/corpus.yaml"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
	}
}

// Validate checks settings the server cannot run without
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	return nil
}

// DSN returns the Postgres connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Password, d.Name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
