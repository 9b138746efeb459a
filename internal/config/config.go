// Package config loads configuration from the environment, an optional .env
// file and an optional YAML overlay, and builds the per-run logger.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// SteamConfig holds upstream source endpoints.
type SteamConfig struct {
	StoreBaseURL string        `yaml:"storeBaseUrl"`
	APIBaseURL   string        `yaml:"apiBaseUrl"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LakeConfig holds the artifact store location.
type LakeConfig struct {
	DataRoot string `yaml:"dataRoot"`
}

// EmbeddingsConfig holds embedding endpoint and batching knobs.
type EmbeddingsConfig struct {
	BaseURL       string        `yaml:"baseUrl"`
	Model         string        `yaml:"model"`
	ContextLength int           `yaml:"contextLength"`
	BatchSize     int           `yaml:"batchSize"`
	Dimensions    int           `yaml:"dimensions"`
	AllowChunking bool          `yaml:"allowChunking"`
	AllowFallback bool          `yaml:"allowFallback"`
	Timeout       time.Duration `yaml:"timeout"`
}

// CosmosConfig holds document store connection and query settings.
type CosmosConfig struct {
	ConnectionString string `yaml:"connectionString"`
	Endpoint         string `yaml:"endpoint"`
	Key              string `yaml:"key"`
	Database         string `yaml:"database"`
	GamesContainer   string `yaml:"gamesContainer"`
	ReviewsContainer string `yaml:"reviewsContainer"`
	VectorField      string `yaml:"vectorField"`
	Metric           string `yaml:"metric"`
	FormPreference   string `yaml:"formPreference"`
}

// IngestConfig holds harvesting run defaults, overridable per run by flags.
type IngestConfig struct {
	SampleSize         int    `yaml:"sampleSize"`
	ReviewsCap         int    `yaml:"reviewsCap"`
	NewsCount          int    `yaml:"newsCount"`
	NewsTags           string `yaml:"newsTags"`
	Concurrency        int    `yaml:"concurrency"`
	MinRecommendations int    `yaml:"minRecommendations"`
}

// RankConfig holds the default hybrid score weights.
type RankConfig struct {
	TextWeight     float64 `yaml:"textWeight"`
	SemanticWeight float64 `yaml:"semanticWeight"`
}

// Config holds all configuration values.
type Config struct {
	Steam      SteamConfig      `yaml:"steam"`
	Lake       LakeConfig       `yaml:"lake"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Cosmos     CosmosConfig     `yaml:"cosmos"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Rank       RankConfig       `yaml:"rank"`

	LogLevel slog.Level `yaml:"-"`
}

// Load reads configuration from a .env file (if present), environment
// variables, and finally a YAML overlay pointed to by GAMESEARCH_CONFIG.
// The overlay wins over the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Steam: SteamConfig{
			StoreBaseURL: getEnv("GAMESEARCH_STEAM_STORE_URL", "https://store.steampowered.com"),
			APIBaseURL:   getEnv("GAMESEARCH_STEAM_API_URL", "https://api.steampowered.com"),
			Timeout:      getEnvDuration("GAMESEARCH_STEAM_TIMEOUT", 15*time.Second),
		},
		Lake: LakeConfig{
			DataRoot: getEnv("GAMESEARCH_DATA_ROOT", "./data"),
		},
		Embeddings: EmbeddingsConfig{
			BaseURL:       getEnv("GAMESEARCH_EMBEDDINGS_URL", "http://localhost:11434"),
			Model:         getEnv("GAMESEARCH_EMBEDDINGS_MODEL", "nomic-embed-text"),
			ContextLength: getEnvInt("GAMESEARCH_EMBEDDINGS_CONTEXT", 2048),
			BatchSize:     getEnvInt("GAMESEARCH_EMBEDDINGS_BATCH", 64),
			Dimensions:    getEnvInt("GAMESEARCH_EMBEDDINGS_DIMS", 768),
			AllowChunking: getEnvBool("GAMESEARCH_EMBEDDINGS_CHUNKING", true),
			AllowFallback: getEnvBool("GAMESEARCH_EMBEDDINGS_FALLBACK", false),
			Timeout:       getEnvDuration("GAMESEARCH_EMBEDDINGS_TIMEOUT", 3*time.Minute),
		},
		Cosmos: CosmosConfig{
			ConnectionString: getEnv("GAMESEARCH_COSMOS_CONNECTION", ""),
			Endpoint:         getEnv("GAMESEARCH_COSMOS_ENDPOINT", ""),
			Key:              getEnv("GAMESEARCH_COSMOS_KEY", ""),
			Database:         getEnv("GAMESEARCH_COSMOS_DATABASE", "gamesearch"),
			GamesContainer:   getEnv("GAMESEARCH_COSMOS_GAMES", "games"),
			ReviewsContainer: getEnv("GAMESEARCH_COSMOS_REVIEWS", "reviews"),
			VectorField:      getEnv("GAMESEARCH_COSMOS_VECTOR_FIELD", "c.embedding"),
			Metric:           getEnv("GAMESEARCH_COSMOS_METRIC", "cosine"),
			FormPreference:   getEnv("GAMESEARCH_COSMOS_FORM", ""),
		},
		Ingest: IngestConfig{
			SampleSize:         getEnvInt("GAMESEARCH_INGEST_SAMPLE", 25),
			ReviewsCap:         getEnvInt("GAMESEARCH_INGEST_REVIEWS_CAP", 200),
			NewsCount:          getEnvInt("GAMESEARCH_INGEST_NEWS_COUNT", 10),
			NewsTags:           getEnv("GAMESEARCH_INGEST_NEWS_TAGS", ""),
			Concurrency:        getEnvInt("GAMESEARCH_INGEST_CONCURRENCY", 2),
			MinRecommendations: getEnvInt("GAMESEARCH_INGEST_MIN_RECS", 0),
		},
		Rank: RankConfig{
			TextWeight:     getEnvFloat("GAMESEARCH_RANK_TEXT_WEIGHT", 0.5),
			SemanticWeight: getEnvFloat("GAMESEARCH_RANK_SEMANTIC_WEIGHT", 0.5),
		},
		LogLevel: parseLogLevel(getEnv("GAMESEARCH_LOG_LEVEL", "INFO")),
	}

	if overlay := os.Getenv("GAMESEARCH_CONFIG"); overlay != "" {
		data, err := os.ReadFile(overlay)
		if err != nil {
			return cfg, fmt.Errorf("read config overlay %s: %w", overlay, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config overlay %s: %w", overlay, err)
		}
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
