package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research service
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Research ResearchConfig `mapstructure:"research"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address          string        `mapstructure:"address"`
	SSEKeepalive     time.Duration `mapstructure:"sse_keepalive"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	MaxActiveRuns    int           `mapstructure:"max_active_runs"`
	SessionRetention time.Duration `mapstructure:"session_retention"`
}

// LLMConfig contains the OpenAI-compatible provider configuration
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
}

// ResearchConfig tunes the pipeline stages
type ResearchConfig struct {
	DepthQueries        map[string]int `mapstructure:"depth_queries"` // quick/standard/deep -> query count
	MaxConcurrentFetch  int            `mapstructure:"max_concurrent_fetch"`
	FetchTimeout        time.Duration  `mapstructure:"fetch_timeout"`
	FetchRetries        int            `mapstructure:"fetch_retries"`
	RetryBackoff        time.Duration  `mapstructure:"retry_backoff"`
	RelevanceThreshold  float64        `mapstructure:"relevance_threshold"`
	RelevanceWeight     float64        `mapstructure:"relevance_weight"`
	CredibilityWeight   float64        `mapstructure:"credibility_weight"`
	RecencyWeight       float64        `mapstructure:"recency_weight"`
	ChunkSize           int            `mapstructure:"chunk_size"`
	ChunkOverlap        int            `mapstructure:"chunk_overlap"`
	MaxConcurrentEmbeds int            `mapstructure:"max_concurrent_embeds"`
	TopK                int            `mapstructure:"top_k"`
	Outline             []string       `mapstructure:"outline"`
	SectionRetries      int            `mapstructure:"section_retries"`
}

// SourcesConfig contains retrieval source configurations
type SourcesConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	Arxiv     FeedConfig      `mapstructure:"arxiv"`
	Wikipedia FeedConfig      `mapstructure:"wikipedia"`
	NewsAPI   NewsAPIConfig   `mapstructure:"newsapi"`
	FullText  bool            `mapstructure:"full_text"` // fetch article bodies for web results
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider     string `mapstructure:"provider"` // serper or brave
	SerperAPIKey string `mapstructure:"serper_api_key"`
	BraveAPIKey  string `mapstructure:"brave_api_key"`
	MaxResults   int    `mapstructure:"max_results"`
}

// FeedConfig contains settings shared by the specialized feed sources
type FeedConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

// NewsAPIConfig contains NewsAPI settings
type NewsAPIConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Vector   VectorConfig   `mapstructure:"vector"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// VectorConfig selects the vector store backend
type VectorConfig struct {
	Driver     string `mapstructure:"driver"` // pgvector or memory
	Dimensions int    `mapstructure:"dimensions"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("researchd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("RESEARCHD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; defaults + env cover a full run.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.sse_keepalive", "15s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.metrics_enabled", true)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.max_active_runs", 4)
	viper.SetDefault("server.session_retention", "1h")

	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.6)
	viper.SetDefault("llm.max_tokens", 2000)
	viper.SetDefault("llm.timeout", "90s")
	viper.SetDefault("llm.max_retries", 2)

	viper.SetDefault("research.depth_queries", map[string]int{"quick": 3, "standard": 5, "deep": 8})
	viper.SetDefault("research.max_concurrent_fetch", 6)
	viper.SetDefault("research.fetch_timeout", "15s")
	viper.SetDefault("research.fetch_retries", 2)
	viper.SetDefault("research.retry_backoff", "500ms")
	viper.SetDefault("research.relevance_threshold", 0.25)
	viper.SetDefault("research.relevance_weight", 0.5)
	viper.SetDefault("research.credibility_weight", 0.4)
	viper.SetDefault("research.recency_weight", 0.1)
	viper.SetDefault("research.chunk_size", 1000)
	viper.SetDefault("research.chunk_overlap", 200)
	viper.SetDefault("research.max_concurrent_embeds", 4)
	viper.SetDefault("research.top_k", 8)
	viper.SetDefault("research.outline", []string{"Introduction", "Background", "Analysis", "Conclusion"})
	viper.SetDefault("research.section_retries", 2)

	viper.SetDefault("sources.web_search.provider", "serper")
	viper.SetDefault("sources.web_search.max_results", 10)
	viper.SetDefault("sources.arxiv.enabled", true)
	viper.SetDefault("sources.arxiv.endpoint", "http://export.arxiv.org/api/query")
	viper.SetDefault("sources.arxiv.max_results", 5)
	viper.SetDefault("sources.wikipedia.enabled", true)
	viper.SetDefault("sources.wikipedia.endpoint", "https://en.wikipedia.org/w/api.php")
	viper.SetDefault("sources.wikipedia.max_results", 3)
	viper.SetDefault("sources.newsapi.enabled", false)
	viper.SetDefault("sources.newsapi.endpoint", "https://newsapi.org/v2/everything")
	viper.SetDefault("sources.newsapi.max_results", 5)
	viper.SetDefault("sources.full_text", false)

	viper.SetDefault("storage.vector.driver", "pgvector")
	viper.SetDefault("storage.vector.dimensions", 1536)
	viper.SetDefault("storage.redis.host", "")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.timeout", "5s")
	viper.SetDefault("storage.postgres.host", "")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.timeout", "5s")
}

// overrideFromEnv overrides configuration with well-known environment variables
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("llm.api_key", apiKey)
	}
	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		viper.Set("sources.web_search.serper_api_key", apiKey)
	}
	if apiKey := os.Getenv("BRAVE_SEARCH_KEY"); apiKey != "" {
		viper.Set("sources.web_search.brave_api_key", apiKey)
	}
	if apiKey := os.Getenv("NEWSAPI_API_KEY"); apiKey != "" {
		viper.Set("sources.newsapi.api_key", apiKey)
		viper.Set("sources.newsapi.enabled", true)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		viper.Set("storage.postgres.url", url)
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		viper.Set("storage.postgres.host", host)
	}
	if port := os.Getenv("POSTGRES_PORT"); port != "" {
		viper.Set("storage.postgres.port", port)
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		viper.Set("storage.postgres.user", user)
	}
	if pass := os.Getenv("POSTGRES_PASSWORD"); pass != "" {
		viper.Set("storage.postgres.password", pass)
	}
	if db := os.Getenv("POSTGRES_DB"); db != "" {
		viper.Set("storage.postgres.dbname", db)
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		viper.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		viper.Set("storage.redis.port", port)
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		viper.Set("storage.redis.password", password)
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			viper.Set("storage.redis.db", n)
		}
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	for _, depth := range []string{"quick", "standard", "deep"} {
		n, ok := config.Research.DepthQueries[depth]
		if !ok || n < 1 {
			return fmt.Errorf("research.depth_queries.%s must be >= 1", depth)
		}
	}
	if config.Research.MaxConcurrentFetch < 1 {
		return fmt.Errorf("research.max_concurrent_fetch must be >= 1")
	}
	if config.Research.ChunkSize < 1 {
		return fmt.Errorf("research.chunk_size must be >= 1")
	}
	if config.Research.ChunkOverlap >= config.Research.ChunkSize {
		return fmt.Errorf("research.chunk_overlap must be smaller than chunk_size")
	}
	if len(config.Research.Outline) == 0 {
		return fmt.Errorf("research.outline must contain at least one section")
	}
	sum := config.Research.RelevanceWeight + config.Research.CredibilityWeight + config.Research.RecencyWeight
	if sum <= 0 {
		return fmt.Errorf("research scoring weights must sum to a positive value")
	}
	switch config.Storage.Vector.Driver {
	case "pgvector", "memory":
	default:
		return fmt.Errorf("storage.vector.driver must be pgvector or memory, got %q", config.Storage.Vector.Driver)
	}
	return nil
}
