package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the concierge service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Indexer   IndexerConfig   `mapstructure:"indexer"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and admin auth settings
type ServerConfig struct {
	Listen            string `mapstructure:"listen"`
	JWTSecret         string `mapstructure:"jwt_secret"`
	AdminPasswordHash string `mapstructure:"admin_password_hash"` // bcrypt
}

// ProvidersConfig groups the external model providers
type ProvidersConfig struct {
	Groq   GroqConfig   `mapstructure:"groq"`
	Nvidia NvidiaConfig `mapstructure:"nvidia"`
}

// GroqConfig configures the OpenAI-compatible completion provider.
// StreamModels and JSONModels are ordered fallback lists.
type GroqConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	StreamModels []string      `mapstructure:"stream_models"`
	JSONModels   []string      `mapstructure:"json_models"`
	IntentModel  string        `mapstructure:"intent_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// NvidiaConfig configures the retrieval embedding provider
type NvidiaConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabasesConfig contains datastore connection settings
type DatabasesConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type RedisConfig struct {
	Host    string        `mapstructure:"host"`
	Port    string        `mapstructure:"port"`
	Pass    string        `mapstructure:"pass"`
	DB      int           `mapstructure:"db"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if r.Host == "" || r.Port == "" {
		return fmt.Errorf("databases.redis.host and databases.redis.port are required")
	}
	return nil
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
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

// VectorConfig contains the vector index connection settings
type VectorConfig struct {
	Pinecone PineconeConfig `mapstructure:"pinecone"`
}

type PineconeConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Host    string        `mapstructure:"host"` // index host, e.g. https://idx-xxxx.svc.pinecone.io
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChatConfig tunes the discovery pipeline
type ChatConfig struct {
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	MaxHistoryTurns int           `mapstructure:"max_history_turns"`
	TopK            int           `mapstructure:"top_k"`
}

func (c ChatConfig) Validate() error {
	if c.MaxHistoryTurns <= 0 {
		return fmt.Errorf("chat.max_history_turns must be > 0")
	}
	if c.TopK <= 0 {
		return fmt.Errorf("chat.top_k must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("chat.session_ttl must be > 0")
	}
	return nil
}

// IndexerConfig tunes the background catalog-to-vector sync
type IndexerConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	QueueSize  int    `mapstructure:"queue_size"`
	ResyncCron string `mapstructure:"resync_cron"`
}

func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("providers.groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("providers.groq.stream_models", []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"})
	viper.SetDefault("providers.groq.json_models", []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"})
	viper.SetDefault("providers.groq.intent_model", "llama-3.1-8b-instant")
	viper.SetDefault("providers.groq.timeout", 60*time.Second)
	viper.SetDefault("providers.nvidia.base_url", "https://integrate.api.nvidia.com/v1")
	viper.SetDefault("providers.nvidia.model", "nvidia/nv-embedqa-e5-v5")
	viper.SetDefault("providers.nvidia.timeout", 30*time.Second)
	viper.SetDefault("vector.pinecone.timeout", 15*time.Second)
	viper.SetDefault("databases.redis.timeout", 5*time.Second)
	viper.SetDefault("chat.session_ttl", time.Hour)
	viper.SetDefault("chat.max_history_turns", 12)
	viper.SetDefault("chat.top_k", 8)
	viper.SetDefault("indexer.enabled", true)
	viper.SetDefault("indexer.queue_size", 256)
	viper.SetDefault("indexer.resync_cron", "@daily")

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("CONCIERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Databases.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Chat.Validate(); err != nil {
		panic(err)
	}
	return &config
}
