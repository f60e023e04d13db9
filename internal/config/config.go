package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Database  DatabaseConfig
	LLM       LLMConfig
	Tokenizer TokenizerConfig
	Server    ServerConfig
	LogLevel  string `mapstructure:"log_level"`
}

// DatabaseConfig names the store's connection targets. DSN backs the
// blocking engine, AsyncDSN the non-blocking one; either may be empty.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	AsyncDSN string `mapstructure:"async_dsn"`
}

// LLMConfig holds the chat-completion client configuration.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// TokenizerConfig selects the token counting scheme.
type TokenizerConfig struct {
	UseLocalModel bool   `mapstructure:"use_local_model"`
	Encoding      string `mapstructure:"encoding"`
	TokenizerPath string `mapstructure:"tokenizer_path"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// MissingKeyError reports a required setting that is absent at startup.
// It is fatal; no operation runs without the key.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("config: required key %q is not set", e.Key)
}

// Load reads config.yaml (path overridable via CONFIG_PATH), with
// CHATMEM_-prefixed environment variables taking precedence, e.g.
// CHATMEM_LLM_API_KEY for llm.api_key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		v.SetConfigFile(p)
	}

	v.SetEnvPrefix("CHATMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.dsn", "file:chat_history.db")
	v.SetDefault("database.async_dsn", "file:chat_history.db")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("tokenizer.use_local_model", false)
	v.SetDefault("tokenizer.encoding", "cl100k_base")
	v.SetDefault("tokenizer.tokenizer_path", "")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
		// No config file is fine; environment-only operation.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		return nil, &MissingKeyError{Key: "llm.api_key"}
	}
	if cfg.Tokenizer.UseLocalModel && cfg.Tokenizer.TokenizerPath == "" {
		return nil, &MissingKeyError{Key: "tokenizer.tokenizer_path"}
	}

	return &cfg, nil
}
