package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config é um pacote auxiliar. Poderia ser uma lib externa*/

type Config struct {
	Port    string `mapstructure:"PORT"`
	BaseURL string `mapstructure:"BASE_URL"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`

	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`

	ProvidersFile          string `mapstructure:"PROVIDERS_FILE"`
	GithubWebhookSecret    string `mapstructure:"GITHUB_WEBHOOK_SECRET"`
	GithubRequireSignature bool   `mapstructure:"GITHUB_REQUIRE_SIGNATURE"`

	OpenAIAPIKey   string `mapstructure:"OPENAI_API_KEY"`
	OpenAIEndpoint string `mapstructure:"OPENAI_ENDPOINT"`
	OpenAIModel    string `mapstructure:"OPENAI_MODEL"`

	AnalysisCacheTTL  time.Duration `mapstructure:"ANALYSIS_CACHE_TTL"`
	AnalysisCacheSize int           `mapstructure:"ANALYSIS_CACHE_SIZE"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Unmarshal only sees env-provided keys that were bound or defaulted
	for _, key := range []string{
		"PORT", "BASE_URL", "DATABASE_URL", "AUTH_JWT_SECRET",
		"PROVIDERS_FILE", "GITHUB_WEBHOOK_SECRET", "GITHUB_REQUIRE_SIGNATURE",
		"OPENAI_API_KEY", "OPENAI_ENDPOINT", "OPENAI_MODEL",
		"ANALYSIS_CACHE_TTL", "ANALYSIS_CACHE_SIZE",
	} {
		_ = viper.BindEnv(key)
	}

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	viper.SetDefault("ANALYSIS_CACHE_TTL", 15*time.Minute)
	viper.SetDefault("ANALYSIS_CACHE_SIZE", 100)

	// environment-only deployments have no .env file
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}

	if config.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if config.AuthJWTSecret == "" {
		return nil, errors.New("AUTH_JWT_SECRET is required")
	}

	return &config, nil
}
