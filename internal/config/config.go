package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	Environment string `validate:"oneof=development production test"`

	// GoldAPI upstream (time series of daily prices)
	GoldAPIKey     string
	GoldAPIBaseURL string `validate:"required,url"`

	// FX rates service used for currency conversion
	FXAPIBaseURL string `validate:"required,url"`
	BaseCurrency string `validate:"required,len=3,uppercase"`

	// GNews (news passthrough)
	GNewsAPIKey  string
	GNewsBaseURL string `validate:"required,url"`

	HTTPTimeout       time.Duration `validate:"gt=0"`
	CacheSingleflight bool
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		GoldAPIKey:     getEnv("GOLD_API_KEY", getEnv("NEXT_PUBLIC_GOLD_API_KEY", "")),
		GoldAPIBaseURL: getEnv("GOLD_API_BASE_URL", "https://www.goldapi.io/api"),

		FXAPIBaseURL: getEnv("FX_API_BASE_URL", "https://open.er-api.com/v6"),
		BaseCurrency: strings.ToUpper(getEnv("BASE_CURRENCY", "USD")),

		GNewsAPIKey:  getEnv("GNEWS_API_KEY", ""),
		GNewsBaseURL: getEnv("GNEWS_BASE_URL", "https://gnews.io/api/v4"),

		HTTPTimeout:       time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		CacheSingleflight: getEnv("CACHE_SINGLEFLIGHT", "false") == "true",
	}
}

// Validate checks the loaded values. A missing GOLD_API_KEY is not an error here;
// the server starts and reports it per request, like the news key.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}
