package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
)

// App holds the service configuration, loaded from the environment.
type App struct {
	Port        string `validate:"required"`
	Environment string `validate:"oneof=sandbox production"`

	// Gateway endpoint and merchant credentials.
	APIURL            string `validate:"required,url"`
	MerchantPosID     string `validate:"required"`
	SecondKey         string `validate:"required"`
	OAuthClientID     string `validate:"required"`
	OAuthClientSecret string `validate:"required"`

	// URL templates; {payment_id} is replaced with the payment identifier.
	NotifyURL   string
	ContinueURL string

	// AllowMD5Callbacks permits legacy MD5-signed notifications.
	// Disabled by default.
	AllowMD5Callbacks bool

	DatabasePath string `validate:"required"`

	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableOpenSearch bool
}

var (
	instance *App
	validate *validator.Validate
	once     sync.Once
)

// Load reads the configuration from the environment. The gateway base URL
// defaults to the sandbox unless PAYU_ENVIRONMENT=production, and can be
// overridden outright with PAYU_API_URL.
func Load() (*App, error) {
	environment := GetEnv("PAYU_ENVIRONMENT", "sandbox")
	apiURL := "https://secure.snd.payu.com"
	if environment == "production" {
		apiURL = "https://secure.payu.com"
	}
	apiURL = GetEnv("PAYU_API_URL", apiURL)

	cfg := &App{
		Port:              GetEnv("APP_PORT", "9999"),
		Environment:       environment,
		APIURL:            apiURL,
		MerchantPosID:     GetEnv("PAYU_POS_ID", ""),
		SecondKey:         GetEnv("PAYU_SECOND_KEY", ""),
		OAuthClientID:     GetEnv("PAYU_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: GetEnv("PAYU_OAUTH_CLIENT_SECRET", ""),
		NotifyURL:         GetEnv("PAYU_NOTIFY_URL", ""),
		ContinueURL:       GetEnv("PAYU_CONTINUE_URL", ""),
		AllowMD5Callbacks: GetBoolEnv("PAYU_ALLOW_MD5", false),
		DatabasePath:      GetEnv("DATABASE_PATH", "data/payments.db"),
		OpenSearchURL:     GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
		OpenSearchUser:    GetEnv("OPENSEARCH_USER", ""),
		OpenSearchPass:    GetEnv("OPENSEARCH_PASSWORD", ""),
		EnableOpenSearch:  GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
	}

	if err := Validator().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	instance = cfg
	return cfg, nil
}

// Get returns the loaded configuration. Load must have been called.
func Get() *App {
	return instance
}

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
	})
	return validate
}

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a
// default value.
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a
// default value.
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
