// Package config defines the configuration of the lawn-care notification
// service. Configuration is loaded once at process start and is immutable
// thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup.
package config

import (
	"time"

	"lawncare/internal/types"
)

// SecretString is an alias for types.SecretString so config structs can
// declare secrets without importing types.
type SecretString = types.SecretString

// Storage drivers.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Weather sources.
const (
	WeatherSourceMock      = "mock"
	WeatherSourceOpenMeteo = "open-meteo"
)

// Config is the top-level configuration struct.
// Sub-components receive only the config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"lawncare-notifications"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Weather   WeatherConfig
	Providers ProvidersConfig
	Company   CompanyConfig
	AWS       AWSConfig
	Security  SecurityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	PublicURL       string        `envconfig:"PUBLIC_URL" default:"http://localhost:8080" validate:"url"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// StorageConfig selects and tunes the repository backend.
type StorageConfig struct {
	Driver string       `envconfig:"STORAGE_DRIVER" default:"memory" validate:"oneof=memory postgres"`
	URL    SecretString `envconfig:"DATABASE_URL" validate:"required_if=Driver postgres"`

	// SeedDemoData fills the in-memory store with sample appointments and
	// provider configs at startup.
	SeedDemoData bool `envconfig:"SEED_DEMO_DATA" default:"true"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// RedisConfig configures the forecast cache. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string       `envconfig:"REDIS_ADDR"`
	Password SecretString `envconfig:"REDIS_PASSWORD"`
	DB       int          `envconfig:"REDIS_DB" default:"0"`
}

// WeatherConfig configures where forecasts come from.
type WeatherConfig struct {
	Source       string        `envconfig:"WEATHER_SOURCE" default:"mock" validate:"oneof=mock open-meteo"`
	BaseURL      string        `envconfig:"OPEN_METEO_URL" default:"https://api.open-meteo.com" validate:"url"`
	Latitude     float64       `envconfig:"WEATHER_LATITUDE" default:"35.7796" validate:"min=-90,max=90"`
	Longitude    float64       `envconfig:"WEATHER_LONGITUDE" default:"-78.6382" validate:"min=-180,max=180"`
	Timezone     string        `envconfig:"WEATHER_TIMEZONE" default:"America/New_York"`
	ForecastDays int           `envconfig:"WEATHER_FORECAST_DAYS" default:"15" validate:"min=1,max=16"`
	CacheTTL     time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"30m"`
	Timeout      time.Duration `envconfig:"WEATHER_TIMEOUT" default:"5s"`
}

// ProvidersConfig tunes outbound vendor calls and optionally seeds default
// provider configs from the environment.
type ProvidersConfig struct {
	HTTPTimeout time.Duration `envconfig:"PROVIDER_HTTP_TIMEOUT" default:"10s"`
	MaxRetries  int           `envconfig:"PROVIDER_MAX_RETRIES" default:"1" validate:"min=0,max=5"`
	RetryBase   time.Duration `envconfig:"PROVIDER_RETRY_BASE" default:"500ms"`

	// StubMode replaces every vendor with a log-only sender.
	StubMode bool `envconfig:"PROVIDER_STUB_MODE" default:"false"`

	SendGridAPIKey   SecretString `envconfig:"SENDGRID_API_KEY"`
	EmailFromAddress string       `envconfig:"EMAIL_FROM_ADDRESS" default:"service@greenacres-lawn.example"`
	EmailFromName    string       `envconfig:"EMAIL_FROM_NAME" default:"Green Acres Lawn Care"`

	TwilioAccountSID string       `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  SecretString `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string       `envconfig:"TWILIO_FROM_NUMBER"`
}

// CompanyConfig is the sender identity merged into every template as
// companyName and companyPhone.
type CompanyConfig struct {
	Name  string `envconfig:"COMPANY_NAME" default:"Green Acres Lawn Care"`
	Phone string `envconfig:"COMPANY_PHONE" default:"(919) 555-0142"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// NotificationQueue is the SQS queue for asynchronous dispatch. When
	// empty the API dispatches inline.
	NotificationQueue string `envconfig:"SQS_NOTIFICATIONS" validate:"omitempty,url"`

	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"LawnCare"`
	EnableMetrics   bool   `envconfig:"ENABLE_CLOUDWATCH_METRICS" default:"false"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// SecurityConfig holds CORS settings.
type SecurityConfig struct {
	CorsAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
