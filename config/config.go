// Package config loads apiguard settings from environment variables.
package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config stores environment-driven settings for one backend target.
type Config struct {
	// BaseURL is the backend's API root.
	BaseURL string `env:"APIGUARD_BASE_URL"`
	// Token is a static bearer token. Either Token or the app
	// credentials must be set for authenticated backends.
	Token string `env:"APIGUARD_TOKEN"`
	// AppID identifies an app installation when minting app tokens.
	AppID string `env:"APIGUARD_APP_ID"`
	// AppPrivateKey is the PEM-encoded RSA key used to sign app tokens.
	AppPrivateKey string `env:"APIGUARD_APP_PRIVATE_KEY"`
	// LogLevel sets the logger level.
	LogLevel string `env:"APIGUARD_LOG_LEVEL" envDefault:"info"`

	Resilience ResilienceConfig
}

// ResilienceConfig stores the tunables of the request pipeline. The
// defaults match the reference deployment: one request in flight, 100
// credits per 10s window, breaker at 5 failures with a 30s cooldown, 3
// retries from a 1s base delay.
type ResilienceConfig struct {
	// QueueSlots caps concurrent in-flight requests.
	QueueSlots int `env:"APIGUARD_QUEUE_SLOTS" envDefault:"1"`
	// BucketCapacity is the rate limiter's burst size.
	BucketCapacity float64 `env:"APIGUARD_BUCKET_CAPACITY" envDefault:"100"`
	// BucketWindow is the window over which a full bucket refills.
	BucketWindow time.Duration `env:"APIGUARD_BUCKET_WINDOW" envDefault:"10s"`
	// BreakerThreshold is the consecutive failures before the circuit opens.
	BreakerThreshold int `env:"APIGUARD_BREAKER_THRESHOLD" envDefault:"5"`
	// BreakerCooldown is how long the circuit stays open.
	BreakerCooldown time.Duration `env:"APIGUARD_BREAKER_COOLDOWN" envDefault:"30s"`
	// MaxRetries is the retry budget per logical request.
	MaxRetries int `env:"APIGUARD_MAX_RETRIES" envDefault:"3"`
	// RetryBaseDelay is the first retry's backoff.
	RetryBaseDelay time.Duration `env:"APIGUARD_RETRY_BASE_DELAY" envDefault:"1s"`
	// RetryMaxDelay caps the backoff.
	RetryMaxDelay time.Duration `env:"APIGUARD_RETRY_MAX_DELAY" envDefault:"30s"`
	// RetryJitter randomizes backoff delays by +/-20%.
	RetryJitter bool `env:"APIGUARD_RETRY_JITTER" envDefault:"false"`
}

// Validation errors.
var (
	// ErrMissingBaseURL indicates Config.BaseURL is empty.
	ErrMissingBaseURL = errors.New("config: base URL is required")

	// ErrInvalidWindow indicates a non-positive bucket window.
	ErrInvalidWindow = errors.New("config: bucket window must be positive")
)

// Load parses environment variables into Config.
func Load() (Config, error) {
	return env.ParseAs[Config]()
}

// Validate checks the configuration for use with a gateway client.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.Resilience.BucketWindow <= 0 {
		return ErrInvalidWindow
	}
	return nil
}

// RefillRate returns the bucket refill rate in credits per second.
func (c *ResilienceConfig) RefillRate() float64 {
	if c.BucketWindow <= 0 {
		return 0
	}
	return c.BucketCapacity / c.BucketWindow.Seconds()
}

// Burst returns the alternate deployment profile: a smaller bucket with
// a faster refill (capacity 30, 3 credits per second), suited to
// backends that enforce short windows.
func Burst() ResilienceConfig {
	return ResilienceConfig{
		QueueSlots:       1,
		BucketCapacity:   30,
		BucketWindow:     10 * time.Second,
		BreakerThreshold: 5,
		BreakerCooldown:  30 * time.Second,
		MaxRetries:       3,
		RetryBaseDelay:   time.Second,
		RetryMaxDelay:    30 * time.Second,
	}
}
