package client

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/mr-tron/base58"
	"golang.org/x/oauth2"
)

// Platform identifies the store front the client runs on.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

func (p Platform) valid() bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	}
	return false
}

// Config configures a Client. Zero Timeout falls back to 15s.
type Config struct {
	BaseURL  string        `env:"PURCHASEKIT_BASE_URL"`
	Platform Platform      `env:"PURCHASEKIT_PLATFORM"`
	DeviceID string        `env:"PURCHASEKIT_DEVICE_ID"`
	Timeout  time.Duration `env:"PURCHASEKIT_TIMEOUT" envDefault:"15s"`

	// HTTPClient overrides the default client (and its Timeout).
	HTTPClient *http.Client `env:"-"`
	// TokenSource, when set, bearer-authenticates every request.
	TokenSource oauth2.TokenSource `env:"-"`
}

// ConfigFromEnv reads PURCHASEKIT_* variables into a Config.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config from env: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("client config: base URL required")
	}
	if !c.Platform.valid() {
		return fmt.Errorf("client config: unknown platform %q", c.Platform)
	}
	return nil
}

// NewDeviceID generates a random install identifier: 16 bytes of entropy,
// base58 so it stays short and copy-paste safe in logs and support tickets.
func NewDeviceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("device id entropy unavailable: " + err.Error())
	}
	return base58.Encode(b)
}
