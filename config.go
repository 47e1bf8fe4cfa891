package flagkit

import (
	"errors"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/flagkit/pkg/event"
)

// Config holds the env-driven client settings. An empty events endpoint
// leaves dispatch disabled.
type Config struct {
	EventsEndpoint  string        `env:"FLAGKIT_EVENTS_ENDPOINT"`
	DispatchTimeout time.Duration `env:"FLAGKIT_DISPATCH_TIMEOUT" envDefault:"10s"`
	DispatchRetries int           `env:"FLAGKIT_DISPATCH_RETRIES" envDefault:"3"`
	ClientName      string        `env:"FLAGKIT_CLIENT_NAME" envDefault:"flagkit"`
	ClientVersion   string        `env:"FLAGKIT_CLIENT_VERSION"`
}

// LoadConfig reads the optional .env files and parses the environment. A
// missing .env file is not an error.
func LoadConfig(envFiles ...string) (Config, error) {
	_ = godotenv.Load(envFiles...)

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Join(ErrFailedToLoadConfig, err)
	}
	return cfg, nil
}

// NewFromConfig builds a Client wired per the config: an HTTP dispatcher
// when an events endpoint is set, noop dispatch otherwise. Extra options
// are applied after the config and may override it.
func NewFromConfig(datafile []byte, cfg Config, opts ...Option) (*Client, error) {
	base := []Option{WithClientInfo(cfg.ClientName, cfg.ClientVersion)}
	if cfg.EventsEndpoint != "" {
		d, err := event.NewHTTPDispatcher(cfg.EventsEndpoint,
			event.WithHTTPClient(&http.Client{Timeout: cfg.DispatchTimeout}),
			event.WithRetries(cfg.DispatchRetries),
		)
		if err != nil {
			return nil, err
		}
		base = append(base, WithDispatcher(d))
	}
	return New(datafile, append(base, opts...)...)
}
