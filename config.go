package latencysvc

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v9"

	"github.com/latencylab/latencysvc/backendbp"
	"github.com/latencylab/latencysvc/configbp"
	"github.com/latencylab/latencysvc/errorsbp"
	"github.com/latencylab/latencysvc/histogrambp"
	"github.com/latencylab/latencysvc/log"
	"github.com/latencylab/latencysvc/workbp"
)

// Defaults used by DefaultConfig.
const (
	DefaultPort        = 8080
	DefaultWorkers     = 200
	DefaultStopTimeout = 10 * time.Second
)

// Config is the configuration of the service.
//
// Values are resolved in this order, the last one winning: DefaultConfig,
// the YAML file, environment variables.
type Config struct {
	// Port is the TCP port the service listens on.
	Port int `yaml:"port" env:"PORT"`

	// Workers is the number of requests to "/" processed concurrently.
	// Excess requests wait in an unbounded queue.
	Workers int64 `yaml:"workers" env:"WORKERS"`

	// StopTimeout bounds the graceful shutdown. 0 means no bound.
	StopTimeout time.Duration `yaml:"stopTimeout" env:"STOP_TIMEOUT"`

	// Buckets are the histogram upper bounds in seconds.
	Buckets histogrambp.Buckets `yaml:"buckets" env:"BUCKETS"`

	Backend backendbp.Config `yaml:"backend"`
	Work    workbp.Simulator `yaml:"work"`
	Admin   AdminConfig      `yaml:"admin"`
	Log     log.Config       `yaml:"log"`
	Sentry  log.SentryConfig `yaml:"sentry"`
}

// AdminConfig configures the optional admin server.
type AdminConfig struct {
	// Addr enables the admin server on this address when non-empty.
	Addr string `yaml:"addr" env:"ADMIN_ADDR"`
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		Port:        DefaultPort,
		Workers:     DefaultWorkers,
		StopTimeout: DefaultStopTimeout,
		Buckets:     histogrambp.DefaultBuckets,
		Backend:     backendbp.DefaultConfig(),
		Work:        workbp.Default,
		Log: log.Config{
			Level: log.InfoLevel,
		},
	}
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// LoadConfig resolves the configuration from DefaultConfig, the YAML file at
// path (skipped when path is empty) and the environment, then validates it.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := configbp.ParseStrictFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("latencysvc: loading config file: %w", err)
		}
	}

	// The circuit breaker is configured from YAML only. Keep env from
	// allocating an empty one.
	breaker := cfg.Backend.CircuitBreaker
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("latencysvc: parsing environment: %w", err)
	}
	cfg.Backend.CircuitBreaker = breaker

	return cfg, cfg.Validate()
}

// Validate reports every invalid value in c.
func (c Config) Validate() error {
	var batch errorsbp.Batch
	if c.Port < 0 || c.Port > 65535 {
		batch.Add(fmt.Errorf("latencysvc: port must be in [0, 65535], got %d", c.Port))
	}
	if c.Workers <= 0 {
		batch.Add(fmt.Errorf("latencysvc: workers must be positive, got %d", c.Workers))
	}
	if c.StopTimeout < 0 {
		batch.Add(fmt.Errorf("latencysvc: stopTimeout must be non-negative, got %v", c.StopTimeout))
	}
	if c.Buckets.Len() == 0 {
		batch.Add(errors.New("latencysvc: buckets must be non-empty"))
	}
	batch.AddPrefix("backend", c.Backend.Validate())
	batch.AddPrefix("work", c.Work.Validate())
	return batch.Compile()
}
