// Command mockbackend is a stand-in backend for latencysvc benchmarks.
//
// It answers every request with "ok" after a fixed delay, configured by the
// DELAY environment variable (default 78ms). It listens on PORT (default
// 8080).
package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v9"

	"github.com/latencylab/latencysvc"
	"github.com/latencylab/latencysvc/httpbp"
	"github.com/latencylab/latencysvc/log"
)

type config struct {
	Port        int           `env:"PORT" envDefault:"8080"`
	Delay       time.Duration `env:"DELAY" envDefault:"78ms"`
	StopTimeout time.Duration `env:"STOP_TIMEOUT" envDefault:"10s"`
	Log         log.Config
}

func main() {
	os.Exit(run())
}

func run() int {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.InitFromConfig(log.Config{})
		log.Errorw("mockbackend: invalid configuration", "err", err)
		return 1
	}
	log.InitFromConfig(cfg.Log)
	defer log.Sync()

	srv, err := httpbp.NewServer(httpbp.ServerArgs{
		Addr: ":" + strconv.Itoa(cfg.Port),
		Endpoints: map[httpbp.Pattern]httpbp.Endpoint{
			"/": {
				Name:    "mock",
				Methods: []string{httpbp.AnyMethod},
				Handle:  delayed(cfg.Delay),
			},
		},
	})
	if err != nil {
		log.Errorw("mockbackend: failed to create server", "err", err)
		return 1
	}

	log.Infow("mockbackend: starting", "port", cfg.Port, "delay", cfg.Delay)
	if err := latencysvc.Serve(context.Background(), srv, cfg.StopTimeout); err != nil {
		log.Errorw("mockbackend: server failed", "err", err)
		return 1
	}
	return 0
}

// delayed answers "ok" after delay, or gives up when the client goes away.
func delayed(delay time.Duration) httpbp.HandlerFunc {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		return httpbp.WritePlainText(w, http.StatusOK, "ok")
	}
}
