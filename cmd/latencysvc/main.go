// Command latencysvc runs the latency benchmark service.
//
// Configuration is read from the YAML file named by $LATENCYSVC_CONFIG_PATH
// (optional) and overridden by environment variables, e.g. PORT and
// BACKEND_URL.
package main

import (
	"context"
	"math"
	"os"

	"github.com/latencylab/latencysvc"
	"github.com/latencylab/latencysvc/backendbp"
	"github.com/latencylab/latencysvc/batchcloser"
	"github.com/latencylab/latencysvc/configbp"
	"github.com/latencylab/latencysvc/histogrambp"
	"github.com/latencylab/latencysvc/httpbp"
	"github.com/latencylab/latencysvc/log"
	"github.com/latencylab/latencysvc/prometheusbp"
	"github.com/latencylab/latencysvc/runtimebp"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := latencysvc.LoadConfig(configbp.ConfigPath)
	if err != nil {
		log.InitFromConfig(log.Config{})
		log.Errorw("latencysvc: invalid configuration", "err", err)
		return 1
	}
	log.InitFromConfig(cfg.Log)
	defer log.Sync()

	sentry, err := log.InitSentry(cfg.Sentry)
	if err != nil {
		log.Errorw("latencysvc: failed to init sentry", "err", err)
		return 1
	}
	var closers batchcloser.BatchCloser
	defer func() {
		if err := closers.Close(); err != nil {
			log.Errorw("latencysvc: failed to release resources", "err", err)
		}
	}()
	closers.Add("sentry", sentry)

	oldProcs, newProcs := runtimebp.GOMAXPROCS(1, math.MaxInt)
	log.Infow("latencysvc: GOMAXPROCS", "old", oldProcs, "new", newProcs)

	hist := histogrambp.New(cfg.Buckets)
	prometheusbp.Registry.MustRegister(hist)
	prometheusbp.RecordBuildInfo()

	backend, err := backendbp.New(cfg.Backend)
	if err != nil {
		log.Errorw("latencysvc: failed to create backend client", "err", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	closers.Add("context", batchcloser.WrapCancel(cancel))

	if err := backend.WaitReady(ctx, cfg.Backend.WaitAttempts, cfg.Backend.WaitDelay); err != nil {
		log.Errorw("latencysvc: backend never became ready", "url", backend.URL(), "err", err)
		return 1
	}

	svc, err := latencysvc.NewService(latencysvc.Args{
		Histogram: hist,
		Work:      cfg.Work,
		Backend:   backend,
	})
	if err != nil {
		log.Errorw("latencysvc: failed to create service", "err", err)
		return 1
	}

	srv, err := httpbp.NewServer(httpbp.ServerArgs{
		Addr:      cfg.Addr(),
		Endpoints: svc.Endpoints(cfg.Workers),
	})
	if err != nil {
		log.Errorw("latencysvc: failed to create server", "err", err)
		return 1
	}

	if cfg.Admin.Addr != "" {
		admin := httpbp.NewAdminServer(httpbp.AdminServerArgs{
			AdminAddr: cfg.Admin.Addr,
		})
		go func() {
			if err := admin.Serve(); err != nil {
				log.Errorw("latencysvc: admin server failed", "err", err)
				cancel()
			}
		}()
		closers.Add("admin server", batchcloser.WrapContext(admin.Close, cfg.StopTimeout))
	}

	log.Infow(
		"latencysvc: starting",
		"addr", cfg.Addr(),
		"backend", backend.URL(),
		"workers", cfg.Workers,
		"buckets", cfg.Buckets.String(),
	)
	if err := latencysvc.Serve(ctx, srv, cfg.StopTimeout); err != nil {
		log.Errorw("latencysvc: server failed", "err", err)
		return 1
	}
	return 0
}
