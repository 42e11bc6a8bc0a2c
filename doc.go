// Package latencysvc implements a synthetic load generating HTTP service used
// for latency benchmarking.
//
// Every request to "/" runs a fixed amount of simulated CPU and memory work,
// calls a downstream backend, and has its wall clock duration recorded in a
// histogram that is exposed on "/metrics" in the Prometheus text format:
//
//	hist := histogrambp.New(cfg.Buckets)
//	svc, err := latencysvc.NewService(latencysvc.Args{
//		Histogram: hist,
//		Work:      cfg.Work,
//		Backend:   backend,
//	})
//	srv, err := httpbp.NewServer(httpbp.ServerArgs{
//		Addr:      cfg.Addr(),
//		Endpoints: svc.Endpoints(cfg.Workers),
//	})
//	err = latencysvc.Serve(ctx, srv, cfg.StopTimeout)
package latencysvc
