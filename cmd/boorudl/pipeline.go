package main

import (
	"context"
	"fmt"

	"boorudl/pkg/auth"
	"boorudl/pkg/booru"
	"boorudl/pkg/config"
	"boorudl/pkg/crawler"
	"boorudl/pkg/filter"
	"boorudl/pkg/logger"
	"boorudl/pkg/metrics"
	"boorudl/pkg/ratelimit"
	"boorudl/pkg/retry"
	"boorudl/pkg/storage"
)

// pipeline is everything one crawl needs, built once per process
type pipeline struct {
	cfg      *config.Config
	log      logger.Logger
	jobs     []crawler.Job
	runner   *crawler.Runner
	recorder *metrics.Recorder
}

// loadRuntime loads the validated configuration and installs the logger
func loadRuntime() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, commandLineFlags())
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetLogger(log)
	return cfg, log, nil
}

// newPipeline resolves cfg into jobs and wires the shared collaborators
func newPipeline(ctx context.Context, cfg *config.Config, log logger.Logger) (*pipeline, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}
	for _, w := range resolved.Warnings {
		log.Warn(w)
	}

	sections, err := selectSections(resolved.Sections, sectionNames)
	if err != nil {
		return nil, err
	}
	endpoints, err := selectEndpoints(resolved.Endpoints, endpointNames)
	if err != nil {
		return nil, err
	}

	if creds, err := auth.NewManager(); err != nil {
		log.WithError(err).Warn("Credential store unavailable, using configured credentials only")
	} else {
		endpoints = creds.Apply(endpoints, log)
	}

	recorder := metrics.New()
	limiter := ratelimit.NewHostLimiter(cfg.Crawl.RequestsPerSecond, 1)
	limiter.OnDelay = recorder.ThrottleDelay

	clientOpts := []booru.Option{
		booru.WithLimiter(limiter),
		booru.WithObserver(recorder.APIResponse),
	}
	api := booru.NewClient(cfg.Crawl.RequestTimeout, cfg.UserAgentString(), log, clientOpts...)
	files := booru.NewClient(cfg.Crawl.DownloadTimeout, cfg.UserAgentString(), log, clientOpts...)

	endpoints = detectDialects(ctx, api, endpoints, log)

	jobs := crawler.Plan(sections, endpoints, log)
	if len(jobs) == 0 {
		return nil, fmt.Errorf("nothing to crawl: no section is routed to a usable endpoint")
	}

	store, err := storage.NewManager(cfg.Output.BaseDirectory, cfg.Output.OrganizeByType)
	if err != nil {
		return nil, err
	}

	deps := crawler.Dependencies{
		Fetcher:    api,
		Downloader: storage.NewDownloader(store, files),
		Layout:     store,
		Recorder:   recorder,
		Blacklist:  resolved.Blacklist,
	}

	opts := crawler.Options{
		StartCursor:      cfg.Crawl.StartCursor,
		PostInterval:     cfg.Crawl.PostInterval,
		LowYieldMinLoops: cfg.Crawl.LowYieldMinLoops,
		LowYieldRatio:    cfg.Crawl.LowYieldRatio,
		FetchAttempts:    cfg.Crawl.FetchAttempts,
		RetryBackoff:     retry.NewErrorTypeBackoff(),
		CheckpointDir:    store.BaseDir(),
		Resume:           resume,
	}

	return &pipeline{
		cfg:      cfg,
		log:      log,
		jobs:     jobs,
		runner:   crawler.NewRunner(deps, opts, cfg.Crawl.ConcurrentWorkers, log),
		recorder: recorder,
	}, nil
}

// serveMetrics starts the metrics listener when an address is configured
func (p *pipeline) serveMetrics(ctx context.Context) {
	addr := p.cfg.Metrics.ListenAddress
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, p.recorder, p.log); err != nil {
			p.log.WithError(err).WithField("addr", addr).Error("Metrics server stopped")
		}
	}()
}

// selectSections keeps the sections named on the command line, all when names is empty
func selectSections(all []filter.Section, names []string) ([]filter.Section, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]filter.Section, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}

	out := make([]filter.Section, 0, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown section %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}

// selectEndpoints keeps the endpoints named on the command line, all when names is empty
func selectEndpoints(all []booru.Endpoint, names []string) ([]booru.Endpoint, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]booru.Endpoint, len(all))
	for _, ep := range all {
		byName[ep.Name] = ep
	}

	out := make([]booru.Endpoint, 0, len(names))
	for _, name := range names {
		ep, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown endpoint %q", name)
		}
		out = append(out, ep)
	}
	return out, nil
}

// detectDialects probes every endpoint configured without a dialect.
// Endpoints that stay unknown are left for Plan to skip.
func detectDialects(ctx context.Context, c *booru.Client, endpoints []booru.Endpoint, log logger.Logger) []booru.Endpoint {
	out := make([]booru.Endpoint, len(endpoints))
	for i, ep := range endpoints {
		out[i] = ep
		if ep.Dialect.Known() {
			continue
		}

		d := booru.Detect(ctx, c, ep.BaseURL)
		fields := map[string]interface{}{
			"endpoint": ep.Name,
			"url":      ep.BaseURL,
			"dialect":  d.String(),
		}
		if !d.Known() {
			log.WarnWithFields("Could not detect API dialect", fields)
			continue
		}
		log.InfoWithFields("Detected API dialect", fields)
		out[i] = ep.WithDialect(d)
	}
	return out
}
