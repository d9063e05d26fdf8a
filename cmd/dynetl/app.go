package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"dynetl/internal/config"
	"dynetl/internal/events"
	"dynetl/internal/metrics"
	"dynetl/internal/metrics/datadog"
	"dynetl/internal/metrics/prompush"
	"dynetl/internal/normalize"
	"dynetl/internal/pipeline"
	"dynetl/internal/storage"
)

// Function variables used as test seams.
var (
	openStore    = storage.New
	newPublisher = events.New
)

// app carries the resolved configuration and shared collaborators of one
// command invocation.
type app struct {
	cfgPath string
	verbose bool

	cfg    config.Config
	logger *log.Logger
	stdout io.Writer
	stderr io.Writer
	outMu  sync.Mutex

	store     storage.Store
	publisher events.Publisher
	flush     func()
}

// load reads the config file (if any), applies environment overrides and
// validates the result. Warnings are printed; errors abort.
func (a *app) load() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintf(a.stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid")
	}
	a.cfg = cfg
	a.logger = log.New(a.stderr, "", log.LstdFlags)
	return nil
}

// open loads config, applies any overrides from flags and opens the store.
// Callers must defer close.
func (a *app) open(ctx context.Context, overrides ...func(*config.Config)) error {
	if err := a.load(); err != nil {
		return err
	}
	for _, o := range overrides {
		o(&a.cfg)
	}
	st, err := openStore(ctx, storage.Config{
		Kind:     a.cfg.Storage.Kind,
		DSN:      a.cfg.Storage.DSN,
		MaxConns: a.cfg.Storage.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("open %s store: %w", a.cfg.Storage.Kind, err)
	}
	a.store = st
	if a.verbose {
		a.logger.Printf("storage: kind=%s", a.cfg.Storage.Kind)
	}
	return nil
}

// openIngester opens the store plus the metrics backend and event publisher
// and returns an Ingester wired to all three.
func (a *app) openIngester(ctx context.Context, overrides ...func(*config.Config)) (*pipeline.Ingester, error) {
	if err := a.open(ctx, overrides...); err != nil {
		return nil, err
	}
	a.flush = a.setupMetrics()

	pub, err := newPublisher(events.Config{
		Kind:    a.cfg.Events.Kind,
		Brokers: a.cfg.Events.Brokers,
		Topic:   a.cfg.Events.Topic,
	})
	if err != nil {
		a.logger.Printf("events: %v; schema changes will not be published", err)
		pub = events.Nop{}
	}
	a.publisher = pub

	norm := normalize.New(normalize.OptionsFromConfig(a.cfg.Ingest))
	return pipeline.New(a.store, norm,
		pipeline.WithPublisher(pub),
		pipeline.WithLogger(a.logger),
		pipeline.WithJob(a.cfg.Job),
		pipeline.WithVerbose(a.verbose),
	), nil
}

// setupMetrics installs the configured backend and returns its flush hook.
func (a *app) setupMetrics() func() {
	m := a.cfg.Metrics
	switch m.Backend {
	case "prometheus":
		b, err := prompush.NewBackend(a.cfg.Job, m.PushgatewayURL)
		if err != nil {
			a.logger.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		metrics.SetBackend(b)
	case "datadog":
		addr := m.DogStatsDAddr
		if addr == "" {
			addr = "127.0.0.1:8125"
		}
		b, err := datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "dynetl.", GlobalTags: []string{"job:" + a.cfg.Job}})
		if err != nil {
			a.logger.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		metrics.SetBackend(b)
	default:
		if a.verbose {
			a.logger.Printf("metrics: disabled (backend=%q)", m.Backend)
		}
		return func() {}
	}
	if a.verbose {
		a.logger.Printf("metrics: backend=%s job=%s", m.Backend, a.cfg.Job)
	}
	return func() {
		if err := metrics.Flush(); err != nil {
			a.logger.Printf("metrics: flush error: %v", err)
		}
	}
}

func (a *app) close() {
	if a.flush != nil {
		a.flush()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Printf("events: close: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Printf("storage: close: %v", err)
		}
	}
}
