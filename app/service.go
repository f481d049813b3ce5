package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/mtrr/api/control"
	"github.com/kilianp07/mtrr/config"
	"github.com/kilianp07/mtrr/core/dedup"
	"github.com/kilianp07/mtrr/core/events"
	"github.com/kilianp07/mtrr/core/knowledge"
	coremetrics "github.com/kilianp07/mtrr/core/metrics"
	"github.com/kilianp07/mtrr/core/mission"
	coremon "github.com/kilianp07/mtrr/core/monitoring"
	_ "github.com/kilianp07/mtrr/infra/knowledge"
	"github.com/kilianp07/mtrr/infra/logger"
	"github.com/kilianp07/mtrr/infra/metrics"
	"github.com/kilianp07/mtrr/infra/mmt"
	"github.com/kilianp07/mtrr/infra/monitoring"
	"github.com/kilianp07/mtrr/infra/mqtt"
	"github.com/kilianp07/mtrr/infra/redis"
	"github.com/kilianp07/mtrr/internal/eventbus"
)

const defaultFlush = 2 * time.Second

// Service wires the orchestrator to the broker, the knowledge store, the
// control API and the MMT notifier.
type Service struct {
	Orchestrator *mission.Orchestrator

	cfg      *config.Config
	id       string
	log      logger.Logger
	client   *mqtt.PahoClient
	store    knowledge.Store
	dedup    dedup.Store
	notifier *mmt.Notifier
	bus      *eventbus.TypedBus[events.Event]
	sink     coremetrics.MetricsSink
	closers  []func() error
}

// New creates a Service from the configuration.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	s := &Service{cfg: cfg, id: uuid.NewString(), log: logger.New("service")}
	if err := monitoring.Setup(cfg.Sentry); err != nil {
		return nil, err
	}
	if err := s.build(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build(ctx context.Context) error {
	cfg := s.cfg
	store, err := knowledge.NewStore(cfg.Knowledge)
	if err != nil {
		return fmt.Errorf("knowledge store: %w", err)
	}
	s.store = store
	s.closers = append(s.closers, store.Close)
	if err := knowledge.SeedFleet(ctx, store, cfg.Fleet); err != nil {
		return fmt.Errorf("seed fleet: %w", err)
	}

	switch cfg.Dedup.Backend {
	case "redis":
		client, err := redis.NewClient(ctx, cfg.Dedup.Redis)
		if err != nil {
			return fmt.Errorf("dedup: %w", err)
		}
		d := redis.NewDeduplicator(client, cfg.Dedup.Redis.TTL)
		s.dedup = d
		s.closers = append(s.closers, d.Close)
	default:
		s.dedup = dedup.NewMemoryStore()
	}

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	s.sink = sink
	if c, ok := sink.(interface{ Close() }); ok {
		s.closers = append(s.closers, func() error { c.Close(); return nil })
	}
	s.bus = eventbus.NewTyped[events.Event]()
	s.closers = append(s.closers, func() error { s.bus.Close(); return nil })

	client, err := mqtt.NewPahoClient(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	s.client = client
	s.closers = append(s.closers, func() error { client.Disconnect(); return nil })

	var notifier mission.Notifier = mission.NopNotifier{}
	if cfg.MMT.Enabled() {
		s.notifier = mmt.New(cfg.MMT, logger.New("mmt"))
		notifier = s.notifier
	} else {
		s.log.Warnf("mmt url not configured, notifications are discarded")
	}

	var settings mission.SettingsSource = mission.StaticSettings(cfg.Mission.Settings())
	if cfg.Path != "" {
		settings = config.NewMissionSource(cfg.Path, logger.New("settings"))
	}
	orch, err := mission.New(mission.Deps{
		Publisher: client,
		Store:     store,
		Notifier:  notifier,
		Settings:  settings,
		Dedup:     s.dedup,
		Bus:       s.bus,
		Logger:    logger.New("mission"),
	})
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	s.Orchestrator = orch
	return nil
}

// Run binds the report router and serves until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.log.Infow("service starting", map[string]any{"instance": s.id, "knowledge": s.cfg.Knowledge.Type, "dedup": s.cfg.Dedup.Backend})
	defer coremon.Flush(defaultFlush)

	router := mqtt.NewRouter(ctx, s.Orchestrator, logger.New("router"))
	if err := router.Bind(s.client); err != nil {
		return fmt.Errorf("bind report topics: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	api := control.NewServer(gctx, s.cfg.API, s.Orchestrator, s.store, logger.New("api"))
	g.Go(func() error { return api.Run(gctx) })
	g.Go(func() error {
		metrics.RunEventCollector(gctx, s.bus, s.sink, logger.New("collector"))
		return nil
	})
	if s.notifier != nil {
		g.Go(func() error { return s.notifier.Run(gctx) })
	}
	if s.cfg.Metrics.Listen != "" {
		g.Go(func() error { return metrics.ServePrometheus(gctx, s.cfg.Metrics.Listen, nil) })
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases resources in reverse order of creation.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
