package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Swind/choreo/core"
	"github.com/Swind/choreo/internal/config"
	chprom "github.com/Swind/choreo/observability/prometheus"
	"github.com/Swind/choreo/render/term"
	"github.com/Swind/choreo/stage"
	"github.com/Swind/choreo/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Listen for events and play them on the terminal stage",
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load config: %v", err), 1)
	}

	logger := newLogger(os.Stderr, cfg.Log, c.Bool("debug"))
	slog.SetDefault(logger)
	slog.Info("starting choreod", "session_id", cfg.SessionID, "transport", cfg.Transport.Kind)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to start: %v", err), 1)
	}
	if err := svc.Run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	slog.Info("choreod stopped")
	return nil
}

// service is one listening session with its observability endpoints.
type service struct {
	cfg      *config.Config
	log      core.Logger
	session  *stage.Session
	codec    stage.Codec
	source   transport.Source
	poller   *chprom.SnapshotPoller
	registry *prometheus.Registry

	unlisten context.CancelFunc
}

func newService(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (*service, error) {
	log := core.NewSlogLogger(logger)

	exporter, err := chprom.NewMetricsExporter("choreo", reg, chprom.ExporterOptions{})
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	poller, err := chprom.NewSnapshotPoller(reg, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("snapshot poller: %w", err)
	}

	sched, err := core.NewPriorityScheduler(core.SchedulerConfig{
		ID:            cfg.SessionID,
		LowMaxWorkers: cfg.Scheduler.LowMaxWorkers,
		TaskTimeout:   cfg.Scheduler.TaskTimeout,
		Logger:        log,
		Metrics:       exporter,
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	poller.AddScheduler(cfg.SessionID, sched)

	palette, err := stage.Palette(cfg.Stage.Palette, cfg.Stage.PaletteSize)
	if err != nil {
		return nil, err
	}
	grid := stage.Grid{Width: cfg.Stage.GridWidth, Height: cfg.Stage.GridHeight, Size: cfg.Stage.HexSize}
	surface := term.NewSurface(os.Stdout, grid, term.DefaultDurations())
	session, err := stage.NewSession(sched, surface, stage.SessionOptions{
		Grid:            grid,
		Palette:         palette,
		StutterRTT:      cfg.Stage.StutterRTT,
		EndFlushTimeout: cfg.Stage.EndFlushTimeout,
		Logger:          log,
	})
	if err != nil {
		return nil, err
	}

	codec, err := stage.NewCodec(cfg.Transport.Codec)
	if err != nil {
		return nil, err
	}
	source, err := newSource(cfg.Transport, log)
	if err != nil {
		return nil, err
	}

	return &service{
		cfg:      cfg,
		log:      log,
		session:  session,
		codec:    codec,
		source:   source,
		poller:   poller,
		registry: reg,
	}, nil
}

func newSource(cfg config.TransportConfig, log core.Logger) (transport.Source, error) {
	switch cfg.Kind {
	case "mqtt":
		return transport.NewMQTTSource(transport.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		}, log), nil
	case "poll":
		return transport.NewPollSource(cfg.Poll.URL, cfg.Poll.Interval, nil, log), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Kind)
	}
}

// Run serves metrics and feeds events to the session until ctx ends or the
// source stops.
func (s *service) Run(ctx context.Context) error {
	s.poller.Start(ctx)
	defer s.poller.Stop()

	if s.cfg.Metrics.Addr != "" {
		srv := newStatusServer(s.cfg.Metrics.Addr, s.registry, s.session)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("status server failed", core.F("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	listenCtx, unlisten := context.WithCancel(ctx)
	defer unlisten()
	s.unlisten = unlisten

	defer s.source.Close()
	err := s.source.Listen(listenCtx, func(payload []byte) {
		s.handlePayload(ctx, payload)
	})

	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if flushErr := s.session.Scheduler().Flush(drainCtx); flushErr != nil {
		s.log.Warn("pending effects dropped on shutdown", core.F("error", flushErr))
	}
	return err
}

func (s *service) handlePayload(ctx context.Context, payload []byte) {
	ev, err := s.codec.Decode(payload)
	if errors.Is(err, stage.ErrNotAnEvent) {
		s.log.Debug("ignoring non-event payload", core.F("size", len(payload)))
		return
	}
	if err != nil {
		s.log.Warn("malformed event", core.F("error", err))
		return
	}

	err = s.session.HandleEvent(ctx, ev)
	switch {
	case errors.Is(err, stage.ErrRevealComplete):
		if s.cfg.Stage.UnlistenOnFullReveal {
			s.log.Info("image fully revealed, no longer listening")
			s.unlisten()
		}
	case err != nil:
		s.log.Error("event handling failed", core.F("event", ev.String()), core.F("error", err))
	}
}
