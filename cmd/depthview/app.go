package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"depthview-go/internal/config"
	"depthview-go/internal/display"
	"depthview-go/internal/ingest"
	"depthview-go/internal/metrics"
	"depthview-go/internal/output"
	"depthview-go/internal/palette"
	"depthview-go/internal/pipeline"
	"depthview-go/internal/processing"
	"depthview-go/internal/sensor"
	"depthview-go/internal/sensorapi"
	"depthview-go/internal/server"
	"depthview-go/internal/simulator"
	"depthview-go/internal/status"
	"depthview-go/internal/types"
)

// source bundles the opened sensor with the extras some sources carry.
type source struct {
	sensor.Source
	stats   func() ingest.Stats
	changes <-chan types.FrameGeometry
	close   []func() error
}

func (s *source) Close() error {
	err := s.Source.Close()
	for _, fn := range s.close {
		err = errors.Join(err, fn())
	}
	return err
}

func newSource(cfg config.AppConfig, logger hclog.Logger) (*source, error) {
	switch cfg.Sensor.Source {
	case config.SourceSimulator:
		return &source{Source: simulator.New(simulator.Options{
			Geometry: cfg.Geometry(),
			Rate:     cfg.Simulator.Rate,
			Seed:     cfg.Simulator.Seed,
			Logger:   logger.Named("simulator"),
		})}, nil
	case config.SourceReplay:
		src := ingest.NewReplaySource(ingest.ReplayOptions{
			Path:         cfg.Ingest.ReplayPath,
			Rate:         cfg.Ingest.ReplayRate,
			Loop:         cfg.Ingest.ReplayLoop,
			Geometry:     cfg.Geometry(),
			StartTimeout: cfg.Ingest.StartTimeout,
			LogEvery:     cfg.Ingest.LogEvery,
			Logger:       logger.Named("replay"),
		})
		return &source{Source: src, stats: src.Stats, changes: src.GeometryChanges()}, nil
	default:
		out := &source{}
		var recorder ingest.RawRecorder
		if cfg.Ingest.RawLogDir != "" {
			writer, err := output.NewRawLogWriter(cfg.Ingest.RawLogDir, "depth_cbor")
			if err != nil {
				return nil, err
			}
			logger.Info("recording raw messages", "path", writer.Path())
			recorder = writer
			out.close = append(out.close, writer.Close)
		}
		src := ingest.NewSource(ingest.Options{
			Endpoint:     cfg.Ingest.Endpoint,
			Geometry:     cfg.Geometry(),
			StartTimeout: cfg.Ingest.StartTimeout,
			IdleTimeout:  cfg.Ingest.IdleTimeout,
			LogEvery:     cfg.Ingest.LogEvery,
			Recorder:     recorder,
			Logger:       logger.Named("ingest"),
		})
		out.Source = src
		out.stats = src.Stats
		out.changes = src.GeometryChanges()
		return out, nil
	}
}

// availability combines the stream's view of the sensor with the optional
// HTTP status poll.
type availability struct {
	mu      sync.Mutex
	stream  bool
	api     bool
	tracker *status.Tracker
}

func (a *availability) setStream(v bool) {
	a.mu.Lock()
	a.stream = v
	combined := a.stream && a.api
	a.mu.Unlock()
	a.tracker.SetAvailable(combined)
}

func (a *availability) setAPI(v bool) {
	a.mu.Lock()
	a.api = v
	combined := a.stream && a.api
	a.mu.Unlock()
	a.tracker.SetAvailable(combined)
}

func run(ctx context.Context, cfg config.AppConfig, logger hclog.Logger) error {
	m := metrics.New()
	tracker := status.NewTracker()
	ui := make(chan any, 16)

	tracker.Subscribe(func(s status.State) {
		m.SetSensorAvailable(s.Available)
		logger.Info("sensor status", "status", s.Text)
		select {
		case ui <- types.StatusMessage{Type: "status", Text: s.Text, Available: s.Available}:
		default:
		}
	})

	if cfg.MQTT.Broker != "" {
		notifier, err := status.NewMQTTNotifier(status.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
			QoS:      byte(cfg.MQTT.QoS),
		}, logger)
		if err != nil {
			logger.Warn("status notifications disabled", "error", err)
		} else {
			defer notifier.Close()
			tracker.Subscribe(notifier.Notify)
		}
	}

	src, err := newSource(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("source close failed", "error", err)
		}
	}()

	g, openErr := src.Open(ctx)
	if openErr != nil {
		logger.Error("sensor open failed", "source", cfg.Sensor.Source, "error", openErr)
		g = cfg.Geometry()
	}
	avail := &availability{tracker: tracker, api: true}
	if openErr == nil {
		select {
		case avail.stream = <-src.Availability():
		default:
		}
	}
	if cfg.Sensor.StatusURL != "" {
		avail.api = sensorapi.Fetch(ctx, nil, cfg.Sensor.StatusURL).Available
	}
	tracker.Init(avail.stream && avail.api)

	surface, err := display.NewSurface(g.Width, g.Height, palette.Colors())
	if err != nil {
		return err
	}
	overlap := pipeline.OverlapBlock
	if cfg.Sensor.Overlap == "drop" {
		overlap = pipeline.OverlapDrop
	}
	controller, err := pipeline.NewController(g, surface, pipeline.Options{
		Policy:   types.DepthPolicy(cfg.Sensor.Policy),
		Overlap:  overlap,
		Observer: m,
	})
	if err != nil {
		return err
	}

	var lastFrame atomic.Int64
	surface.Subscribe(func(uint64) { lastFrame.Store(time.Now().UnixNano()) })

	var bandStats atomic.Pointer[processing.BandStats]

	srv := server.New(server.Options{
		Config: func() types.ConfigMessage {
			return configMessage(controller)
		},
		Status: func() map[string]any {
			payload := map[string]any{
				"status":     tracker.Text(),
				"available":  tracker.Available(),
				"source":     cfg.Sensor.Source,
				"state":      controller.State().String(),
				"controller": controller.Stats(),
			}
			if src.stats != nil {
				payload["ingest"] = src.stats()
			}
			if stats := bandStats.Load(); stats != nil {
				payload["band_stats"] = stats
			}
			if ts := lastFrame.Load(); ts != 0 {
				payload["last_frame"] = time.Unix(0, ts).Format(time.RFC3339)
			}
			return payload
		},
		Snapshot: func() (types.FrameMessage, bool) {
			return frameMessage(surface)
		},
		Frames:  surface,
		Metrics: m.Handler(),
		Logger:  logger,
	})

	registerMetrics(m, controller, srv, src, logger)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(gctx, cfg.Server.Addr, ui)
	})
	group.Go(func() error {
		flushFrames(gctx, surface, cfg.Server.UIRate, ui, &bandStats)
		return nil
	})
	group.Go(func() error {
		logStats(gctx, cfg.Log.StatsInterval, controller, src, logger)
		return nil
	})
	if cfg.Sensor.StatusURL != "" {
		group.Go(func() error {
			sensorapi.Poll(gctx, cfg.Sensor.StatusURL, cfg.Sensor.StatusInterval, func(s sensorapi.Status) {
				avail.setAPI(s.Available)
			})
			return nil
		})
	}
	if openErr == nil {
		group.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case v := <-src.Availability():
					avail.setStream(v)
				}
			}
		})
		if src.changes != nil {
			group.Go(func() error {
				followGeometry(gctx, src.changes, controller, ui, logger)
				return nil
			})
		}
		group.Go(func() error {
			err := controller.Run(gctx, src.Frames())
			if err == nil {
				logger.Info("sensor stream ended")
			}
			return nil
		})
	}

	err = group.Wait()
	logger.Info("shutting down", "stats", controller.Stats())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func configMessage(controller *pipeline.Controller) types.ConfigMessage {
	geometry := controller.Geometry()
	return types.ConfigMessage{
		Type:           "config",
		Width:          geometry.Width,
		Height:         geometry.Height,
		BytesPerSample: geometry.BytesPerSample,
		Policy:         controller.Policy(),
		Palette:        palette.Hex(),
		Thresholds:     processing.Thresholds,
	}
}

// followGeometry switches the controller to every geometry the stream
// announces after open and sends the new config to the UI. Frames that race
// the switch are rejected until it lands.
func followGeometry(ctx context.Context, changes <-chan types.FrameGeometry, controller *pipeline.Controller, ui chan<- any, logger hclog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case g := <-changes:
			if err := controller.Reconfigure(g); err != nil {
				logger.Error("geometry change failed", "width", g.Width, "height", g.Height, "error", err)
				continue
			}
			logger.Info("geometry changed", "width", g.Width, "height", g.Height)
			select {
			case ui <- configMessage(controller):
			default:
			}
		}
	}
}

func frameMessage(surface *display.Surface) (types.FrameMessage, bool) {
	snap, ok := surface.Snapshot()
	if !ok {
		return types.FrameMessage{}, false
	}
	return types.FrameMessage{
		Type:   "frame",
		Seq:    snap.Seq,
		Width:  snap.Width,
		Height: snap.Height,
		Pixels: snap.Pixels,
	}, true
}

// flushFrames pushes the newest published frame to the UI at rate Hz,
// skipping ticks where nothing new was published.
func flushFrames(ctx context.Context, surface *display.Surface, rate float64, ui chan<- any, bandStats *atomic.Pointer[processing.BandStats]) {
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer ticker.Stop()
	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if surface.Seq() == lastSeq {
			continue
		}
		msg, ok := frameMessage(surface)
		if !ok {
			continue
		}
		lastSeq = msg.Seq
		stats := processing.ComputeBandStats(msg.Pixels)
		bandStats.Store(&stats)
		select {
		case ui <- msg:
		default:
		}
	}
}

func registerMetrics(m *metrics.Metrics, controller *pipeline.Controller, srv *server.Server, src *source, logger hclog.Logger) {
	errs := []error{
		m.CounterFunc("mailbox_drops_total", "Frame notifications replaced before processing.", func() uint64 {
			return controller.Stats().MailboxDropped
		}),
		m.GaugeFunc("ws_clients", "Connected websocket clients.", func() float64 {
			return float64(srv.ClientCount())
		}),
	}
	if src.stats != nil {
		errs = append(errs,
			m.CounterFunc("ingest_messages_total", "Messages read from the sensor stream.", func() uint64 {
				return src.stats().Messages
			}),
			m.CounterFunc("ingest_decode_failures_total", "Messages that failed to decode.", func() uint64 {
				return src.stats().DecodeFailures
			}),
			m.CounterFunc("ingest_dropped_total", "Frame notifications replaced before the controller saw them.", func() uint64 {
				return src.stats().Dropped
			}),
		)
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("metric registration failed", "error", err)
	}
}

func logStats(ctx context.Context, interval time.Duration, controller *pipeline.Controller, src *source, logger hclog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		stats := controller.Stats()
		args := []any{
			"received", stats.Received,
			"published", stats.Published,
			"rejected", stats.Rejected,
			"acquire_failed", stats.AcquireFailed,
			"busy", stats.Busy,
			"mailbox_dropped", stats.MailboxDropped,
		}
		if src.stats != nil {
			in := src.stats()
			args = append(args, "messages", in.Messages, "decode_failures", in.DecodeFailures)
		}
		logger.Info("frame stats", args...)
	}
}
