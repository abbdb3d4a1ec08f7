// Command depthview shows a live false-colour view of a depth sensor
// stream in the browser.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"depthview-go/internal/config"
	"depthview-go/internal/logging"
)

// flagKeys maps command-line flags onto configuration keys. Only flags
// set explicitly override the file and environment.
var flagKeys = map[string]string{
	"addr":        "server.addr",
	"ui-rate":     "server.ui_rate",
	"source":      "sensor.source",
	"width":       "sensor.width",
	"height":      "sensor.height",
	"policy":      "sensor.policy",
	"overlap":     "sensor.overlap",
	"status-url":  "sensor.status_url",
	"endpoint":    "ingest.endpoint",
	"raw-log-dir": "ingest.raw_log_dir",
	"replay":      "ingest.replay_path",
	"replay-rate": "ingest.replay_rate",
	"replay-loop": "ingest.replay_loop",
	"sim-rate":    "simulator.rate",
	"mqtt-broker": "mqtt.broker",
	"mqtt-topic":  "mqtt.topic",
	"log-level":   "log.level",
	"log-json":    "log.json",
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "depthview",
		Usage: "live false-colour depth view",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML configuration file"},
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address"},
			&cli.Float64Flag{Name: "ui-rate", Usage: "websocket frame rate in Hz"},
			&cli.StringFlag{Name: "source", Usage: "frame source: zmq, simulator or replay"},
			&cli.IntFlag{Name: "width", Usage: "frame width in pixels"},
			&cli.IntFlag{Name: "height", Usage: "frame height in pixels"},
			&cli.StringFlag{Name: "policy", Usage: "depth policy: reliable or full-range"},
			&cli.StringFlag{Name: "overlap", Usage: "frame overlap policy: block or drop"},
			&cli.StringFlag{Name: "status-url", Usage: "sensor HTTP status endpoint to poll"},
			&cli.StringFlag{Name: "endpoint", Usage: "ZMQ endpoint of the sensor stream"},
			&cli.StringFlag{Name: "raw-log-dir", Usage: "record raw messages into this directory"},
			&cli.StringFlag{Name: "replay", Usage: "raw log to replay"},
			&cli.Float64Flag{Name: "replay-rate", Usage: "replay rate in messages per second"},
			&cli.BoolFlag{Name: "replay-loop", Usage: "restart the replay at the end of the log"},
			&cli.Float64Flag{Name: "sim-rate", Usage: "simulator frame rate"},
			&cli.StringFlag{Name: "mqtt-broker", Usage: "MQTT broker for status messages, e.g. tcp://host:1883"},
			&cli.StringFlag{Name: "mqtt-topic", Usage: "MQTT status topic"},
			&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
			&cli.BoolFlag{Name: "log-json", Usage: "log as JSON"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := logging.New("depthview", logging.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, logger)
		},
	}
}

func loadConfig(c *cli.Context) (config.AppConfig, error) {
	l := config.NewLoader(config.DefaultEnvPrefix)
	if err := l.LoadFile(c.String("config")); err != nil {
		return config.AppConfig{}, err
	}
	if err := l.LoadEnv(); err != nil {
		return config.AppConfig{}, err
	}
	for flag, key := range flagKeys {
		if !c.IsSet(flag) {
			continue
		}
		if err := l.Set(key, c.Value(flag)); err != nil {
			return config.AppConfig{}, fmt.Errorf("flag --%s: %w", flag, err)
		}
	}
	cfg, err := l.Config()
	if err != nil {
		return config.AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.AppConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
