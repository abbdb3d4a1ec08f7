// Package config holds the application configuration and its loading from
// a YAML file and DEPTHVIEW_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"depthview-go/internal/types"
)

const DefaultEnvPrefix = "DEPTHVIEW_"

const (
	SourceZMQ       = "zmq"
	SourceSimulator = "simulator"
	SourceReplay    = "replay"
)

type AppConfig struct {
	Server    ServerConfig    `koanf:"server"`
	Sensor    SensorConfig    `koanf:"sensor"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Simulator SimulatorConfig `koanf:"simulator"`
	MQTT      MQTTConfig      `koanf:"mqtt"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Addr string `koanf:"addr"`
	// UIRate is the websocket flush rate in Hz.
	UIRate float64 `koanf:"ui_rate"`
}

type SensorConfig struct {
	Source         string        `koanf:"source"`
	Width          int           `koanf:"width"`
	Height         int           `koanf:"height"`
	BytesPerSample int           `koanf:"bytes_per_sample"`
	Policy         string        `koanf:"policy"`
	Overlap        string        `koanf:"overlap"`
	StatusURL      string        `koanf:"status_url"`
	StatusInterval time.Duration `koanf:"status_interval"`
}

type IngestConfig struct {
	Endpoint     string        `koanf:"endpoint"`
	StartTimeout time.Duration `koanf:"start_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	LogEvery     int           `koanf:"log_every"`
	RawLogDir    string        `koanf:"raw_log_dir"`
	ReplayPath   string        `koanf:"replay_path"`
	ReplayRate   float64       `koanf:"replay_rate"`
	ReplayLoop   bool          `koanf:"replay_loop"`
}

type SimulatorConfig struct {
	Rate float64 `koanf:"rate"`
	Seed int64   `koanf:"seed"`
}

type MQTTConfig struct {
	Broker   string `koanf:"broker"`
	Topic    string `koanf:"topic"`
	ClientID string `koanf:"client_id"`
	QoS      int    `koanf:"qos"`
}

type LogConfig struct {
	Level         string        `koanf:"level"`
	JSON          bool          `koanf:"json"`
	StatsInterval time.Duration `koanf:"stats_interval"`
}

func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Addr:   ":8080",
			UIRate: 30,
		},
		Sensor: SensorConfig{
			Source:         SourceZMQ,
			Width:          512,
			Height:         424,
			BytesPerSample: 2,
			Policy:         string(types.PolicyReliable),
			Overlap:        "block",
			StatusInterval: 2 * time.Second,
		},
		Ingest: IngestConfig{
			Endpoint:     "tcp://127.0.0.1:31001",
			StartTimeout: 5 * time.Second,
			IdleTimeout:  3 * time.Second,
			LogEvery:     100,
			ReplayRate:   30,
		},
		Simulator: SimulatorConfig{
			Rate: 30,
			Seed: 1,
		},
		MQTT: MQTTConfig{
			Topic:    "depthview/status",
			ClientID: "depthview",
			QoS:      1,
		},
		Log: LogConfig{
			Level:         "info",
			StatsInterval: 30 * time.Second,
		},
	}
}

func (c AppConfig) Geometry() types.FrameGeometry {
	return types.FrameGeometry{
		Width:          c.Sensor.Width,
		Height:         c.Sensor.Height,
		BytesPerSample: c.Sensor.BytesPerSample,
	}
}

func (c AppConfig) Validate() error {
	var errs []error
	if err := c.Geometry().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sensor geometry: %w", err))
	}
	if _, err := types.ParseDepthPolicy(c.Sensor.Policy); err != nil {
		errs = append(errs, err)
	}
	switch c.Sensor.Overlap {
	case "block", "drop":
	default:
		errs = append(errs, fmt.Errorf("sensor.overlap must be block or drop, got %q", c.Sensor.Overlap))
	}
	switch c.Sensor.Source {
	case SourceZMQ:
		if c.Ingest.Endpoint == "" {
			errs = append(errs, errors.New("ingest.endpoint is required for the zmq source"))
		}
	case SourceSimulator:
		if c.Simulator.Rate <= 0 {
			errs = append(errs, errors.New("simulator.rate must be positive"))
		}
	case SourceReplay:
		if c.Ingest.ReplayPath == "" {
			errs = append(errs, errors.New("ingest.replay_path is required for the replay source"))
		}
		if c.Ingest.ReplayRate <= 0 {
			errs = append(errs, errors.New("ingest.replay_rate must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sensor.source %q", c.Sensor.Source))
	}
	if c.Server.UIRate <= 0 {
		errs = append(errs, errors.New("server.ui_rate must be positive"))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}

// Loader layers configuration sources; later sources override earlier
// ones and everything overrides Default.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
}

func NewLoader(envPrefix string) *Loader {
	if envPrefix == "" {
		envPrefix = DefaultEnvPrefix
	}
	return &Loader{k: koanf.New("."), envPrefix: envPrefix}
}

func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv maps DEPTHVIEW_SENSOR__STATUS_URL to sensor.status_url.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// Set overrides a single key, e.g. from a command-line flag.
func (l *Loader) Set(key string, value any) error {
	return l.k.Set(key, value)
}

func (l *Loader) Config() (AppConfig, error) {
	cfg := Default()
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Load reads path (optional) and the environment and validates the result.
func Load(path, envPrefix string) (AppConfig, error) {
	l := NewLoader(envPrefix)
	if err := l.LoadFile(path); err != nil {
		return AppConfig{}, err
	}
	if err := l.LoadEnv(); err != nil {
		return AppConfig{}, err
	}
	cfg, err := l.Config()
	if err != nil {
		return AppConfig{}, err
	}
	return cfg, cfg.Validate()
}
