package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete choreod configuration
type Config struct {
	SessionID string          `yaml:"session_id"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Transport TransportConfig `yaml:"transport"`
	Stage     StageConfig     `yaml:"stage"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// SchedulerConfig contains priority scheduler settings
type SchedulerConfig struct {
	LowMaxWorkers int           `yaml:"low_max_workers"` // concurrent low priority tasks (default: 10)
	TaskTimeout   time.Duration `yaml:"task_timeout"`    // 0 disables the bound
}

// TransportConfig selects and configures the event source
type TransportConfig struct {
	Kind  string     `yaml:"kind"`  // mqtt, poll
	Codec string     `yaml:"codec"` // json, msgpack
	MQTT  MQTTConfig `yaml:"mqtt"`
	Poll  PollConfig `yaml:"poll"`
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

// PollConfig contains HTTP long-poll settings
type PollConfig struct {
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
}

// StageConfig contains the visual stage settings
type StageConfig struct {
	GridWidth            int           `yaml:"grid_width"`
	GridHeight           int           `yaml:"grid_height"`
	HexSize              float64       `yaml:"hex_size"`
	Palette              []string      `yaml:"palette"`
	PaletteSize          int           `yaml:"palette_size"`
	StutterRTT           time.Duration `yaml:"stutter_rtt"`
	EndFlushTimeout      time.Duration `yaml:"end_flush_timeout"` // zero waits for every pending reveal
	UnlistenOnFullReveal bool          `yaml:"unlisten_on_full_reveal"`
}

// MetricsConfig contains the metrics endpoint settings
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		SessionID: "choreo",
		Scheduler: SchedulerConfig{LowMaxWorkers: 10},
		Transport: TransportConfig{
			Kind:  "mqtt",
			Codec: "json",
			MQTT: MQTTConfig{
				Broker:   "localhost:1883",
				ClientID: "choreod",
				Topic:    "choreo/events",
				QoS:      1,
			},
			Poll: PollConfig{Interval: 300 * time.Millisecond},
		},
		Stage: StageConfig{
			GridWidth:       200,
			GridHeight:      200,
			HexSize:         20,
			Palette:         []string{"#e55d87", "#5fc3e4"},
			PaletteSize:     4,
			StutterRTT:      500 * time.Millisecond,
			EndFlushTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads and parses a YAML configuration file on top of Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
