package config

import (
	"fmt"
	"regexp"

	"github.com/lucasb-eyer/go-colorful"
)

var sessionIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if !sessionIDPattern.MatchString(cfg.SessionID) {
		return fmt.Errorf("session_id must match pattern [a-z0-9-]+")
	}

	if cfg.Scheduler.LowMaxWorkers < 1 {
		return fmt.Errorf("scheduler.low_max_workers must be >= 1")
	}
	if cfg.Scheduler.TaskTimeout < 0 {
		return fmt.Errorf("scheduler.task_timeout must not be negative")
	}

	if err := validateTransport(&cfg.Transport); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := validateStage(&cfg.Stage); err != nil {
		return fmt.Errorf("stage: %w", err)
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	case "":
		cfg.Log.Level = "info"
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "json", "text":
	case "":
		cfg.Log.Format = "json"
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Log.Format)
	}

	return nil
}

func validateTransport(t *TransportConfig) error {
	switch t.Codec {
	case "json", "msgpack":
	case "":
		t.Codec = "json"
	default:
		return fmt.Errorf("codec %q is not one of json, msgpack", t.Codec)
	}

	switch t.Kind {
	case "mqtt":
		if t.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required")
		}
		if t.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.topic is required")
		}
		if t.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
	case "poll":
		if t.Poll.URL == "" {
			return fmt.Errorf("poll.url is required")
		}
		if t.Poll.Interval < 0 {
			return fmt.Errorf("poll.interval must not be negative")
		}
	default:
		return fmt.Errorf("kind %q is not one of mqtt, poll", t.Kind)
	}
	return nil
}

func validateStage(s *StageConfig) error {
	if s.GridWidth <= 0 || s.GridHeight <= 0 {
		return fmt.Errorf("grid_width and grid_height must be > 0")
	}
	if s.HexSize <= 0 {
		return fmt.Errorf("hex_size must be > 0")
	}
	if len(s.Palette) == 0 {
		return fmt.Errorf("palette must name at least one colour")
	}
	for _, hex := range s.Palette {
		if _, err := colorful.Hex(hex); err != nil {
			return fmt.Errorf("palette colour %q: %w", hex, err)
		}
	}
	if s.StutterRTT < 0 || s.EndFlushTimeout < 0 {
		return fmt.Errorf("stutter_rtt and end_flush_timeout must be >= 0")
	}
	if s.PaletteSize < len(s.Palette) {
		s.PaletteSize = len(s.Palette)
	}
	return nil
}
