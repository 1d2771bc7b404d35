// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the boardlink TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/link"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// Config is the on-disk configuration
type Config struct {
	Port        string `toml:"port"`
	Baud        int    `toml:"baud"`
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`

	Link  Link  `toml:"link"`
	State State `toml:"state"`
	MQTT  MQTT  `toml:"mqtt"`
}

// Link holds worker timing and wire settings
type Link struct {
	TickMs             int    `toml:"tick_ms"`
	ReadTimeoutMs      int    `toml:"read_timeout_ms"`
	Terminator         string `toml:"terminator"`
	TimeSync           string `toml:"time_sync"`
	TimeSyncIntervalMs int    `toml:"time_sync_interval_ms"`
	Drain              string `toml:"drain"`
	QueueSize          int    `toml:"queue_size"`
	ReconnectMinMs     int    `toml:"reconnect_min_ms"`
	ReconnectMaxMs     int    `toml:"reconnect_max_ms"`
}

// State holds the board's start-up display values
type State struct {
	Segment string `toml:"segment"`
	RGB     []int  `toml:"rgb"`
}

// MQTT configures the optional snapshot publisher
type MQTT struct {
	Broker       string `toml:"broker"`
	Topic        string `toml:"topic"`
	CommandTopic string `toml:"command_topic"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Baud: lineproto.DefaultBaudRate,
		Link: Link{
			TickMs:             10,
			ReadTimeoutMs:      100,
			Terminator:         "none",
			TimeSync:           "off",
			TimeSyncIntervalMs: 1000,
			Drain:              "one",
			QueueSize:          link.DefaultQueueSize,
			ReconnectMinMs:     10,
			ReconnectMaxMs:     30000,
		},
		State: State{
			Segment: lineproto.DefaultSegment,
			RGB:     []int{255, 255, 255},
		},
		MQTT: MQTT{
			Topic: "boardlink/state",
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	log.Debug().Str("path", path).Msg("loading config")
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes TOML data on top of the defaults and validates the result
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as TOML
func (c Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Validate checks value ranges and enum names
func (c Config) Validate() error {
	var errs []error

	if c.Baud <= 0 {
		errs = append(errs, fmt.Errorf("baud must be positive, got %d", c.Baud))
	}
	if c.Link.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("link.tick_ms must be positive, got %d", c.Link.TickMs))
	}
	if c.Link.ReadTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("link.read_timeout_ms must be positive, got %d", c.Link.ReadTimeoutMs))
	}
	if c.Link.TimeSyncIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("link.time_sync_interval_ms must be positive, got %d", c.Link.TimeSyncIntervalMs))
	}
	if c.Link.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("link.queue_size must be positive, got %d", c.Link.QueueSize))
	}
	if c.Link.ReconnectMinMs <= 0 || c.Link.ReconnectMaxMs < c.Link.ReconnectMinMs {
		errs = append(errs, fmt.Errorf("link.reconnect_min_ms (%d) must be positive and not above reconnect_max_ms (%d)",
			c.Link.ReconnectMinMs, c.Link.ReconnectMaxMs))
	}
	if _, err := lineproto.ParseTerminator(c.Link.Terminator); err != nil {
		errs = append(errs, fmt.Errorf("link.terminator: %w", err))
	}
	if _, err := link.ParseTimeSyncMode(c.Link.TimeSync); err != nil {
		errs = append(errs, fmt.Errorf("link.time_sync: %w", err))
	}
	if c.Link.Drain != "one" && c.Link.Drain != "all" {
		errs = append(errs, fmt.Errorf("link.drain must be one or all, got %q", c.Link.Drain))
	}
	if _, err := c.Defaults(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// WorkerConfig converts the [link] table to a link.Config
func (c Config) WorkerConfig() (link.Config, error) {
	term, err := lineproto.ParseTerminator(c.Link.Terminator)
	if err != nil {
		return link.Config{}, err
	}
	mode, err := link.ParseTimeSyncMode(c.Link.TimeSync)
	if err != nil {
		return link.Config{}, err
	}

	return link.Config{
		Tick:             ms(c.Link.TickMs),
		TimeSync:         mode,
		TimeSyncInterval: ms(c.Link.TimeSyncIntervalMs),
		Terminator:       term,
		DrainAll:         c.Link.Drain == "all",
		QueueSize:        c.Link.QueueSize,
		ReconnectMin:     ms(c.Link.ReconnectMinMs),
		ReconnectMax:     ms(c.Link.ReconnectMaxMs),
	}, nil
}

// ReadTimeout returns the serial read timeout
func (c Config) ReadTimeout() time.Duration {
	return ms(c.Link.ReadTimeoutMs)
}

// Defaults converts the [state] table to device defaults
func (c Config) Defaults() (lineproto.Defaults, error) {
	if utf8.RuneCountInString(c.State.Segment) != lineproto.SegmentWidth {
		return lineproto.Defaults{}, fmt.Errorf("state.segment must be %d characters, got %q",
			lineproto.SegmentWidth, c.State.Segment)
	}
	if len(c.State.RGB) != 3 {
		return lineproto.Defaults{}, fmt.Errorf("state.rgb needs 3 components, got %d", len(c.State.RGB))
	}

	var rgb [3]uint8
	for i, v := range c.State.RGB {
		if v < 0 || v > 255 {
			return lineproto.Defaults{}, fmt.Errorf("state.rgb component %d out of range 0..255", v)
		}
		rgb[i] = uint8(v)
	}

	return lineproto.Defaults{
		Segment: c.State.Segment,
		Color:   lineproto.RGB{R: rgb[0], G: rgb[1], B: rgb[2]},
	}, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
