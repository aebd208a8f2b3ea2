package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	serial "github.com/luhtfiimanal/go-serial-commands"
)

type fileConfig struct {
	Device         string `toml:"device"`
	BaudRate       int    `toml:"baud_rate"`
	LineTimeout    string `toml:"line_timeout"`
	LineTimeoutMS  int64  `toml:"line_timeout_ms"`
	PollInterval   string `toml:"poll_interval"`
	ReportDiscards bool   `toml:"report_discards"`
	LogLevel       string `toml:"log_level"`
	MetricsAddr    string `toml:"metrics_addr"`
}

type serviceConfig struct {
	Port        serial.Config
	LogLevel    zerolog.Level
	MetricsAddr string
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Port: serial.Config{
			Device:       "/dev/ttyUSB0",
			BaudRate:     115200,
			LineTimeout:  serial.DefaultLineTimeout,
			PollInterval: serial.DefaultPollInterval,
		},
		LogLevel: zerolog.InfoLevel,
	}
}

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return serviceConfig{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("device") {
		cfg.Port.Device = strings.TrimSpace(raw.Device)
	}

	if meta.IsDefined("baud_rate") {
		cfg.Port.BaudRate = raw.BaudRate
	}

	if meta.IsDefined("line_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.LineTimeout))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse line_timeout: %w", err)
		}
		cfg.Port.LineTimeout = d
	}

	if meta.IsDefined("line_timeout_ms") {
		cfg.Port.LineTimeout = time.Duration(raw.LineTimeoutMS) * time.Millisecond
	}

	if meta.IsDefined("poll_interval") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse poll_interval: %w", err)
		}
		cfg.Port.PollInterval = d
	}

	if meta.IsDefined("report_discards") {
		cfg.Port.ReportDiscards = raw.ReportDiscards
	}

	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw.LogLevel)))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}

	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	return cfg, nil
}

func validateServiceConfig(cfg serviceConfig) error {
	if cfg.Port.Device == "" {
		return fmt.Errorf("device is required")
	}
	switch cfg.Port.BaudRate {
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600:
	default:
		return fmt.Errorf("unsupported baud_rate %d", cfg.Port.BaudRate)
	}
	if cfg.Port.LineTimeout <= 0 {
		return fmt.Errorf("line_timeout must be positive, got %s", cfg.Port.LineTimeout)
	}
	if cfg.Port.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", cfg.Port.PollInterval)
	}
	if cfg.Port.PollInterval > cfg.Port.LineTimeout {
		return fmt.Errorf("poll_interval %s exceeds line_timeout %s", cfg.Port.PollInterval, cfg.Port.LineTimeout)
	}
	return nil
}
