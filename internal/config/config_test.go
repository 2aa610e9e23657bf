package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "satpass.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := validate(Default()); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[scheduler]
min_elevation = 30
enabled = ["NOAA-15", "NOAA-18"]

[radio]
host = "10.0.0.5"
port = 7357

[predict]
source = "network"
horizon_hours = 48

[demo]
enabled = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Scheduler.MinElevation != 30 {
		t.Errorf("min_elevation = %v, want 30", cfg.Scheduler.MinElevation)
	}
	if len(cfg.Scheduler.Enabled) != 2 || cfg.Scheduler.Enabled[0] != "NOAA-15" {
		t.Errorf("enabled = %v, want [NOAA-15 NOAA-18]", cfg.Scheduler.Enabled)
	}
	if got := cfg.Radio.Addr(); got != "10.0.0.5:7357" {
		t.Errorf("radio addr = %q, want 10.0.0.5:7357", got)
	}
	if cfg.Predict.Source != "network" || cfg.Predict.HorizonHours != 48 {
		t.Errorf("predict = %+v, want network/48h", cfg.Predict)
	}
	if !cfg.Demo.Enabled {
		t.Error("demo.enabled should be true")
	}

	// Untouched sections keep their defaults.
	if cfg.Scheduler.CheckIntervalMinutes != 5 {
		t.Errorf("check_interval_minutes = %d, want default 5", cfg.Scheduler.CheckIntervalMinutes)
	}
	if cfg.Radio.ProcessName != "gqrx" {
		t.Errorf("process_name = %q, want default gqrx", cfg.Radio.ProcessName)
	}
	if cfg.Server.Bind != "0.0.0.0:8080" {
		t.Errorf("bind = %q, want default", cfg.Server.Bind)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeConfig(t, "[scheduler\nmin_elevation = 20\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateConstraints(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty data root", func(c *Config) { c.Data.Root = "" }, "data.root"},
		{"empty passes file", func(c *Config) { c.Data.PassesFile = "" }, "data.passes_file"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"zero log buffer", func(c *Config) { c.Logging.BufferLines = 0 }, "logging.buffer_lines"},
		{"rotation without size", func(c *Config) { c.Logging.File = "/tmp/s.log"; c.Logging.MaxSizeMB = 0 }, "logging.max_size_mb"},
		{"empty bind", func(c *Config) { c.Server.Bind = "" }, "server.bind"},
		{"elevation above 90", func(c *Config) { c.Scheduler.MinElevation = 91 }, "scheduler.min_elevation"},
		{"negative elevation", func(c *Config) { c.Scheduler.MinElevation = -1 }, "scheduler.min_elevation"},
		{"zero check interval", func(c *Config) { c.Scheduler.CheckIntervalMinutes = 0 }, "scheduler.check_interval_minutes"},
		{"negative margin", func(c *Config) { c.Scheduler.RecordingMarginMinutes = -1 }, "scheduler.recording_margin_minutes"},
		{"zero cooldown", func(c *Config) { c.Scheduler.CooldownSeconds = 0 }, "scheduler.cooldown_seconds"},
		{"radio port zero", func(c *Config) { c.Radio.Port = 0 }, "radio.port"},
		{"radio port too high", func(c *Config) { c.Radio.Port = 70000 }, "radio.port"},
		{"empty process name", func(c *Config) { c.Radio.ProcessName = "" }, "radio.process_name"},
		{"zero command timeout", func(c *Config) { c.Radio.CommandTimeoutSeconds = 0 }, "radio.command_timeout_seconds"},
		{"unknown predict source", func(c *Config) { c.Predict.Source = "sgp4" }, "predict.source"},
		{"short horizon", func(c *Config) { c.Predict.HorizonHours = 12 }, "predict.horizon_hours"},
		{"gpsd host missing", func(c *Config) { c.Location.Enabled = true; c.Location.GPSDHost = "" }, "location.gpsd_host"},
		{"latitude out of range", func(c *Config) { c.Station.Latitude = 95 }, "station.latitude"},
		{"longitude out of range", func(c *Config) { c.Station.Longitude = -181 }, "station.longitude"},
		{"demo zero pass", func(c *Config) { c.Demo.Enabled = true; c.Demo.PassSeconds = 0 }, "demo.pass_seconds"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
