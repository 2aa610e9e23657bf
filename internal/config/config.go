// Package config handles loading, defaulting, and validation of the satpass
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"net"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Data      DataConfig      `toml:"data"      json:"data"`
	Logging   LoggingConfig   `toml:"logging"   json:"logging"`
	Server    ServerConfig    `toml:"server"    json:"server"`
	Scheduler SchedulerConfig `toml:"scheduler" json:"scheduler"`
	Radio     RadioConfig     `toml:"radio"     json:"radio"`
	Predict   PredictConfig   `toml:"predict"   json:"predict"`
	Location  LocationConfig  `toml:"location"  json:"location"`
	Station   StationConfig   `toml:"station"   json:"station"`
	Profiles  ProfilesConfig  `toml:"profiles"  json:"profiles"`
	Demo      DemoConfig      `toml:"demo"      json:"demo"`
}

type DataConfig struct {
	Root       string `toml:"root"        json:"root"`
	PassesFile string `toml:"passes_file" json:"passes_file"`
}

type LoggingConfig struct {
	Level       string `toml:"level"        json:"level"`
	File        string `toml:"file"         json:"file"`
	MaxSizeMB   int    `toml:"max_size_mb"  json:"max_size_mb"`
	MaxBackups  int    `toml:"max_backups"  json:"max_backups"`
	MaxAgeDays  int    `toml:"max_age_days" json:"max_age_days"`
	BufferLines int    `toml:"buffer_lines" json:"buffer_lines"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type SchedulerConfig struct {
	MinElevation           float64  `toml:"min_elevation"            json:"min_elevation"`
	CheckIntervalMinutes   int      `toml:"check_interval_minutes"   json:"check_interval_minutes"`
	RecordingMarginMinutes int      `toml:"recording_margin_minutes" json:"recording_margin_minutes"`
	SetupLeadSeconds       int      `toml:"setup_lead_seconds"       json:"setup_lead_seconds"`
	CooldownSeconds        int      `toml:"cooldown_seconds"         json:"cooldown_seconds"`
	Enabled                []string `toml:"enabled"                  json:"enabled"`
}

type RadioConfig struct {
	Host                  string `toml:"host"                    json:"host"`
	Port                  int    `toml:"port"                    json:"port"`
	ProcessName           string `toml:"process_name"            json:"process_name"`
	LaunchCommand         string `toml:"launch_command"          json:"launch_command"`
	WarmupSeconds         int    `toml:"warmup_seconds"          json:"warmup_seconds"`
	CommandTimeoutSeconds int    `toml:"command_timeout_seconds" json:"command_timeout_seconds"`
}

// Addr returns the control endpoint as host:port.
func (r RadioConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type PredictConfig struct {
	Source       string `toml:"source"        json:"source"`
	Host         string `toml:"host"          json:"host"`
	Port         int    `toml:"port"          json:"port"`
	HorizonHours int    `toml:"horizon_hours" json:"horizon_hours"`
}

// Addr returns the prediction server endpoint as host:port.
func (p PredictConfig) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

type LocationConfig struct {
	Enabled  bool   `toml:"enabled"   json:"enabled"`
	GPSDHost string `toml:"gpsd_host" json:"gpsd_host"`
}

type StationConfig struct {
	Latitude  float64 `toml:"latitude"  json:"latitude"`
	Longitude float64 `toml:"longitude" json:"longitude"`
	Altitude  float64 `toml:"altitude"  json:"altitude"`
}

type ProfilesConfig struct {
	Path string `toml:"path" json:"path"`
}

type DemoConfig struct {
	Enabled     bool `toml:"enabled"      json:"enabled"`
	LeadSeconds int  `toml:"lead_seconds" json:"lead_seconds"`
	PassSeconds int  `toml:"pass_seconds" json:"pass_seconds"`
}

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Data: DataConfig{
			Root:       "/var/lib/satpass/recordings",
			PassesFile: "/var/lib/satpass/upcoming_passes.json",
		},
		Logging: LoggingConfig{
			Level:       "info",
			File:        "",
			MaxSizeMB:   10,
			MaxBackups:  3,
			MaxAgeDays:  14,
			BufferLines: 500,
		},
		Server: ServerConfig{
			Bind: "0.0.0.0:8080",
		},
		Scheduler: SchedulerConfig{
			MinElevation:           20,
			CheckIntervalMinutes:   5,
			RecordingMarginMinutes: 1,
			SetupLeadSeconds:       30,
			CooldownSeconds:        60,
			Enabled:                nil,
		},
		Radio: RadioConfig{
			Host:                  "localhost",
			Port:                  7356,
			ProcessName:           "gqrx",
			LaunchCommand:         "",
			WarmupSeconds:         10,
			CommandTimeoutSeconds: 5,
		},
		Predict: PredictConfig{
			Source:       "stub",
			Host:         "localhost",
			Port:         4532,
			HorizonHours: 24,
		},
		Location: LocationConfig{
			Enabled:  false,
			GPSDHost: "localhost:2947",
		},
		Station: StationConfig{
			Latitude:  0.0,
			Longitude: 0.0,
			Altitude:  0.0,
		},
		Profiles: ProfilesConfig{
			Path: "",
		},
		Demo: DemoConfig{
			Enabled:     false,
			LeadSeconds: 20,
			PassSeconds: 45,
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Data.Root == "" {
		return errors.New("data.root must not be empty")
	}
	if cfg.Data.PassesFile == "" {
		return errors.New("data.passes_file must not be empty")
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
	if cfg.Logging.File != "" && cfg.Logging.MaxSizeMB < 1 {
		return errors.New("logging.max_size_mb must be >= 1 when logging.file is set")
	}
	if cfg.Logging.BufferLines < 1 {
		return errors.New("logging.buffer_lines must be >= 1")
	}
	if cfg.Server.Bind == "" {
		return errors.New("server.bind must not be empty")
	}
	if cfg.Scheduler.MinElevation < 0 || cfg.Scheduler.MinElevation > 90 {
		return errors.New("scheduler.min_elevation must be between 0 and 90")
	}
	if cfg.Scheduler.CheckIntervalMinutes < 1 {
		return errors.New("scheduler.check_interval_minutes must be >= 1")
	}
	if cfg.Scheduler.RecordingMarginMinutes < 0 {
		return errors.New("scheduler.recording_margin_minutes must be >= 0")
	}
	if cfg.Scheduler.SetupLeadSeconds < 0 {
		return errors.New("scheduler.setup_lead_seconds must be >= 0")
	}
	if cfg.Scheduler.CooldownSeconds < 1 {
		return errors.New("scheduler.cooldown_seconds must be >= 1")
	}
	if cfg.Radio.Port < 1 || cfg.Radio.Port > 65535 {
		return errors.New("radio.port must be between 1 and 65535")
	}
	if cfg.Radio.ProcessName == "" {
		return errors.New("radio.process_name must not be empty")
	}
	if cfg.Radio.WarmupSeconds < 0 {
		return errors.New("radio.warmup_seconds must be >= 0")
	}
	if cfg.Radio.CommandTimeoutSeconds < 1 {
		return errors.New("radio.command_timeout_seconds must be >= 1")
	}
	switch cfg.Predict.Source {
	case "stub", "network":
	default:
		return errors.New("predict.source must be stub or network")
	}
	if cfg.Predict.Port < 1 || cfg.Predict.Port > 65535 {
		return errors.New("predict.port must be between 1 and 65535")
	}
	if cfg.Predict.HorizonHours < 24 {
		return errors.New("predict.horizon_hours must be >= 24")
	}
	if cfg.Location.Enabled && cfg.Location.GPSDHost == "" {
		return errors.New("location.gpsd_host must not be empty when location.enabled is true")
	}
	if cfg.Station.Latitude < -90 || cfg.Station.Latitude > 90 {
		return errors.New("station.latitude must be between -90 and 90")
	}
	if cfg.Station.Longitude < -180 || cfg.Station.Longitude > 180 {
		return errors.New("station.longitude must be between -180 and 180")
	}
	if cfg.Demo.Enabled && cfg.Demo.PassSeconds < 1 {
		return errors.New("demo.pass_seconds must be >= 1 when demo.enabled is true")
	}
	if cfg.Demo.LeadSeconds < 0 {
		return errors.New("demo.lead_seconds must be >= 0")
	}
	return nil
}
