package ctl

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config fetches and displays the daemon's running configuration.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Decode into a generic map to preserve all fields for both display modes.
	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	// Decode into ordered sections for human-readable output.
	var cfg struct {
		Data struct {
			Root       string `json:"root"`
			PassesFile string `json:"passes_file"`
		} `json:"data"`
		Logging struct {
			Level string `json:"level"`
			File  string `json:"file"`
		} `json:"logging"`
		Server struct {
			Bind string `json:"bind"`
		} `json:"server"`
		Scheduler struct {
			MinElevation           float64  `json:"min_elevation"`
			CheckIntervalMinutes   int      `json:"check_interval_minutes"`
			RecordingMarginMinutes int      `json:"recording_margin_minutes"`
			SetupLeadSeconds       int      `json:"setup_lead_seconds"`
			CooldownSeconds        int      `json:"cooldown_seconds"`
			Enabled                []string `json:"enabled"`
		} `json:"scheduler"`
		Radio struct {
			Host                  string `json:"host"`
			Port                  int    `json:"port"`
			ProcessName           string `json:"process_name"`
			WarmupSeconds         int    `json:"warmup_seconds"`
			CommandTimeoutSeconds int    `json:"command_timeout_seconds"`
		} `json:"radio"`
		Predict struct {
			Source       string `json:"source"`
			Host         string `json:"host"`
			Port         int    `json:"port"`
			HorizonHours int    `json:"horizon_hours"`
		} `json:"predict"`
		Location struct {
			Enabled  bool   `json:"enabled"`
			GPSDHost string `json:"gpsd_host"`
		} `json:"location"`
		Station struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Altitude  float64 `json:"altitude"`
		} `json:"station"`
		Demo struct {
			Enabled     bool `json:"enabled"`
			LeadSeconds int  `json:"lead_seconds"`
			PassSeconds int  `json:"pass_seconds"`
		} `json:"demo"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(header("  DAEMON CONFIGURATION"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 50)))

	section := func(name string) {
		fmt.Printf("\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Printf("    %-24s %v\n", colorize(dim, key+":"), val)
	}

	section("data")
	field("root", cfg.Data.Root)
	field("passes_file", cfg.Data.PassesFile)

	section("logging")
	field("level", cfg.Logging.Level)
	if cfg.Logging.File != "" {
		field("file", cfg.Logging.File)
	}

	section("server")
	field("bind", cfg.Server.Bind)

	section("scheduler")
	field("min_elevation", cfg.Scheduler.MinElevation)
	field("check_interval_minutes", cfg.Scheduler.CheckIntervalMinutes)
	field("recording_margin_minutes", cfg.Scheduler.RecordingMarginMinutes)
	field("setup_lead_seconds", cfg.Scheduler.SetupLeadSeconds)
	field("cooldown_seconds", cfg.Scheduler.CooldownSeconds)
	if len(cfg.Scheduler.Enabled) > 0 {
		field("enabled", strings.Join(cfg.Scheduler.Enabled, ", "))
	}

	section("radio")
	field("host", cfg.Radio.Host)
	field("port", cfg.Radio.Port)
	field("process_name", cfg.Radio.ProcessName)
	field("warmup_seconds", cfg.Radio.WarmupSeconds)
	field("command_timeout_seconds", cfg.Radio.CommandTimeoutSeconds)

	section("predict")
	field("source", cfg.Predict.Source)
	if cfg.Predict.Source == "network" {
		field("host", cfg.Predict.Host)
		field("port", cfg.Predict.Port)
	}
	field("horizon_hours", cfg.Predict.HorizonHours)

	section("location")
	field("enabled", cfg.Location.Enabled)
	if cfg.Location.Enabled {
		field("gpsd_host", cfg.Location.GPSDHost)
	} else {
		field("latitude", cfg.Station.Latitude)
		field("longitude", cfg.Station.Longitude)
		field("altitude", cfg.Station.Altitude)
	}

	section("demo")
	field("enabled", cfg.Demo.Enabled)
	if cfg.Demo.Enabled {
		field("lead_seconds", cfg.Demo.LeadSeconds)
		field("pass_seconds", cfg.Demo.PassSeconds)
	}

	fmt.Println()

	return nil
}
