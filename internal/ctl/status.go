package ctl

import (
	"fmt"
	"strings"
	"time"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name          string `json:"name"`
	State         string `json:"state"`
	Paused        bool   `json:"paused"`
	Mode          string `json:"mode"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	DataRoot      string `json:"data_root"`
	WSClients     int    `json:"ws_clients"`
	Catalog       struct {
		Passes      int    `json:"passes"`
		LastRefresh string `json:"last_refresh"`
	} `json:"catalog"`
	Session     *sessionJSON `json:"session"`
	LastSession *sessionJSON `json:"last_session"`
	Disk        *diskJSON    `json:"disk"`
}

type sessionJSON struct {
	Recording struct {
		Satellite string `json:"satellite"`
		Start     string `json:"start"`
		End       string `json:"end"`
	} `json:"recording"`
	State      string `json:"state"`
	OutputPath string `json:"output_path"`
	Error      string `json:"error"`
	Cancelled  bool   `json:"cancelled"`
}

type diskJSON struct {
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsedPercent    float64 `json:"used_percent"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)
	stateStr := colorize(stateColor(s.State), s.State)
	if s.Paused {
		stateStr += colorize(yellow, " (paused)")
	}

	fmt.Println()
	fmt.Println(header("  SATPASS STATUS"))
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 38)))
	fmt.Printf("  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), stateStr)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Mode:"), s.Mode)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Data:"), s.DataRoot)
	fmt.Printf("  %-12s %d known, refreshed %s\n", colorize(dim, "Passes:"), s.Catalog.Passes, refreshAge(s.Catalog.LastRefresh))
	fmt.Printf("  %-12s %d\n", colorize(dim, "Clients:"), s.WSClients)
	fmt.Printf("  %-12s %s\n", colorize(dim, "Host:"), baseURL)

	if s.Disk != nil {
		fmt.Printf("  %-12s %s free of %s (%.0f%% used)\n",
			colorize(dim, "Disk:"),
			formatBytes(int64(s.Disk.AvailableBytes)),
			formatBytes(int64(s.Disk.TotalBytes)),
			s.Disk.UsedPercent,
		)
	}

	if s.Session != nil {
		fmt.Println()
		fmt.Println(header("  ACTIVE SESSION"))
		fmt.Printf("  %-12s %s\n", colorize(dim, "Satellite:"), colorize(bold, s.Session.Recording.Satellite))
		fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.Session.State), s.Session.State))
		fmt.Printf("  %-12s %s to %s\n", colorize(dim, "Window:"), s.Session.Recording.Start, s.Session.Recording.End)
		if s.Session.OutputPath != "" {
			fmt.Printf("  %-12s %s\n", colorize(dim, "Output:"), s.Session.OutputPath)
		}
	} else if s.LastSession != nil {
		fmt.Println()
		fmt.Println(header("  LAST SESSION"))
		fmt.Printf("  %-12s %s\n", colorize(dim, "Satellite:"), s.LastSession.Recording.Satellite)
		fmt.Printf("  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.LastSession.State), s.LastSession.State))
		if s.LastSession.Error != "" {
			fmt.Printf("  %-12s %s\n", colorize(dim, "Error:"), colorize(red, s.LastSession.Error))
		}
		if s.LastSession.OutputPath != "" {
			fmt.Printf("  %-12s %s\n", colorize(dim, "Output:"), s.LastSession.OutputPath)
		}
	}

	fmt.Println()
	return nil
}

// refreshAge renders a catalog refresh timestamp as a relative age.
func refreshAge(ts string) string {
	if ts == "" {
		return "never"
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return formatDuration(time.Since(t).Truncate(time.Second)) + " ago"
}
