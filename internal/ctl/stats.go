package ctl

import (
	"fmt"
	"sort"
	"time"
)

// Stats fetches and renders recording statistics.
func Stats(baseURL string, jsonOut bool) error {
	var resp struct {
		TotalRecordings int            `json:"total_recordings"`
		TotalBytes      int64          `json:"total_bytes"`
		BySatellite     map[string]int `json:"recordings_by_satellite"`
		LastRecordingAt string         `json:"last_recording_at"`
		UptimeSeconds   float64        `json:"uptime_seconds"`
	}
	if err := getJSON(baseURL, "/api/stats", &resp); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  RECORDING STATISTICS"))
	fmt.Println(colorize(dim, "  ────────────────────────"))
	fmt.Printf("  %-16s %d\n", "Recordings:", resp.TotalRecordings)
	fmt.Printf("  %-16s %s\n", "Total size:", formatBytes(resp.TotalBytes))
	if resp.LastRecordingAt != "" {
		fmt.Printf("  %-16s %s\n", "Last recording:", formatPassTime(resp.LastRecordingAt))
	}
	fmt.Printf("  %-16s %s\n", "Daemon uptime:", formatDuration(time.Duration(resp.UptimeSeconds)*time.Second))

	if len(resp.BySatellite) > 0 {
		names := make([]string, 0, len(resp.BySatellite))
		for name := range resp.BySatellite {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println()
		fmt.Println(header("  BY SATELLITE"))
		t := newTable("  ", "Satellite", "Recordings")
		t.alignRight(1)
		for _, name := range names {
			t.row(name, fmt.Sprintf("%d", resp.BySatellite[name]))
		}
		t.flush()
	}
	fmt.Println()
	return nil
}
