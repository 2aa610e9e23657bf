package ctl

import (
	"fmt"
	"strings"
)

// ScheduleOptions configures a manual recording request.
type ScheduleOptions struct {
	Satellite       string
	At              string
	DurationMinutes float64
	JSON            bool
}

// Schedule asks the daemon to record a satellite at a fixed time,
// bypassing the pass predictions.
func Schedule(baseURL string, opts ScheduleOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	body := map[string]any{
		"satellite": opts.Satellite,
		"start":     opts.At,
	}
	if opts.DurationMinutes > 0 {
		body["duration_minutes"] = opts.DurationMinutes
	}

	var result struct {
		OK      bool   `json:"ok"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := postJSON(baseURL, "/api/schedule", body, &result); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(result)
	}

	if result.OK {
		fmt.Printf("\n  %s  %s\n\n", colorize(green, "SCHEDULED"), result.Message)
	} else {
		fmt.Printf("\n  %s  %s\n\n", colorize(red, "FAILED"), result.Error)
	}
	return nil
}
