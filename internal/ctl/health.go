package ctl

import (
	"fmt"
	"sort"
	"strings"
)

// Health runs the daemon's component health checks via GET /healthz with
// an Accept: application/json header and renders each check.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Healthy bool                      `json:"healthy"`
		Checks  map[string]map[string]any `json:"checks"`
	}
	status, err := getJSONAny(baseURL, "/healthz", &resp)
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	if jsonOutput {
		return printJSON(map[string]any{"healthy": resp.Healthy, "url": baseURL, "checks": resp.Checks})
	}

	fmt.Println()
	if resp.Healthy {
		fmt.Printf("  %s  satpassd is healthy at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Printf("  %s  satpassd returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), status, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(resp.Checks))
	for name := range resp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		check := resp.Checks[name]
		ok, _ := check["ok"].(bool)
		mark := colorize(green, "ok")
		detail := ""
		if !ok {
			mark = colorize(red, "fail")
			if msg, _ := check["error"].(string); msg != "" {
				detail = "  " + colorize(dim, msg)
			}
		}
		fmt.Printf("    %-14s %s%s\n", name, mark, detail)
	}
	fmt.Println()

	return nil
}
