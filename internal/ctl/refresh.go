package ctl

import (
	"fmt"
	"strings"
)

// Refresh asks the daemon to recompute its pass catalog immediately.
func Refresh(baseURL string, jsonOut bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var result struct {
		OK         bool   `json:"ok"`
		Message    string `json:"message"`
		Error      string `json:"error"`
		Candidates int    `json:"candidates"`
	}
	if err := postJSON(baseURL, "/api/refresh", nil, &result); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(result)
	}

	if result.OK {
		fmt.Printf("\n  %s  %s\n\n", colorize(green, "REFRESHED"), result.Message)
	} else {
		fmt.Printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
	}
	return nil
}
