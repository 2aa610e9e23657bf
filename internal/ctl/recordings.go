package ctl

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RecordingsOptions configures the recordings command.
type RecordingsOptions struct {
	Delete string
	JSON   bool
}

// Recordings lists or deletes recording files on the daemon.
func Recordings(baseURL string, opts RecordingsOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Handle deletion.
	if opts.Delete != "" {
		target := baseURL + "/api/recordings?name=" + url.QueryEscape(opts.Delete)
		req, err := http.NewRequest(http.MethodDelete, target, nil)
		if err != nil {
			return err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var result struct {
			OK      bool   `json:"ok"`
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if opts.JSON {
			return printJSON(result)
		}
		if result.OK {
			fmt.Printf("\n  %s  %s\n\n", colorize(green, "DELETED"), result.Message)
		} else {
			fmt.Printf("\n  %s  %s\n\n", colorize(red, "ERROR"), result.Error)
		}
		return nil
	}

	// List recordings.
	var resp struct {
		Recordings []struct {
			Filename  string `json:"filename"`
			Satellite string `json:"satellite"`
			Timestamp string `json:"timestamp"`
			Size      int64  `json:"size"`
		} `json:"recordings"`
	}
	if err := getJSON(baseURL, "/api/recordings", &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  RECORDINGS"))

	if len(resp.Recordings) == 0 {
		fmt.Println(colorize(dim, "  ────────────────────────"))
		fmt.Println("  No recording files found.")
	} else {
		t := newTable("  ", "Satellite", "Timestamp", "Size", "Filename")
		t.alignRight(2)
		for _, r := range resp.Recordings {
			t.row(r.Satellite, r.Timestamp, formatBytes(r.Size), r.Filename)
		}
		t.flush()
	}
	fmt.Println()
	return nil
}
