package ctl

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// PassesOptions controls the passes command output.
type PassesOptions struct {
	Count     int
	Satellite string
	JSON      bool
}

// Passes lists upcoming satellite passes from the daemon's catalog.
func Passes(baseURL string, opts PassesOptions) error {
	baseURL = strings.TrimRight(baseURL, "/")

	// Build query string.
	params := url.Values{}
	if opts.Count > 0 {
		params.Set("count", strconv.Itoa(opts.Count))
	}
	if opts.Satellite != "" {
		params.Set("satellite", opts.Satellite)
	}
	path := "/api/passes"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var resp struct {
		Passes []struct {
			Satellite string  `json:"satellite"`
			AOS       string  `json:"aos"`
			LOS       string  `json:"los"`
			MaxElev   float64 `json:"max_elev"`
			DurationS int     `json:"duration_s"`
		} `json:"passes"`
		Station struct {
			Lat   float64 `json:"lat"`
			Lon   float64 `json:"lon"`
			Alt   float64 `json:"alt"`
			Valid bool    `json:"valid"`
		} `json:"station"`
	}
	if err := getJSON(baseURL, path, &resp); err != nil {
		return err
	}

	if opts.JSON {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  UPCOMING PASSES"))
	station := fmt.Sprintf("%.4f, %.4f, %.0fm", resp.Station.Lat, resp.Station.Lon, resp.Station.Alt)
	if !resp.Station.Valid {
		station += " (no fix)"
	}
	fmt.Printf("  %s %s\n", colorize(dim, "Station:"), station)
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 76)))

	if len(resp.Passes) == 0 {
		fmt.Println(colorize(dim, "  No upcoming passes found."))
		fmt.Println()
		return nil
	}

	fmt.Printf("  %-4s %-12s %-22s %-22s %6s  %s\n",
		colorize(dim, "#"),
		colorize(dim, "Satellite"),
		colorize(dim, "AOS"),
		colorize(dim, "LOS"),
		colorize(dim, "Elev"),
		colorize(dim, "Duration"),
	)
	fmt.Println(colorize(dim, "  "+strings.Repeat("─", 76)))

	for i, p := range resp.Passes {
		fmt.Printf("  %-4d %-12s %-22s %-22s %5.1f°  %s\n",
			i+1,
			colorize(bold, p.Satellite),
			formatPassTime(p.AOS),
			formatPassTime(p.LOS),
			p.MaxElev,
			formatDuration(time.Duration(p.DurationS)*time.Second),
		)
	}
	fmt.Println()

	return nil
}

// formatPassTime parses an RFC3339 timestamp and returns a local time string.
func formatPassTime(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return t.Local().Format("2006-01-02 15:04 MST")
}
