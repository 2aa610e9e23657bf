package ctl

import (
	"fmt"
	"strings"
)

// Satellites lists the daemon's recordable satellite profiles.
func Satellites(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Satellites []struct {
			ID            string  `json:"id"`
			FreqHz        int64   `json:"freq_hz"`
			Mode          string  `json:"mode"`
			FilterWidthHz int     `json:"filter_width_hz"`
			SquelchDB     float64 `json:"squelch_db"`
			Gain          float64 `json:"gain"`
			MinElevation  float64 `json:"min_elevation"`
		} `json:"satellites"`
	}
	if err := getJSON(baseURL, "/api/satellites", &resp); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Println()
	fmt.Println(header("  SATELLITE PROFILES"))

	t := newTable("  ", "ID", "Frequency", "Mode", "Filter", "Squelch", "Min Elev")
	t.alignRight(1)
	t.alignRight(3)
	t.alignRight(4)
	t.alignRight(5)
	for _, s := range resp.Satellites {
		t.row(
			s.ID,
			fmt.Sprintf("%.3f MHz", float64(s.FreqHz)/1e6),
			s.Mode,
			fmt.Sprintf("%d Hz", s.FilterWidthHz),
			fmt.Sprintf("%.0f dB", s.SquelchDB),
			fmt.Sprintf("%.0f°", s.MinElevation),
		)
	}
	t.flush()
	fmt.Println()

	return nil
}
