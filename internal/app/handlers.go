package app

import (
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/satpass-radio/satpass/internal/catalog"
	"github.com/satpass-radio/satpass/internal/config"
	"github.com/satpass-radio/satpass/internal/scheduler"
	"github.com/satpass-radio/satpass/internal/telemetry"
)

// routes builds the HTTP mux. Split out from Run so tests can serve the
// API without binding the daemon's listener.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/satellites", a.handleSatellites)
	mux.HandleFunc("/api/passes", a.handlePasses)
	mux.HandleFunc("/api/next-pass", a.handleNextPass)
	mux.HandleFunc("/api/schedule", a.handleSchedule)
	mux.HandleFunc("/api/cancel", a.handleCancel)
	mux.HandleFunc("/api/pause", a.handlePause)
	mux.HandleFunc("/api/resume", a.handleResume)
	mux.HandleFunc("/api/refresh", a.handleRefresh)
	mux.HandleFunc("/api/recordings", a.handleRecordings)
	mux.HandleFunc("/api/stats", a.handleStats)
	mux.HandleFunc("/api/logs", a.handleLogs)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/reload", a.handleReload)
	mux.HandleFunc("/api/system", a.handleSystem)
	mux.Handle("/metrics", a.collector.Handler())
	mux.Handle("/ws", a.hub.Handler())
	return mux
}

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()
	st := a.orch.Status()

	resp := map[string]any{
		"name":           "satpass",
		"state":          string(st.State),
		"paused":         st.Paused,
		"uptime_seconds": int64(time.Since(a.startedAt).Seconds()),
		"data_root":      cfg.Data.Root,
		"ws_clients":     a.hub.ClientCount(),
	}

	if cfg.Demo.Enabled {
		resp["mode"] = "demo"
	} else {
		resp["mode"] = "live"
	}

	catInfo := map[string]any{"passes": a.catalog.Size()}
	if lr := a.catalog.LastRefresh(); !lr.IsZero() {
		catInfo["last_refresh"] = lr.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	resp["catalog"] = catInfo

	if st.Session != nil {
		resp["session"] = st.Session
	}
	if hist := a.orch.History(); len(hist) > 0 {
		resp["last_session"] = hist[0]
	}

	if du := diskUsage(cfg.Data.Root); du != nil {
		resp["disk"] = du
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *App) handleSatellites(w http.ResponseWriter, _ *http.Request) {
	type satJSON struct {
		ID            string  `json:"id"`
		FreqHz        int64   `json:"freq_hz"`
		Mode          string  `json:"mode"`
		FilterWidthHz int     `json:"filter_width_hz"`
		SquelchDB     float64 `json:"squelch_db"`
		Gain          float64 `json:"gain"`
		MinElevation  float64 `json:"min_elevation"`
	}
	all := a.registry.All()
	sats := make([]satJSON, len(all))
	for i, p := range all {
		sats[i] = satJSON{
			ID:            p.ID,
			FreqHz:        p.FreqHz,
			Mode:          p.Mode,
			FilterWidthHz: p.FilterWidthHz,
			SquelchDB:     p.SquelchDB,
			Gain:          p.Gain,
			MinElevation:  p.MinElevation,
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"satellites": sats})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.getConfig())
}

func (a *App) handlePasses(w http.ResponseWriter, r *http.Request) {
	passes := a.catalog.Upcoming(time.Now().UTC())

	// Apply query param filters.
	satFilter := r.URL.Query().Get("satellite")
	if satFilter != "" {
		var filtered []catalog.Candidate
		for _, c := range passes {
			if strings.EqualFold(c.Satellite, satFilter) {
				filtered = append(filtered, c)
			}
		}
		passes = filtered
	}

	countStr := r.URL.Query().Get("count")
	if countStr != "" {
		if n, err := strconv.Atoi(countStr); err == nil && n > 0 && n < len(passes) {
			passes = passes[:n]
		}
	}

	resp := map[string]any{
		"passes":  candidatesToJSON(passes),
		"station": a.stationJSON(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *App) handleNextPass(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	var next *catalog.Candidate
	if satFilter := r.URL.Query().Get("satellite"); satFilter != "" {
		for _, c := range a.catalog.Upcoming(now) {
			if strings.EqualFold(c.Satellite, satFilter) {
				next = &c
				break
			}
		}
	} else if c, ok := a.catalog.NextQualifyingPass(now); ok {
		next = &c
	}

	resp := map[string]any{"pass": nil}
	if next != nil {
		pj := candidatesToJSON([]catalog.Candidate{*next})
		resp["pass"] = pj[0]
		resp["countdown_s"] = int(time.Until(next.AOS).Seconds())
	}
	resp["station"] = a.stationJSON()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ---------------------------------------------------------------------------
// Scheduler controls
// ---------------------------------------------------------------------------

func (a *App) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Satellite       string  `json:"satellite"`
		Start           string  `json:"start"`
		DurationMinutes float64 `json:"duration_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request: "+err.Error(), http.StatusBadRequest)
		return
	}

	if a.registry.ByID(req.Satellite) == nil {
		jsonError(w, "unknown satellite: "+req.Satellite, http.StatusBadRequest)
		return
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 15
	}

	payload, _ := json.Marshal(map[string]any{
		"satellite":        req.Satellite,
		"start":            req.Start,
		"duration_minutes": req.DurationMinutes,
	})

	result := a.sendCommand("schedule", payload)
	writeCommandResult(w, result)
}

func (a *App) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result := a.sendCommand("cancel", nil)
	writeCommandResult(w, result)
}

func (a *App) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result := a.sendCommand("pause", nil)
	writeCommandResult(w, result)
}

func (a *App) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result := a.sendCommand("resume", nil)
	writeCommandResult(w, result)
}

func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	result := a.sendCommand("refresh", nil)
	writeCommandResult(w, result)
}

// ---------------------------------------------------------------------------
// Recordings + stats
// ---------------------------------------------------------------------------

func (a *App) handleRecordings(w http.ResponseWriter, r *http.Request) {
	cfg := a.getConfig()

	if r.Method == http.MethodDelete {
		name := r.URL.Query().Get("name")
		if name == "" {
			jsonError(w, "name parameter required", http.StatusBadRequest)
			return
		}
		// Prevent path traversal.
		if strings.Contains(name, "/") || strings.Contains(name, "..") {
			jsonError(w, "invalid filename", http.StatusBadRequest)
			return
		}
		path := filepath.Join(cfg.Data.Root, name)
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				jsonError(w, "file not found", http.StatusNotFound)
			} else {
				jsonError(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "message": "deleted " + name})
		return
	}

	// GET: list recordings.
	matches, _ := filepath.Glob(filepath.Join(cfg.Data.Root, "*.wav"))

	type recordingInfo struct {
		Filename  string `json:"filename"`
		Satellite string `json:"satellite"`
		Timestamp string `json:"timestamp"`
		Size      int64  `json:"size"`
	}

	recordings := make([]recordingInfo, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		info, err := os.Stat(m)
		if err != nil {
			continue
		}

		// Parse satellite and timestamp from "NOAA-19_20260215T143022Z.wav".
		sat, ts := parseRecordingName(base)
		recordings = append(recordings, recordingInfo{
			Filename:  base,
			Satellite: sat,
			Timestamp: ts,
			Size:      info.Size(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"recordings": recordings})
}

func (a *App) handleStats(w http.ResponseWriter, _ *http.Request) {
	a.stats.mu.Lock()
	bySat := make(map[string]int, len(a.stats.BySatellite))
	for k, v := range a.stats.BySatellite {
		bySat[k] = v
	}
	lastAt := ""
	if !a.stats.LastRecordingAt.IsZero() {
		lastAt = a.stats.LastRecordingAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	resp := map[string]any{
		"total_recordings":        a.stats.TotalRecordings,
		"total_bytes":             a.stats.TotalBytes,
		"recordings_by_satellite": bySat,
		"last_recording_at":       lastAt,
		"uptime_seconds":          int64(time.Since(a.startedAt).Seconds()),
	}
	a.stats.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// ---------------------------------------------------------------------------
// Logs + system + reload
// ---------------------------------------------------------------------------

func (a *App) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := a.logBuf.Entries()

	// Apply filters.
	levelFilter := r.URL.Query().Get("level")
	if levelFilter != "" {
		var filtered []Entry
		for _, e := range entries {
			if e.Level == levelFilter {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"logs": entries})
}

func (a *App) handleSystem(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	resp := map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"data_root":  cfg.Data.Root,
	}

	if cfg.Demo.Enabled {
		resp["mode"] = "demo"
		resp["receiver_available"] = true
	} else {
		resp["mode"] = "live"
		_, err := exec.LookPath(cfg.Radio.ProcessName)
		resp["receiver_available"] = err == nil
	}

	if du := diskUsage(cfg.Data.Root); du != nil {
		resp["disk"] = du
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if a.configPath == "" {
		jsonError(w, "no config file path set", http.StatusInternalServerError)
		return
	}

	newCfg, err := config.Load(a.configPath)
	if err != nil {
		jsonError(w, "config reload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	a.cfgMu.Lock()
	a.cfg = newCfg
	a.cfgMu.Unlock()

	a.hub.BroadcastJSON(telemetry.NewLogLine("satpassd", "info", "config reloaded from "+a.configPath))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":      true,
		"message": "configuration reloaded from " + a.configPath,
	})
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	cfg := a.getConfig()

	checks := map[string]any{}
	allOK := true

	// Check data directory.
	tmpPath := filepath.Join(cfg.Data.Root, ".healthcheck")
	if err := os.WriteFile(tmpPath, []byte("ok"), 0o644); err != nil {
		checks["data_dir"] = map[string]any{"ok": false, "error": err.Error()}
		allOK = false
	} else {
		os.Remove(tmpPath)
		checks["data_dir"] = map[string]any{"ok": true, "path": cfg.Data.Root}
	}

	// Check the pass catalog.
	if lr := a.catalog.LastRefresh(); lr.IsZero() {
		checks["catalog"] = map[string]any{"ok": false, "error": "no refresh yet"}
		allOK = false
	} else {
		checks["catalog"] = map[string]any{
			"ok":     true,
			"passes": a.catalog.Size(),
			"age_s":  int(time.Since(lr).Seconds()),
		}
	}

	// Check the receiver binary (only in live mode).
	if !cfg.Demo.Enabled {
		if _, err := exec.LookPath(cfg.Radio.ProcessName); err != nil {
			checks["receiver"] = map[string]any{"ok": false, "error": cfg.Radio.ProcessName + " not found in PATH"}
			allOK = false
		} else {
			checks["receiver"] = map[string]any{"ok": true}
		}
	}

	// Check the GPS fix when location tracking is on.
	if cfg.Location.Enabled {
		if fix, ok := a.location.Current(); ok {
			checks["location"] = map[string]any{"ok": true, "lat": fix.Lat, "lon": fix.Lon}
		} else {
			checks["location"] = map[string]any{"ok": false, "error": "no GPS fix"}
			allOK = false
		}
	}

	// Config file readable.
	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			checks["config_file"] = map[string]any{"ok": false, "error": err.Error()}
			allOK = false
		} else {
			checks["config_file"] = map[string]any{"ok": true, "path": a.configPath}
		}
	}

	status := http.StatusOK
	if !allOK {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sendCommand sends a command to the orchestrator and waits for the reply.
func (a *App) sendCommand(cmdType string, payload json.RawMessage) scheduler.CommandResult {
	a.collector.IncCommand(cmdType)
	reply := make(chan scheduler.CommandResult, 1)
	a.orch.Commands <- scheduler.Command{
		Type:    cmdType,
		Payload: payload,
		Reply:   reply,
	}
	return <-reply
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"error": msg,
	})
}

// writeCommandResult writes a scheduler.CommandResult as JSON.
func writeCommandResult(w http.ResponseWriter, result scheduler.CommandResult) {
	w.Header().Set("Content-Type", "application/json")
	if !result.OK {
		w.WriteHeader(http.StatusInternalServerError)
	}
	_ = json.NewEncoder(w).Encode(result)
}

func (a *App) stationJSON() map[string]any {
	fix, valid := a.location.Current()
	return map[string]any{
		"lat":   fix.Lat,
		"lon":   fix.Lon,
		"alt":   fix.Alt,
		"valid": valid,
	}
}

type passJSON struct {
	Satellite string  `json:"satellite"`
	AOS       string  `json:"aos"`
	LOS       string  `json:"los"`
	MaxElev   float64 `json:"max_elev"`
	DurationS int     `json:"duration_s"`
}

func candidatesToJSON(passes []catalog.Candidate) []passJSON {
	result := make([]passJSON, len(passes))
	for i, c := range passes {
		result[i] = passJSON{
			Satellite: c.Satellite,
			AOS:       c.AOS.Format("2006-01-02T15:04:05Z07:00"),
			LOS:       c.LOS.Format("2006-01-02T15:04:05Z07:00"),
			MaxElev:   c.MaxElevation,
			DurationS: int(c.Duration().Seconds()),
		}
	}
	return result
}

// parseRecordingName extracts satellite and timestamp from "NOAA-19_20260215T143022Z.wav".
func parseRecordingName(filename string) (satellite, timestamp string) {
	name := strings.TrimSuffix(filename, ".wav")
	idx := strings.LastIndex(name, "_")
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}
