package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satpass-radio/satpass/internal/config"
	"github.com/satpass-radio/satpass/internal/metrics"
)

// testConfig returns a config pointing all filesystem paths into a
// temp dir, with timing tightened for tests.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Root = t.TempDir()
	cfg.Data.PassesFile = filepath.Join(cfg.Data.Root, "passes.json")
	cfg.Scheduler.CooldownSeconds = 1
	cfg.Radio.ProcessName = "sh" // always in PATH
	cfg.Logging.BufferLines = 50
	return cfg
}

// harness is a running app serving its API over httptest, with the
// orchestrator and hub loops live but no daemon listener bound.
type harness struct {
	app *App
	srv *httptest.Server
	buf *LogBuffer
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	buf := NewLogBuffer(cfg.Logging.BufferLines)

	a, err := New(Options{
		Logger:    log.New(io.Discard, "", 0),
		Cfg:       cfg,
		LogBuffer: buf,
		Metrics:   collector,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv := httptest.NewServer(a.routes())

	ctx, cancel := context.WithCancel(context.Background())
	go a.hub.Run(ctx)
	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		a.orch.Run(ctx)
	}()

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-orchDone
	})
	return &harness{app: a, srv: srv, buf: buf}
}

func (h *harness) get(t *testing.T, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(h.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && err != io.EOF {
		t.Fatalf("GET %s: decode: %v", path, err)
	}
	return resp.StatusCode, body
}

func (h *harness) post(t *testing.T, path string, payload any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	resp, err := http.Post(h.srv.URL+path, "application/json", rdr)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && err != io.EOF {
		t.Fatalf("POST %s: decode: %v", path, err)
	}
	return resp.StatusCode, body
}

func TestStatusEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.get(t, "/api/status")
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", code)
	}
	if body["name"] != "satpass" {
		t.Errorf("name = %v, want satpass", body["name"])
	}
	if body["state"] != "IDLE" {
		t.Errorf("state = %v, want IDLE", body["state"])
	}
	if body["mode"] != "live" {
		t.Errorf("mode = %v, want live", body["mode"])
	}
	if body["paused"] != false {
		t.Errorf("paused = %v, want false", body["paused"])
	}
	if _, ok := body["catalog"]; !ok {
		t.Error("response missing catalog block")
	}
}

func TestVersionEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.get(t, "/api/version")
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", code)
	}
	if body["version"] != "dev" {
		t.Errorf("version = %v, want dev", body["version"])
	}
}

func TestSatellitesEndpointAppliesElevationFloor(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.get(t, "/api/satellites")
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", code)
	}
	sats, ok := body["satellites"].([]any)
	if !ok || len(sats) != 7 {
		t.Fatalf("satellites = %v, want 7 entries", body["satellites"])
	}

	// ISS ships with a 10 degree minimum; the configured global floor
	// of 20 must have raised it.
	var found bool
	for _, s := range sats {
		m := s.(map[string]any)
		if m["id"] == "ISS" {
			found = true
			if m["min_elevation"].(float64) != 20 {
				t.Errorf("ISS min_elevation = %v, want 20", m["min_elevation"])
			}
		}
	}
	if !found {
		t.Error("ISS missing from satellite list")
	}
}

func TestPassesEndpointFilters(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.post(t, "/api/refresh", nil)
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("refresh: code=%d body=%v", code, body)
	}

	_, body = h.get(t, "/api/passes")
	passes := body["passes"].([]any)
	if len(passes) != 14 { // two stub passes per satellite
		t.Fatalf("passes = %d, want 14", len(passes))
	}
	if _, ok := body["station"]; !ok {
		t.Error("response missing station block")
	}

	_, body = h.get(t, "/api/passes?satellite=noaa-19")
	passes = body["passes"].([]any)
	if len(passes) != 2 {
		t.Fatalf("filtered passes = %d, want 2", len(passes))
	}
	for _, p := range passes {
		if sat := p.(map[string]any)["satellite"]; sat != "NOAA-19" {
			t.Errorf("filtered satellite = %v, want NOAA-19", sat)
		}
	}

	_, body = h.get(t, "/api/passes?count=3")
	if passes = body["passes"].([]any); len(passes) != 3 {
		t.Fatalf("count-limited passes = %d, want 3", len(passes))
	}
}

func TestNextPassEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.post(t, "/api/refresh", nil)
	if code != http.StatusOK {
		t.Fatalf("refresh failed: %v", body)
	}

	_, body = h.get(t, "/api/next-pass")
	pass, ok := body["pass"].(map[string]any)
	if !ok {
		t.Fatalf("pass = %v, want object", body["pass"])
	}
	if pass["satellite"] == "" {
		t.Error("next pass has empty satellite")
	}
	cd, ok := body["countdown_s"].(float64)
	if !ok || cd <= 0 {
		t.Errorf("countdown_s = %v, want positive", body["countdown_s"])
	}

	_, body = h.get(t, "/api/next-pass?satellite=ISS")
	pass, ok = body["pass"].(map[string]any)
	if !ok {
		t.Fatalf("filtered pass = %v, want object", body["pass"])
	}
	if pass["satellite"] != "ISS" {
		t.Errorf("filtered pass satellite = %v, want ISS", pass["satellite"])
	}
}

func TestScheduleEndpointValidation(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := http.Get(h.srv.URL + "/api/schedule")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/schedule = %d, want 405", resp.StatusCode)
	}

	code, body := h.post(t, "/api/schedule", map[string]any{"satellite": "SPUTNIK-1"})
	if code != http.StatusBadRequest {
		t.Errorf("unknown satellite code = %d, want 400", code)
	}
	if body["ok"] != false {
		t.Errorf("unknown satellite ok = %v, want false", body["ok"])
	}

	code, body = h.post(t, "/api/schedule", map[string]any{
		"satellite": "NOAA-19",
		"start":     "not a timestamp",
	})
	if code != http.StatusInternalServerError || body["ok"] != false {
		t.Errorf("bad start: code=%d body=%v", code, body)
	}
}

func TestScheduleEndpointCommits(t *testing.T) {
	h := newHarness(t, nil)

	// Schedule far enough out that the session sits in SCHEDULED while
	// we look at it.
	start := time.Now().UTC().Add(time.Hour).Format("2006-01-02 15:04:05")
	code, body := h.post(t, "/api/schedule", map[string]any{
		"satellite":        "NOAA-19",
		"start":            start,
		"duration_minutes": 5,
	})
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("schedule: code=%d body=%v", code, body)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, st := h.get(t, "/api/status")
		if st["state"] == "SCHEDULED" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want SCHEDULED", st["state"])
		}
		time.Sleep(20 * time.Millisecond)
	}

	// A second satellite cannot take the receiver.
	code, body = h.post(t, "/api/schedule", map[string]any{
		"satellite":        "NOAA-18",
		"start":            start,
		"duration_minutes": 5,
	})
	if code != http.StatusInternalServerError || body["ok"] != false {
		t.Errorf("double schedule: code=%d body=%v", code, body)
	}

	if code, body = h.post(t, "/api/cancel", nil); code != http.StatusOK || body["ok"] != true {
		t.Errorf("cancel: code=%d body=%v", code, body)
	}
}

func TestCancelWithoutSession(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.post(t, "/api/cancel", nil)
	if code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want 500", code)
	}
	if body["ok"] != false || !strings.Contains(body["error"].(string), "no active session") {
		t.Errorf("body = %v", body)
	}
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.post(t, "/api/pause", nil)
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("pause: code=%d body=%v", code, body)
	}
	if _, st := h.get(t, "/api/status"); st["paused"] != true {
		t.Errorf("paused = %v after pause, want true", st["paused"])
	}

	code, body = h.post(t, "/api/resume", nil)
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("resume: code=%d body=%v", code, body)
	}
	if _, st := h.get(t, "/api/status"); st["paused"] != false {
		t.Errorf("paused = %v after resume, want false", st["paused"])
	}
}

func TestRecordingsListAndDelete(t *testing.T) {
	h := newHarness(t, nil)
	root := h.app.getConfig().Data.Root

	for _, name := range []string{"NOAA-19_20260215T143022Z.wav", "ISS_20260216T090000Z.wav", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("xxxx"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	_, body := h.get(t, "/api/recordings")
	recs := body["recordings"].([]any)
	if len(recs) != 2 {
		t.Fatalf("recordings = %d, want 2 (txt must be ignored)", len(recs))
	}
	first := recs[0].(map[string]any)
	if first["satellite"] != "ISS" || first["timestamp"] != "20260216T090000Z" {
		t.Errorf("parsed name = %v / %v", first["satellite"], first["timestamp"])
	}

	req, _ := http.NewRequest(http.MethodDelete, h.srv.URL+"/api/recordings?name=ISS_20260216T090000Z.wav", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete code = %d, want 200", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(root, "ISS_20260216T090000Z.wav")); !os.IsNotExist(err) {
		t.Error("file still exists after delete")
	}

	for _, name := range []string{"", "../../etc/passwd", "a/b.wav"} {
		req, _ := http.NewRequest(http.MethodDelete, h.srv.URL+"/api/recordings?name="+name, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("delete %q code = %d, want 400", name, resp.StatusCode)
		}
	}

	req, _ = http.NewRequest(http.MethodDelete, h.srv.URL+"/api/recordings?name=GONE_20260101T000000Z.wav", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing code = %d, want 404", resp.StatusCode)
	}
}

func TestLogsEndpointFilters(t *testing.T) {
	h := newHarness(t, nil)

	fmt.Fprintln(h.buf, "radio: connected to receiver")
	fmt.Fprintln(h.buf, "scheduler: catalog refresh failed: boom")
	fmt.Fprintln(h.buf, "radio: retrying connect")

	_, body := h.get(t, "/api/logs")
	logs := body["logs"].([]any)
	if len(logs) != 3 {
		t.Fatalf("logs = %d, want 3", len(logs))
	}

	_, body = h.get(t, "/api/logs?level=error")
	logs = body["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("error logs = %d, want 1", len(logs))
	}
	msg := logs[0].(map[string]any)["message"].(string)
	if !strings.Contains(msg, "refresh failed") {
		t.Errorf("error log = %q", msg)
	}

	_, body = h.get(t, "/api/logs?limit=1")
	logs = body["logs"].([]any)
	if len(logs) != 1 {
		t.Fatalf("limited logs = %d, want 1", len(logs))
	}
	if msg := logs[0].(map[string]any)["message"].(string); !strings.Contains(msg, "retrying") {
		t.Errorf("limit should keep the newest entry, got %q", msg)
	}
}

func TestHealthzPlain(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := http.Get(h.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want 200", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "ok\n" {
		t.Errorf("body = %q, want ok", b)
	}
}

func TestHealthzDetailed(t *testing.T) {
	h := newHarness(t, nil)

	// Fill the catalog so the check passes.
	if code, body := h.post(t, "/api/refresh", nil); code != http.StatusOK {
		t.Fatalf("refresh failed: %v", body)
	}

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/healthz", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body["healthy"] != true {
		t.Fatalf("healthy = %v (code %d): %v", body["healthy"], resp.StatusCode, body["checks"])
	}
	checks := body["checks"].(map[string]any)
	for _, name := range []string{"data_dir", "catalog", "receiver"} {
		c, ok := checks[name].(map[string]any)
		if !ok || c["ok"] != true {
			t.Errorf("check %s = %v, want ok", name, checks[name])
		}
	}
}

func TestHealthzReportsMissingReceiver(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Radio.ProcessName = "no-such-receiver-binary"
	})
	if code, body := h.post(t, "/api/refresh", nil); code != http.StatusOK {
		t.Fatalf("refresh failed: %v", body)
	}

	req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/healthz", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", resp.StatusCode)
	}
}

func TestReloadEndpoint(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "satpass.toml")
	if err := os.WriteFile(cfgPath, []byte("[scheduler]\nmin_elevation = 33.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, nil)
	h.app.configPath = cfgPath

	code, body := h.post(t, "/api/reload", nil)
	if code != http.StatusOK || body["ok"] != true {
		t.Fatalf("reload: code=%d body=%v", code, body)
	}

	_, body = h.get(t, "/api/config")
	sched := body["scheduler"].(map[string]any)
	if sched["min_elevation"].(float64) != 33 {
		t.Errorf("min_elevation after reload = %v, want 33", sched["min_elevation"])
	}

	// A broken file must leave the running config untouched.
	if err := os.WriteFile(cfgPath, []byte("[scheduler]\nmin_elevation = 120.0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, body = h.post(t, "/api/reload", nil)
	if code != http.StatusInternalServerError || body["ok"] != false {
		t.Errorf("bad reload: code=%d body=%v", code, body)
	}
	_, body = h.get(t, "/api/config")
	sched = body["scheduler"].(map[string]any)
	if sched["min_elevation"].(float64) != 33 {
		t.Errorf("min_elevation after failed reload = %v, want 33", sched["min_elevation"])
	}
}

func TestSystemEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	code, body := h.get(t, "/api/system")
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", code)
	}
	if body["go_version"] == "" {
		t.Error("go_version missing")
	}
	if body["mode"] != "live" {
		t.Errorf("mode = %v, want live", body["mode"])
	}
	if body["receiver_available"] != true {
		t.Errorf("receiver_available = %v, want true (process name is sh)", body["receiver_available"])
	}
}

func TestMetricsEndpointCountsCommands(t *testing.T) {
	h := newHarness(t, nil)

	if code, body := h.post(t, "/api/pause", nil); code != http.StatusOK {
		t.Fatalf("pause failed: %v", body)
	}

	resp, err := http.Get(h.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `satpass_commands_total{command="pause"} 1`) {
		t.Error("pause command not counted in /metrics")
	}
}

func TestLogBufferTrimsAndDetectsLevels(t *testing.T) {
	buf := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(buf, "line %d\n", i)
	}
	entries := buf.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Message != "line 2" || entries[2].Message != "line 4" {
		t.Errorf("ring kept wrong lines: %v", entries)
	}

	cases := map[string]string{
		"radio: connect error: refused":  "error",
		"session failed during capture":  "error",
		"catalog stale, keeping old set": "warn",
		"gpsd: retrying in 5s":           "warn",
		"listening on http://0.0.0.0":    "info",
	}
	for line, want := range cases {
		if got := detectLevel(line); got != want {
			t.Errorf("detectLevel(%q) = %q, want %q", line, got, want)
		}
	}
}

func TestLogBufferNotify(t *testing.T) {
	buf := NewLogBuffer(10)
	got := make(chan Entry, 1)
	buf.SetNotify(func(e Entry) { got <- e })

	fmt.Fprintln(buf, "hello")
	select {
	case e := <-got:
		if e.Message != "hello" || e.Level != "info" {
			t.Errorf("entry = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("notify hook never fired")
	}
}

// TestDemoModeRecordsEndToEnd runs the full daemon with the practice
// receiver and waits for a completed recording to land on disk.
func TestDemoModeRecordsEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	cfg.Demo.Enabled = true
	cfg.Demo.LeadSeconds = 1
	cfg.Demo.PassSeconds = 2
	cfg.Scheduler.RecordingMarginMinutes = 0
	cfg.Scheduler.SetupLeadSeconds = 0
	cfg.Scheduler.Enabled = []string{"NOAA-19"}
	cfg.Server.Bind = "127.0.0.1:0"

	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(Options{
		Logger:  log.New(io.Discard, "", 0),
		Cfg:     cfg,
		Metrics: collector,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	var base string
	for deadline := time.Now().Add(2 * time.Second); ; {
		if addr := a.BoundAddr(); addr != "" {
			base = "http://" + addr
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("server never bound")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Lead 1s plus a 2s pass plus finalize: allow a generous window.
	deadline := time.Now().Add(20 * time.Second)
	for {
		resp, err := http.Get(base + "/api/stats")
		if err != nil {
			t.Fatal(err)
		}
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if n, _ := body["total_recordings"].(float64); n >= 1 {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("no completed recording within deadline")
		}
		time.Sleep(100 * time.Millisecond)
	}

	resp, err := http.Get(base + "/api/recordings")
	if err != nil {
		t.Fatal(err)
	}
	var recBody map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&recBody)
	resp.Body.Close()
	recs := recBody["recordings"].([]any)
	if len(recs) == 0 {
		t.Fatal("no recordings listed")
	}
	first := recs[0].(map[string]any)
	if first["satellite"] != "NOAA-19" {
		t.Errorf("recording satellite = %v, want NOAA-19", first["satellite"])
	}
	if first["size"].(float64) <= 44 {
		t.Errorf("recording size = %v, want more than a bare header", first["size"])
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	mb, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(mb), "satpass_sessions_completed_total 1") {
		t.Error("completed session not counted in /metrics")
	}

	cancel()
	select {
	case err := <-runErr:
		if err != http.ErrServerClosed {
			t.Errorf("Run returned %v, want ErrServerClosed", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
