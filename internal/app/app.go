// Package app wires together the HTTP server, WebSocket hub, metrics,
// and the recording orchestrator. It owns the daemon's lifecycle and is
// the single place where configuration is turned into running components.
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satpass-radio/satpass/internal/catalog"
	"github.com/satpass-radio/satpass/internal/config"
	"github.com/satpass-radio/satpass/internal/demo"
	"github.com/satpass-radio/satpass/internal/location"
	"github.com/satpass-radio/satpass/internal/metrics"
	"github.com/satpass-radio/satpass/internal/predict"
	"github.com/satpass-radio/satpass/internal/profile"
	"github.com/satpass-radio/satpass/internal/radio"
	"github.com/satpass-radio/satpass/internal/scheduler"
	"github.com/satpass-radio/satpass/internal/telemetry"
	"github.com/satpass-radio/satpass/internal/ws"
)

const heartbeatInterval = 10 * time.Second

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     *log.Logger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	// LogBuffer is the ring the daemon's log writer already tees into;
	// the app serves it over /api/logs and forwards entries to the hub.
	LogBuffer *LogBuffer

	// Metrics lets tests supply a collector on an isolated registry.
	// Nil registers against the default Prometheus registry.
	Metrics *metrics.Collector
}

// App is the top-level daemon process.
type App struct {
	log        *log.Logger
	bind       string
	configPath string

	cfgMu sync.RWMutex
	cfg   config.Config

	startedAt time.Time
	server    *http.Server
	boundAddr atomic.Value // string, set once listening

	hub       *ws.Hub
	collector *metrics.Collector
	logBuf    *LogBuffer

	registry  *profile.Registry
	catalog   *catalog.Catalog
	orch      *scheduler.Orchestrator
	radio     *radio.Client
	location  *location.State
	locWorker *location.Worker
	receiver  *demo.Receiver

	stats recordingStats
}

// recordingStats accumulates totals over completed recordings.
type recordingStats struct {
	mu              sync.Mutex
	TotalRecordings int
	TotalBytes      int64
	BySatellite     map[string]int
	LastRecordingAt time.Time
}

// New builds the full component graph from configuration. Nothing is
// started; call Run.
func New(opts Options) (*App, error) {
	cfg := opts.Cfg
	logger := opts.Logger

	profs := profile.DefaultProfiles()
	if cfg.Profiles.Path != "" {
		loaded, err := profile.LoadFile(cfg.Profiles.Path)
		if err != nil {
			return nil, err
		}
		profs = loaded
	}
	// The configured minimum elevation is a floor under every profile.
	for i := range profs {
		if profs[i].MinElevation < cfg.Scheduler.MinElevation {
			profs[i].MinElevation = cfg.Scheduler.MinElevation
		}
	}
	reg, err := profile.NewRegistry(profs)
	if err != nil {
		return nil, err
	}
	if len(cfg.Scheduler.Enabled) > 0 {
		reg, err = reg.Subset(cfg.Scheduler.Enabled)
		if err != nil {
			return nil, err
		}
	}

	var locState *location.State
	var locWorker *location.Worker
	if cfg.Location.Enabled {
		locState = location.NewState()
		locWorker = location.NewWorker(cfg.Location.GPSDHost, locState, logger)
	} else {
		locState = location.Static(cfg.Station.Latitude, cfg.Station.Longitude, cfg.Station.Altitude)
	}

	var oracle predict.Oracle
	switch {
	case cfg.Demo.Enabled:
		oracle = demo.Oracle{
			Lead:   time.Duration(cfg.Demo.LeadSeconds) * time.Second,
			Length: time.Duration(cfg.Demo.PassSeconds) * time.Second,
		}
	case cfg.Predict.Source == "network":
		no := predict.NewNetOracle(cfg.Predict.Addr(), logger)
		no.StationFunc = func() (predict.Station, bool) {
			fix, ok := locState.Current()
			if !ok {
				return predict.Station{}, false
			}
			return predict.Station{Lat: fix.Lat, Lon: fix.Lon, Alt: fix.Alt}, true
		}
		oracle = no
	default:
		oracle = predict.StubOracle{}
	}

	horizon := time.Duration(cfg.Predict.HorizonHours) * time.Hour
	cat := catalog.New(reg, oracle, horizon, cfg.Data.PassesFile, logger)
	if err := cat.Load(); err != nil {
		logger.Printf("app: passes cache not restored: %v", err)
	}

	rc := radio.NewClient(cfg.Radio.Addr(), logger)
	rc.CommandTimeout = time.Duration(cfg.Radio.CommandTimeoutSeconds) * time.Second

	var sup scheduler.ProcessSupervisor
	var receiver *demo.Receiver
	if cfg.Demo.Enabled {
		receiver = demo.NewReceiver(logger)
		sup = demo.Supervisor{Log: logger}
	} else {
		launch := cfg.Radio.LaunchCommand
		if launch == "" {
			launch = cfg.Radio.ProcessName
		}
		sup = radio.NewSupervisor(cfg.Radio.ProcessName, launch, nil,
			time.Duration(cfg.Radio.WarmupSeconds)*time.Second, logger)
	}

	settings := scheduler.Settings{
		CheckInterval: time.Duration(cfg.Scheduler.CheckIntervalMinutes) * time.Minute,
		Margin:        time.Duration(cfg.Scheduler.RecordingMarginMinutes) * time.Minute,
		SetupLead:     time.Duration(cfg.Scheduler.SetupLeadSeconds) * time.Second,
		Cooldown:      time.Duration(cfg.Scheduler.CooldownSeconds) * time.Second,
		OutputDir:     cfg.Data.Root,
	}
	orch := scheduler.New(reg, cat, rc, sup, settings, logger)

	collector := opts.Metrics
	if collector == nil {
		collector, err = metrics.NewCollector(nil)
		if err != nil {
			return nil, err
		}
	}

	logBuf := opts.LogBuffer
	if logBuf == nil {
		logBuf = NewLogBuffer(cfg.Logging.BufferLines)
	}

	a := &App{
		log:        logger,
		bind:       opts.Bind,
		configPath: opts.ConfigPath,
		cfg:        cfg,
		startedAt:  time.Now(),
		hub:        ws.NewHub(),
		collector:  collector,
		logBuf:     logBuf,
		registry:   reg,
		catalog:    cat,
		orch:       orch,
		radio:      rc,
		location:   locState,
		locWorker:  locWorker,
		receiver:   receiver,
	}
	a.stats.BySatellite = make(map[string]int)

	orch.SetTransitionCallback(a.onTransition)
	orch.SetProgressCallback(a.onProgress)
	logBuf.SetNotify(func(e Entry) {
		a.hub.BroadcastJSON(telemetry.NewLogLine("satpassd", e.Level, e.Message))
	})
	return a, nil
}

// Run starts the HTTP server, WebSocket hub, workers, and the
// orchestrator. It blocks until the context is cancelled or the server
// fails, and does not return while a recording session is still being
// finalized.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.getConfig()
	bind := a.bind
	if bind == "" {
		bind = cfg.Server.Bind
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.boundAddr.Store(ln.Addr().String())
	a.log.Printf("listening on http://%s", ln.Addr())

	go a.hub.Run(ctx)
	if a.locWorker != nil {
		go a.locWorker.Run(ctx)
	}

	// The practice receiver lives on its own context: it must outlive
	// the orchestrator so the finalize directives of an interrupted
	// session still land.
	recvCtx, recvCancel := context.WithCancel(context.Background())
	defer recvCancel()
	recvDone := make(chan struct{})
	if a.receiver != nil {
		if err := a.receiver.Listen("127.0.0.1:0"); err != nil {
			ln.Close()
			return err
		}
		a.radio.Addr = a.receiver.Addr()
		go func() {
			defer close(recvDone)
			a.receiver.Run(recvCtx)
		}()
	} else {
		close(recvDone)
	}

	orchDone := make(chan struct{})
	go func() {
		defer close(orchDone)
		a.orch.Run(ctx)
	}()
	go a.heartbeatLoop(ctx)

	go func() {
		<-ctx.Done()
		a.log.Printf("shutdown requested")
		_ = a.server.Shutdown(context.Background())
	}()

	err = a.server.Serve(ln)
	cancel()
	<-orchDone
	recvCancel()
	<-recvDone
	return err
}

// BoundAddr returns the address the HTTP server is listening on, or ""
// before Run has bound it.
func (a *App) BoundAddr() string {
	s, _ := a.boundAddr.Load().(string)
	return s
}

func (a *App) getConfig() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// heartbeatLoop broadcasts a periodic heartbeat and refreshes the
// slow-moving gauges from their sources.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(heartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := a.orch.Status()
			a.hub.BroadcastJSON(telemetry.NewHeartbeat(string(st.State), st.Paused, time.Since(a.startedAt)))
			a.collector.SetCatalogSize(a.catalog.Size())
			a.collector.SetLastRefresh(a.catalog.LastRefresh())
			a.collector.SetClientCount(a.hub.ClientCount())
		}
	}
}

// onTransition fans a state change out to the hub and the metrics
// collector. Runs on the orchestrator's goroutines.
func (a *App) onTransition(from, to scheduler.State, sess scheduler.Session) {
	rec := sess.Recording
	a.hub.BroadcastJSON(telemetry.NewStateTransition(string(from), string(to), rec.Satellite))

	switch to {
	case scheduler.StateScheduled:
		a.collector.IncSessionStarted()
		a.hub.BroadcastJSON(telemetry.NewPassScheduled(rec.Satellite, rec.Start, rec.End, rec.MaxElevation, rec.Manual))
	case scheduler.StateRecording:
		a.collector.SetRecordingActive(true)
	case scheduler.StateFinalizing:
		a.collector.SetRecordingActive(false)
	case scheduler.StateCompleted:
		if sess.Cancelled {
			a.collector.IncSessionCancelled()
		} else {
			a.collector.IncSessionCompleted()
		}
		a.collector.ObserveSessionDuration(sess.Ended.Sub(sess.Committed))
		a.recordFinished(sess)
	case scheduler.StateFailed:
		a.collector.IncSessionFailed()
		a.collector.SetRecordingActive(false)
	case scheduler.StateIdle:
		a.collector.SetRecordingActive(false)
		// A session discarded before recording never reaches a terminal
		// state; its cancellation is counted here.
		if sess.Cancelled && sess.State != scheduler.StateCompleted && sess.State != scheduler.StateFailed {
			a.collector.IncSessionCancelled()
		}
	}

	a.hub.BroadcastJSON(telemetry.NewSessionUpdate(rec.Satellite, string(to), sess.OutputPath, sess.Error, sess.Cancelled))
}

// onProgress relays countdown updates from a waiting or recording
// session to the hub.
func (a *App) onProgress(stage string, remaining time.Duration, sess scheduler.Session) {
	var detail string
	switch stage {
	case "waiting":
		detail = fmt.Sprintf("setup window opens in %s", remaining)
	case "arming":
		detail = fmt.Sprintf("capture starts in %s", remaining)
	case "recording":
		detail = fmt.Sprintf("capture ends in %s", remaining)
	default:
		detail = remaining.String()
	}
	a.hub.BroadcastJSON(telemetry.NewProgress(stage, sess.Recording.Satellite, remaining, detail))
}

// recordFinished folds a completed session into the recording totals.
func (a *App) recordFinished(sess scheduler.Session) {
	if sess.OutputPath == "" {
		return
	}
	info, err := os.Stat(sess.OutputPath)
	if err != nil {
		return
	}

	a.stats.mu.Lock()
	a.stats.TotalRecordings++
	a.stats.TotalBytes += info.Size()
	a.stats.BySatellite[sess.Recording.Satellite]++
	a.stats.LastRecordingAt = sess.Ended
	a.stats.mu.Unlock()
}
