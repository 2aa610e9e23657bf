// Satpassd is the satellite pass recording daemon.
//
// It loads configuration, starts the HTTP/WebSocket server, and drives a
// gqrx-compatible receiver through scheduled recording sessions. Shutdown
// is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/satpass-radio/satpass/internal/app"
	"github.com/satpass-radio/satpass/internal/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/satpass/satpass.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides config)")
		demo       = pflag.Bool("demo", false, "Force demo mode: practice receiver and fabricated passes")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// A missing file at the default location is fine; an explicit
		// --config pointing nowhere is not.
		if !os.IsNotExist(err) || pflag.Lookup("config").Changed {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = config.Default()
		*configPath = ""
	}
	if *demo {
		cfg.Demo.Enabled = true
	}

	logBuf := app.NewLogBuffer(cfg.Logging.BufferLines)
	writers := []io.Writer{os.Stdout, logBuf}
	if cfg.Logging.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Logging.File,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
		})
	}
	logger := log.New(io.MultiWriter(writers...), "satpassd ", log.LstdFlags|log.Lmicroseconds)

	a, err := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
		LogBuffer:  logBuf,
	})
	if err != nil {
		logger.Fatalf("satpassd init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("satpassd failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
