// Satctl is the command-line client for monitoring and controlling a running
// satpassd instance. It connects over HTTP and WebSocket to query status
// and stream live events from the daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/satpass-radio/satpass/internal/ctl"
)

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8080", "Satpass daemon URL (e.g. http://192.168.8.1:8080)")
		jsonOut = pflag.Bool("json", false, "Output raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "Event types to show in watch (e.g. --filter state,log)")
	)

	// Stop parsing global flags at the first non-flag argument (the command
	// name), so subcommand-specific flags like --duration are not rejected.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cmd := pflag.Arg(0)
	subArgs := pflag.Args()[1:]

	var err error
	switch cmd {
	// ── Query commands ────────────────────────────────────────────
	case "status":
		err = ctl.Status(*host, *jsonOut)

	case "health":
		err = ctl.Health(*host, *jsonOut)

	case "version":
		err = ctl.VersionInfo(*host, *jsonOut)

	case "satellites":
		err = ctl.Satellites(*host, *jsonOut)

	case "config":
		err = ctl.Config(*host, *jsonOut)

	case "passes":
		opts := ctl.PassesOptions{JSON: *jsonOut}
		passFlags := pflag.NewFlagSet("passes", pflag.ContinueOnError)
		passFlags.IntVar(&opts.Count, "count", 0, "Limit number of passes shown")
		passFlags.StringVar(&opts.Satellite, "satellite", "", "Filter by satellite name")
		_ = passFlags.Parse(subArgs)
		err = ctl.Passes(*host, opts)

	case "next-pass":
		opts := ctl.NextPassOptions{JSON: *jsonOut}
		npFlags := pflag.NewFlagSet("next-pass", pflag.ContinueOnError)
		npFlags.StringVar(&opts.Satellite, "satellite", "", "Filter by satellite name")
		_ = npFlags.Parse(subArgs)
		err = ctl.NextPass(*host, opts)

	case "recordings":
		opts := ctl.RecordingsOptions{JSON: *jsonOut}
		recFlags := pflag.NewFlagSet("recordings", pflag.ContinueOnError)
		recFlags.StringVar(&opts.Delete, "delete", "", "Delete a recording file by name")
		_ = recFlags.Parse(subArgs)
		err = ctl.Recordings(*host, opts)

	case "stats":
		err = ctl.Stats(*host, *jsonOut)

	case "logs":
		opts := ctl.LogsOptions{JSON: *jsonOut}
		logFlags := pflag.NewFlagSet("logs", pflag.ContinueOnError)
		logFlags.StringVar(&opts.Level, "level", "", "Filter by log level (info, error, warn)")
		logFlags.IntVar(&opts.Limit, "limit", 0, "Limit number of log entries shown")
		logFlags.BoolVar(&opts.Tail, "tail", false, "Stream live log events (like watch --filter log)")
		_ = logFlags.Parse(subArgs)
		err = ctl.Logs(*host, opts)

	case "system-info":
		err = ctl.SystemInfo(*host, *jsonOut)

	// ── Control commands ──────────────────────────────────────────
	case "schedule":
		opts := ctl.ScheduleOptions{JSON: *jsonOut}
		schedFlags := pflag.NewFlagSet("schedule", pflag.ContinueOnError)
		schedFlags.StringVar(&opts.At, "at", "", "Start time (YYYY-MM-DD HH:MM:SS, daemon-local)")
		schedFlags.Float64Var(&opts.DurationMinutes, "duration", 0, "Recording duration in minutes (default: 15)")
		_ = schedFlags.Parse(subArgs)
		if schedFlags.NArg() > 0 {
			opts.Satellite = schedFlags.Arg(0)
		}
		err = ctl.Schedule(*host, opts)

	case "refresh":
		err = ctl.Refresh(*host, *jsonOut)

	case "pause":
		err = ctl.Pause(*host, *jsonOut)

	case "resume":
		err = ctl.Resume(*host, *jsonOut)

	case "cancel":
		err = ctl.Cancel(*host, *jsonOut)

	case "reload":
		err = ctl.Reload(*host, *jsonOut)

	// ── Live streaming ────────────────────────────────────────────
	case "watch":
		err = ctl.Watch(*host, ctl.WatchOptions{
			Filter: *filter,
			JSON:   *jsonOut,
		})

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Print(`
  satctl — Satpass control CLI

  USAGE
    satctl [flags] <command> [command-flags]

  COMMANDS (query)
    status          Show daemon state, uptime, and current activity
    health          Check daemon and component health
    version         Show CLI and daemon version information
    satellites      List the satellite profiles
    config          Show the daemon's running configuration
    passes          List upcoming satellite passes
    next-pass       Show the next upcoming pass
    recordings      List recording files
    stats           Show aggregate recording statistics
    logs            Show recent daemon log messages
    system-info     Show runtime and host information

  COMMANDS (control)
    schedule        Schedule a manual recording at a fixed time
    refresh         Recompute the pass catalog immediately
    pause           Pause automatic pass scheduling
    resume          Resume pass scheduling
    cancel          Abort the scheduled or in-progress recording
    reload          Reload configuration from disk

  COMMANDS (live)
    watch           Stream live events from the daemon (Ctrl-C to stop)

  GLOBAL FLAGS
    -H, --host URL      Daemon base URL (default: http://127.0.0.1:8080)
        --json          Output raw JSON instead of formatted text
        --filter TYPE   Event types to show in watch (comma-separated)

  COMMAND FLAGS
    passes:
        --count N           Limit number of passes shown
        --satellite NAME    Filter by satellite name

    next-pass:
        --satellite NAME    Filter by satellite name

    recordings:
        --delete NAME       Delete a recording file by name

    schedule:
        --at TIME           Start time (YYYY-MM-DD HH:MM:SS, daemon-local)
        --duration MIN      Recording duration in minutes (default: 15)

    logs:
        --level LEVEL       Filter by log level (info, error, warn)
        --limit N           Limit number of log entries shown
        --tail              Stream live log events

  EXAMPLES
    satctl status
    satctl --json status
    satctl --host http://192.168.8.1:8080 watch
    satctl passes --satellite NOAA-19 --count 5
    satctl next-pass
    satctl recordings
    satctl schedule NOAA-19 --at "2026-03-01 14:05:00" --duration 15
    satctl refresh
    satctl logs --level error --limit 20
    satctl logs --tail
    satctl pause
    satctl resume
    satctl cancel
    satctl system-info
    satctl stats
    satctl reload
    satctl watch --filter state,log,pass_scheduled

`)
}
