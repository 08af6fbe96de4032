// ABOUTME: Batch collector CLI — runs the inventory script on all connected Tendril agents
// ABOUTME: Supports full, --resume, and --host runs plus a --history listing of past batches

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/tendril-collect/internal/auth"
	"github.com/2389/tendril-collect/internal/checkpoint"
	"github.com/2389/tendril-collect/internal/collector"
	"github.com/2389/tendril-collect/internal/config"
	"github.com/2389/tendril-collect/internal/controlplane"
	"github.com/2389/tendril-collect/internal/report"
	"github.com/2389/tendril-collect/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default: $TENDRIL_COLLECT_CONFIG)")
	resume := flag.Bool("resume", false, "skip hostnames already collected in the checkpoint")
	host := flag.String("host", "", "collect a single named host, bypassing the agent directory")
	workers := flag.Int("workers", 0, "override worker pool size")
	history := flag.Bool("history", false, "list recent collection runs and exit")
	limit := flag.Int("limit", 20, "number of runs to show with --history")
	flag.Usage = printUsage
	flag.Parse()

	if err := run(*configPath, *resume, *host, *workers, *history, *limit); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Fprintln(os.Stderr, "tendril-collect — fleet inventory collector")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage: tendril-collect [flags]")
	fmt.Fprintln(os.Stderr)
	yellow.Fprintln(os.Stderr, "Flags:")
	fmt.Fprintln(os.Stderr, "  --resume           Skip hostnames already collected in the checkpoint")
	fmt.Fprintln(os.Stderr, "  --host <name>      Collect a single host, bypassing the agent directory")
	fmt.Fprintln(os.Stderr, "  --workers <n>      Override worker pool size (default 5)")
	fmt.Fprintln(os.Stderr, "  --history          List recent collection runs and exit")
	fmt.Fprintln(os.Stderr, "  --limit <n>        Number of runs to show with --history (default 20)")
	fmt.Fprintln(os.Stderr, "  --config <path>    YAML config file")
	fmt.Fprintln(os.Stderr)
	yellow.Fprintln(os.Stderr, "Environment:")
	fmt.Fprintln(os.Stderr, "  TENDRIL_API               Control-plane base URL (default: http://localhost:3000)")
	fmt.Fprintln(os.Stderr, "  TENDRIL_TOKEN_SECRET      HS256 secret for bearer tokens (optional)")
	fmt.Fprintln(os.Stderr, "  TENDRIL_COLLECT_EXCLUDE   Comma-separated hostname denylist")
	fmt.Fprintln(os.Stderr, "  TENDRIL_COLLECT_WORKERS   Worker pool size")
	fmt.Fprintln(os.Stderr, "  TENDRIL_COLLECT_CONFIG    Config file path (overridden by --config)")
	fmt.Fprintln(os.Stderr)
}

func run(configPath string, resume bool, host string, workers int, history bool, limit int) error {
	if configPath == "" {
		configPath = os.Getenv("TENDRIL_COLLECT_CONFIG")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging.Level)

	if history {
		return printHistory(cfg, limit)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var tokens *auth.TokenSource
	if cfg.ControlPlane.TokenSecret != "" {
		tokens = auth.NewTokenSource([]byte(cfg.ControlPlane.TokenSecret), cfg.ControlPlane.Identity)
	}
	client := controlplane.New(cfg.ControlPlane, tokens)

	// The checkpoint is always the merge base: a re-run overwrites
	// successes and leaves prior entries alone on failure.
	ckpt, err := checkpoint.Open(cfg.Collect.CheckpointPath)
	if err != nil {
		return err
	}

	reporter := report.New(os.Stdout)

	mode := store.RunModeFull
	var hostnames []string
	switch {
	case host != "":
		mode = store.RunModeSingleHost
		hostnames = []string{collector.NormalizeHost(host)}
	default:
		hostnames, err = collector.ResolveTargets(ctx, client, cfg.Collect.Exclude)
		if err != nil {
			return err
		}
		if resume {
			mode = store.RunModeResume
			reporter.Resuming(ckpt.Len())
			hostnames = collector.SkipCollected(hostnames, ckpt)
		}
	}

	if workers <= 0 {
		workers = cfg.Collect.Workers
	}
	reporter.Starting(len(hostnames), workers)

	exec := collector.NewScriptExecutor(client)
	coll := collector.New(exec, ckpt, workers, cfg.Collect.FlushEvery, reporter.TaskDone)

	started := time.Now()
	sum, err := coll.Run(ctx, hostnames)
	if err != nil {
		return err
	}

	reporter.Summary(sum, ckpt.Path())
	recordRun(cfg, mode, started, sum)

	// Partial task failure is reported in the tally only; the exit
	// status stays zero.
	return nil
}

// recordRun appends the batch tally to the run-history ledger. History is
// an observability aid; failing to record never fails the run.
func recordRun(cfg *config.Config, mode string, started time.Time, sum collector.Summary) {
	runs, err := store.NewRunStore(cfg.Collect.HistoryPath)
	if err != nil {
		slog.Warn("run history unavailable", "error", err)
		return
	}
	defer runs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = runs.RecordRun(ctx, &store.Run{
		Mode:       mode,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Succeeded:  sum.Succeeded,
		Failed:     sum.Failed,
		Total:      sum.Total,
	})
	if err != nil {
		slog.Warn("recording run history", "error", err)
	}
}

// printHistory lists recent runs from the ledger.
func printHistory(cfg *config.Config, limit int) error {
	runs, err := store.NewRunStore(cfg.Collect.HistoryPath)
	if err != nil {
		return err
	}
	defer runs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries, err := runs.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No collection runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tMODE\tDURATION\tOK\tFAILED\tTOTAL")
	for _, r := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Mode,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Succeeded,
			r.Failed,
			r.Total,
		)
	}
	return w.Flush()
}

// setupLogging configures slog on stderr so stdout stays clean for the
// progress lines.
func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
