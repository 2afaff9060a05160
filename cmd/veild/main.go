// Package main is used for the veild daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/veilnet/veild/internal/config"
	"github.com/veilnet/veild/internal/install"
	"github.com/veilnet/veild/internal/reset"
	"github.com/veilnet/veild/internal/rest"
	"github.com/veilnet/veild/internal/scheduling"
	"github.com/veilnet/veild/internal/services"
	"github.com/veilnet/veild/internal/state"
	"github.com/veilnet/veild/internal/status"
	"github.com/veilnet/veild/internal/tui"
	"github.com/veilnet/veild/internal/ui"
	"github.com/veilnet/veild/internal/version"
)

const (
	jobStatusRefresh   scheduling.JobName = "status_refresh"
	jobOperationsPrune scheduling.JobName = "operations_prune"
)

type cmdDaemon struct {
	flagConfig  string
	flagConsole bool
	flagDebug   bool
}

func main() {
	c := &cmdDaemon{}

	cmd := &cobra.Command{
		Use:           "veild",
		Short:         "Privacy services daemon",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          c.run,
	}

	cmd.Flags().StringVar(&c.flagConfig, "config", "/etc/veild/config.yaml", "Path to the configuration file``")
	cmd.Flags().BoolVar(&c.flagConsole, "console", false, "Show the console interface on the current terminal")
	cmd.Flags().BoolVar(&c.flagDebug, "debug", false, "Show debug messages")

	err := cmd.Execute()
	if err != nil {
		slog.Error(err.Error())

		// Sleep for a second to allow output buffers to flush.
		time.Sleep(1 * time.Second)

		os.Exit(1)
	}
}

func (c *cmdDaemon) run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load the configuration.
	cfg, err := config.Load(c.flagConfig)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if c.flagDebug {
		level = slog.LevelDebug
	}

	// Prepare a logger writing to stdout and a rotated file.
	logsDir := filepath.Join(cfg.StateDir, "logs")

	err = os.MkdirAll(logsDir, 0o700)
	if err != nil {
		return err
	}

	logFile := &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, "veild.log"),
		MaxSize:    10,
		MaxBackups: 3,
		Compress:   true,
	}

	defer func() { _ = logFile.Close() }()

	slog.SetDefault(slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), &slog.HandlerOptions{Level: level})))

	// Open the configuration stores.
	stores, err := state.Open(cfg.StateDir, cfg.AppName)
	if err != nil {
		return err
	}

	defer func() { _ = stores.Close() }()

	// Setup the managed services.
	mode, err := services.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	svcs := make([]services.Service, 0, len(cfg.Components))

	for _, comp := range cfg.Components {
		svc, err := services.Load(comp.Name, comp.Service)
		if err != nil {
			return err
		}

		svcs = append(svcs, svc)
	}

	monitor := services.NewMonitor(svcs, services.NewController(mode), cfg.PidDir())
	manager := services.NewManager(monitor, nil)

	go func() {
		_ = monitor.Run(ctx)
	}()

	// Setup the installer and status tracker.
	installer := install.New(cfg)

	tracker, err := status.NewTracker(cfg.StatusPath(), version.Version, installer, monitor)
	if err != nil {
		return err
	}

	// Setup the worker pool.
	scheduler, err := scheduling.NewScheduler()
	if err != nil {
		return err
	}

	defer func() { _ = scheduler.Shutdown() }()

	runner := reset.NewRunner(scheduler)

	newContext := func(lang string) *ui.Context {
		if lang == "" {
			lang = cfg.Language
		}

		return ui.NewContext(version.Version, lang, stores)
	}

	newSession := func(uictx *ui.Context, progress *ui.Progress) *reset.Session {
		return reset.New(reset.Dependencies{
			Services:              manager,
			Installer:             installer,
			Status:                tracker,
			PreservesRegistration: version.PreservesRegistration,
		}, reset.Options{
			Mode:        mode,
			StopTimeout: cfg.StopTimeout,
			AppStore:    cfg.AppName,
			Context:     uictx,
			Progress:    progress,
		})
	}

	// Setup the API.
	server, err := rest.NewServer(rest.Backend{
		Runner:     runner,
		Status:     tracker,
		Services:   monitor,
		NewContext: newContext,
		NewSession: newSession,
	}, cfg.SocketPath())
	if err != nil {
		return err
	}

	// Register the periodic jobs.
	err = scheduler.RegisterJob(jobStatusRefresh, cfg.StatusSchedule, tracker.Refresh)
	if err != nil {
		return err
	}

	err = scheduler.RegisterJob(jobOperationsPrune, "*/10 * * * *", func(ctx context.Context) error {
		return server.PruneOperations(ctx, time.Hour)
	})
	if err != nil {
		return err
	}

	scheduler.Start()

	err = tracker.Refresh(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to refresh the system status", "err", err)
	}

	slog.InfoContext(ctx, "Starting up", "version", version.Version, "mode", mode, "installed", tracker.Installed())

	// Start the console interface.
	if c.flagConsole {
		err = c.startConsole(ctx, cancel, level, logFile, tracker, newContext, func(uictx *ui.Context, progress *ui.Progress) error {
			return runner.Start(newSession(uictx, progress))
		})
		if err != nil {
			return err
		}
	}

	return server.Serve(ctx)
}

func (c *cmdDaemon) startConsole(ctx context.Context, cancel context.CancelFunc, level slog.Level, logFile io.Writer, tracker *status.Tracker, newContext func(string) *ui.Context, onReset tui.ResetFunc) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to open the console: %w", err)
	}

	t := tui.NewTUI(screen, tracker.Get, func() *ui.Context { return newContext("") }, onReset)

	// Route the logs to the console instead of stdout.
	slog.SetDefault(slog.New(multiHandler{
		tui.NewCustomTextHandler(t, level),
		slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}),
	}))

	go func() {
		err := t.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "Console interface failed", "err", err)
		}

		// Quitting the console stops the daemon.
		cancel()
	}()

	return nil
}
