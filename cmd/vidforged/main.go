package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"vidforge/internal/automation"
	"vidforge/internal/config"
	"vidforge/internal/generate"
	"vidforge/internal/httpapi"
	"vidforge/internal/notify"
	"vidforge/internal/store"
	logx "vidforge/pkg/logx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vidforged:", err)
		os.Exit(1)
	}
}

func run() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (YAML or JSON)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	defer logSvc.Close()
	mgr.SetLogger(log.With(logx.String("svc", "config")))
	log.Info("starting vidforged", logx.String("config", cfgPath))

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return err
	}
	st, err := store.Open(store.Config{Path: cfg.Storage.Path, BusyTimeout: busy},
		log.With(logx.String("svc", "store")))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	genTimeout, err := config.ParseDurationOrDefault("genai.request_timeout", cfg.GenAI.RequestTimeout, 60*time.Second)
	if err != nil {
		return err
	}
	gemini, err := generate.NewGemini(ctx, generate.GeminiConfig{
		APIKey:  cfg.GenAI.APIKey,
		Model:   cfg.GenAI.Model,
		Timeout: genTimeout,
	})
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}

	notifier, err := notify.New(notify.Config{
		Enabled:    cfg.Telegram.Enabled,
		Token:      cfg.Telegram.Token,
		ChatID:     cfg.Telegram.ChatID,
		RatePerSec: cfg.Telegram.RatePerSec,
	}, log.With(logx.String("svc", "notify")))
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}
	notifier.Start(ctx)

	loopCfg, err := automationConfig(cfg)
	if err != nil {
		return err
	}

	coord := &automation.Coordinator{
		Channels:      st,
		Jobs:          st,
		Ideas:         gemini,
		Prompts:       gemini,
		Notifier:      notifier,
		IdeaBatchSize: cfg.GenAI.IdeaBatchSize,
		Log:           log.With(logx.String("svc", "automation")),
	}
	coord.Eval.DefaultTimezone = loopCfg.DefaultTimezone
	coord.Eval.Log = coord.Log

	loop, err := automation.NewService(loopCfg, coord, log.With(logx.String("svc", "scheduler")))
	if err != nil {
		return err
	}
	if err := loop.Start(ctx); err != nil {
		return err
	}

	httpCfg, err := httpConfig(cfg)
	if err != nil {
		return err
	}
	api := httpapi.New(httpCfg, coord, loop, st, log.With(logx.String("svc", "http")))
	api.Start()

	// Config hot-reload: logging and the scheduler loop pick up changes; the
	// store, generator, and notifier require a restart.
	go func() {
		if err := mgr.Watch(ctx); err != nil {
			log.Warn("config watcher exited", logx.Err(err))
		}
	}()
	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)
	go func() {
		for next := range updates {
			logSvc.Apply(logx.Config{
				Level:   next.Logging.Level,
				Console: next.Logging.Console,
				File:    logx.FileConfig{Enabled: next.Logging.File.Enabled, Path: next.Logging.File.Path},
			})
			lc, err := automationConfig(next)
			if err != nil {
				log.Warn("config update rejected", logx.Err(err))
				continue
			}
			if err := loop.Apply(ctx, lc); err != nil {
				log.Warn("scheduler reconfigure failed", logx.Err(err))
				continue
			}
			log.Info("config applied")
		}
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	go watchdogLoop(ctx)

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	api.Stop(shutdownCtx)
	loop.Stop(shutdownCtx)
	notifier.Stop(shutdownCtx)
	return nil
}

func automationConfig(cfg *config.Config) (automation.Config, error) {
	interval, err := config.ParseDurationOrDefault("automation.interval", cfg.Automation.Interval, 5*time.Minute)
	if err != nil {
		return automation.Config{}, err
	}
	window, err := config.ParseDurationOrDefault("automation.due_window", cfg.Automation.DueWindow, interval+time.Minute)
	if err != nil {
		return automation.Config{}, err
	}
	return automation.Config{
		Enabled:         cfg.Automation.Enabled,
		Interval:        interval,
		DueWindow:       window,
		DefaultTimezone: cfg.Automation.DefaultTimezone,
	}, nil
}

func httpConfig(cfg *config.Config) (httpapi.Config, error) {
	rt, err := config.ParseDurationOrDefault("http.read_timeout", cfg.HTTP.ReadTimeout, 10*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	wt, err := config.ParseDurationOrDefault("http.write_timeout", cfg.HTTP.WriteTimeout, 30*time.Second)
	if err != nil {
		return httpapi.Config{}, err
	}
	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	return httpapi.Config{
		Enabled:      cfg.HTTP.Enabled,
		Addr:         addr,
		ReadTimeout:  rt,
		WriteTimeout: wt,
	}, nil
}

// watchdogLoop pets the systemd watchdog at half its configured interval.
// No-op outside systemd units with WatchdogSec set.
func watchdogLoop(ctx context.Context) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
