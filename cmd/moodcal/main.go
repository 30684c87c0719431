package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"moodcal/internal/app"
	"moodcal/internal/config"
	appLog "moodcal/internal/log"
)

const version = "0.1.0"

// flagConfig holds CLI flag values before config loading.
type flagConfig struct {
	configPath string
	listen     string
	history    bool
	days       int
	mood       string
}

func main() {
	// A missing .env is normal; anything else is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		appLog.Warn("failed to load .env", "error", err.Error())
	}

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("moodcal starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"share_mode", string(conf.ShareMode),
		"calendar_access", conf.CalendarAccess,
		"calendar_count", len(conf.Calendars),
		"image_dir", conf.ImageDir,
		"share_dir", conf.ShareDir,
		"reminder", conf.Reminder,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	a, err := app.New(conf)
	if err != nil {
		appLog.Error("failed to initialize", err)
		os.Exit(1)
	}

	switch {
	case flags.history:
		os.Exit(a.PrintHistory(ctx, os.Stdout, flags.days))
	case flags.mood != "":
		a.Mount(ctx)
		os.Exit(a.RecordOnce(ctx, os.Stdout, os.Stderr, flags.mood))
	}

	a.Mount(ctx)
	if err := a.Run(ctx); err != nil {
		os.Exit(1)
	}
	appLog.Info("moodcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", envOr("MOODCAL_CONFIG", "/etc/moodcal/config.yaml"), "Path to config file (env MOODCAL_CONFIG)")
	flag.StringVar(&cfg.listen, "listen", os.Getenv("MOODCAL_LISTEN"), "HTTP listen address (overrides config if set; env MOODCAL_LISTEN)")
	flag.BoolVar(&cfg.history, "history", false, "Print moods read back from the calendars and exit")
	flag.IntVar(&cfg.days, "days", 30, "Days of history to print with -history")
	flag.StringVar(&cfg.mood, "mood", "", "Record one mood emoji and exit")

	flag.Parse()

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
