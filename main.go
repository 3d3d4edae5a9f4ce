package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"cadence/internal/config"
	"cadence/internal/engine"
)

const appSlug = "cadence"

type app struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
	engine *engine.Engine
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(&app{}).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:          appSlug,
		Short:        "Keep a local music library catalog in sync with your folders",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/cadence/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.dbPath, "db", "", "library database path")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newScanCommand(a),
		newRefreshCommand(a),
		newStartupCommand(a),
		newCleanupCommand(a),
		newWatchCommand(a),
		newStatusCommand(a),
		newFoldersCommand(a),
		newSongsCommand(a),
		newArtistsCommand(a),
		newPlaylistsCommand(a),
		newSettingsCommand(a),
		newThemeCommand(a),
	)

	return cmd
}

// open loads configuration, installs the logger and initialises the engine.
func (a *app) open(ctx context.Context) error {
	paths, err := config.ResolvePaths(appSlug)
	if err != nil {
		return err
	}

	configPath := strings.TrimSpace(a.configPath)
	if configPath == "" {
		configPath = paths.ConfigFile
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = cfg.WithPaths(paths)
	if a.dbPath != "" {
		cfg.DatabasePath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg

	a.logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: time.Kitchen,
		NoColor:    os.Getenv("NO_COLOR") != "",
	}))
	slog.SetDefault(a.logger)

	a.engine = engine.New(engine.Options{Config: cfg, Logger: a.logger})
	if err := a.engine.Initialize(ctx); err != nil {
		return fmt.Errorf("open library: %w", err)
	}

	a.logger.Debug("library ready", "db", cfg.DatabasePath, "artwork", cfg.ArtworkDir)
	return nil
}

func (a *app) close() error {
	if a.engine == nil {
		return nil
	}
	return a.engine.Close()
}
