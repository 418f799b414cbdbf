package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	httpClient "github.com/hearthside/homekeeper/internal/client/api"
	"github.com/hearthside/homekeeper/internal/client/auth"
	"github.com/hearthside/homekeeper/internal/client/config"
	"github.com/hearthside/homekeeper/internal/client/connectivity"
	"github.com/hearthside/homekeeper/internal/client/data"
	"github.com/hearthside/homekeeper/internal/client/iocli"
	"github.com/hearthside/homekeeper/internal/client/storage/boltdb"
	"github.com/hearthside/homekeeper/internal/client/storage/sqlite"
	syncengine "github.com/hearthside/homekeeper/internal/client/sync"
)

// app bundles the wired client services a command needs.
type app struct {
	cfg     config.AppConfig
	logger  *slog.Logger
	store   *sqlite.Storage
	kv      *boltdb.Storage
	monitor *connectivity.Monitor
	engine  *syncengine.Engine
	data    data.Service
	auth    *auth.Service
	io      iocli.IO
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(config.NewViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := newLogger(cfg.LogLevel)

	store, err := sqlite.New(ctx, filepath.Join(cfg.DataDir, "homekeeper.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	kv, err := boltdb.New(ctx, filepath.Join(cfg.DataDir, "homekeeper-meta.db"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	authService := auth.NewService(nil, kv, kv, logger)
	apiClient := httpClient.NewClient(cfg.ServerURL, authService.Token)
	authService.SetClient(apiClient)

	monitor := connectivity.NewMonitor(cfg.ServerURL+"/api/v1/health", cfg.ProbeInterval, logger)
	engine := syncengine.NewEngine(apiClient, store, store, kv, monitor, cfg.DeviceName, logger)
	dataService := data.NewService(store, store, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		kv:      kv,
		monitor: monitor,
		engine:  engine,
		data:    dataService,
		auth:    authService,
		io:      iocli.NewStdio(),
	}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.logger.Error("failed to close metadata store", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close local store", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// runWithApp wires the client, runs fn, and tears everything down again.
func runWithApp(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, cmd, args)
	}
}

// NewRootCmd builds the homekeeper command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "homekeeper",
		Short:         "Offline-first household tracker",
		Long:          "Homekeeper keeps shopping lists, family goals and household assets\navailable offline and synchronizes them with the family server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newResolveCmd(),
		newListCmd(),
		newItemCmd(),
		newGoalCmd(),
		newAssetCmd(),
	)

	return root
}

// Execute runs the CLI and reports the process exit code.
func Execute(ctx context.Context, version string) int {
	root := NewRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
