package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/concordia-platform/triage/internal/attest"
	"github.com/concordia-platform/triage/internal/config"
	"github.com/concordia-platform/triage/internal/sentinel"
	"github.com/concordia-platform/triage/internal/server"
	"github.com/concordia-platform/triage/internal/store"
	"github.com/concordia-platform/triage/internal/systemd"
)

var serveConfigPath string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to triaged YAML config")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the triage HTTP server",
	Long:  "Runs the triage engine as an HTTP service.\nSupports hot-reload of the operator-owned policy and rules files.",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if msg := systemd.CheckUnitIntegrity(); msg != "" {
		logger.Warn("unit file integrity", "warning", msg)
	}

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var stores store.Stores
	switch cfg.Store.Backend {
	case "redis":
		backend := store.NewRedis(store.RedisOptions{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Timeout:  cfg.Store.Timeout(),
		})
		defer backend.Close()
		stores = backend.Stores()
	default:
		stores = store.NewMemory().Stores()
	}

	local, err := attest.OpenFileRegistry("local", cfg.Registries.LocalPath)
	if err != nil {
		return fmt.Errorf("open local registry: %w", err)
	}
	defer local.Close()

	continental, err := attest.OpenFileRegistry("continental", cfg.Registries.ContinentalPath)
	if err != nil {
		return fmt.Errorf("open continental registry: %w", err)
	}
	defer continental.Close()

	ledger := attest.NewLedger(local, continental,
		attest.StaticSigner(attest.LocalSignerID),
		attest.StaticSigner(attest.ContinentalSignerID))

	srv, err := server.New(cfg, stores, ledger, sentinel.NewDispatcher(cfg.Sentinel), logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot-reload watcher for the operator-owned config files.
	reloader, err := server.NewReloader(srv, []string{cfg.PoliciesPath, cfg.RulesPath})
	if err != nil {
		logger.Warn("hot-reload disabled", "err", err)
	} else {
		go reloader.Run(ctx)
	}

	return srv.Run(ctx)
}
