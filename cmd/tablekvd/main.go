// Package main contains the daemon entry point. It uses cobra for CLI
// flag handling, the same library the teacher's cmd/smf/main.go uses.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tablekv/internal/config"
	"tablekv/internal/kv"
	"tablekv/internal/obslog"
	"tablekv/internal/server"
)

type daemonFlags struct {
	addr       string
	configFile string
	storage    string
}

func main() {
	flags := &daemonFlags{}
	rootCmd := &cobra.Command{
		Use:   "tablekvd",
		Short: "Order-preserving table storage daemon",
		RunE: func(_ *cobra.Command, _ []string) error {
			return run(flags)
		},
	}
	rootCmd.Flags().StringVar(&flags.addr, "addr", "127.0.0.1:0", "listen address")
	rootCmd.Flags().StringVar(&flags.configFile, "config", "", "path to a TOML config file")
	rootCmd.Flags().StringVar(&flags.storage, "storage", "", "storage backend: mem or tikv (overrides config)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(flags *daemonFlags) error {
	logger, err := obslog.New()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := config.Default()
	if flags.configFile != "" {
		cfg, err = config.ParseFile(flags.configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if flags.storage != "" {
		cfg.Storage = flags.storage
	}

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}

	core := server.NewCore(backend, logger)
	_ = core.NewHandler() // wires a connection handler; the wire listener is an external collaborator

	logger.Info("tablekvd ready",
		zap.String("addr", flags.addr),
		zap.String("storage", cfg.Storage),
	)
	return nil
}

func newBackend(cfg *config.Config, logger *zap.Logger) (kv.Backend, error) {
	switch config.StorageKind(strings.ToLower(cfg.Storage)) {
	case config.StorageMem:
		return kv.NewMemBackend(), nil
	case config.StorageTiKV:
		return kv.NewRemoteBackend(context.Background(), kv.RemoteConfig{
			PDAddress:          cfg.TiKV.PDAddress,
			GRPCPoolSize:       cfg.TiKV.GRPCPoolSize,
			GRPCConnectTimeout: cfg.TiKV.ConnectTimeout(),
		}, logger)
	default:
		return nil, fmt.Errorf("unrecognized storage backend %q", cfg.Storage)
	}
}
