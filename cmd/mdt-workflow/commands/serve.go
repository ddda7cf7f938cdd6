package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kwlee0220/mdt-workflow-argo/internal/api"
	"github.com/kwlee0220/mdt-workflow-argo/internal/argo"
	"github.com/kwlee0220/mdt-workflow-argo/internal/config"
	"github.com/kwlee0220/mdt-workflow-argo/internal/manager"
	"github.com/kwlee0220/mdt-workflow-argo/internal/store"
)

func (c *CLI) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow manager HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := config.NewLogger(os.Stdout, cfg.LogLevel)
			slog.SetDefault(logger)

			logger.Info("mdt-workflow: starting",
				"listen_addr", cfg.ListenAddr,
				"db_path", cfg.DBPath,
				"argo_endpoint", cfg.ArgoEndpoint,
				"namespace", cfg.ArgoNamespace,
			)

			db, err := store.NewSQLiteStore(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			engine := argo.NewClient(argo.ClientConfig{
				Endpoint: cfg.ArgoEndpoint,
				Token:    cfg.ArgoToken,
				Insecure: cfg.ArgoInsecure,
				Timeout:  cfg.ArgoTimeout,
			}, logger)

			mgr := manager.New(engine, db, manager.Options{
				Namespace:   cfg.ArgoNamespace,
				Endpoint:    cfg.MDTEndpoint,
				ClientImage: cfg.ClientImage,
			}, logger)

			return api.NewServer(cfg.ListenAddr, mgr, logger).Run(cmd.Context())
		},
	}
}
