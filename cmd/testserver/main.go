// testserver starts the workflow manager API backed by an in-memory Argo
// engine and model store, for E2E testing.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kwlee0220/mdt-workflow-argo/internal/api"
	"github.com/kwlee0220/mdt-workflow-argo/internal/argo/argotest"
	"github.com/kwlee0220/mdt-workflow-argo/internal/config"
	"github.com/kwlee0220/mdt-workflow-argo/internal/manager"
	"github.com/kwlee0220/mdt-workflow-argo/internal/store"
)

func main() {
	addr := ":12985"
	if v := os.Getenv("MDT_WF_LISTEN_ADDR"); v != "" {
		addr = v
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	logger := config.NewLogger(os.Stdout, slog.LevelInfo)
	mgr := manager.New(argotest.NewEngine(), db, manager.Options{
		Namespace:   "argo",
		Endpoint:    "http://localhost:12985/instance-manager",
		ClientImage: "mdt-client:test",
	}, logger)
	srv := api.NewServer(addr, mgr, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("testserver: starting", "addr", addr)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
