package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rixmerz/rmeter/internal/api"
	"github.com/Rixmerz/rmeter/internal/engine"
	"github.com/Rixmerz/rmeter/internal/events"
	"github.com/Rixmerz/rmeter/internal/httpdispatch"
	"github.com/Rixmerz/rmeter/internal/shared/config"
	"github.com/Rixmerz/rmeter/internal/shared/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine behind its HTTP control surface and event stream",
	Long: `Serve starts the gin control surface (start_test/stop_test/force_stop_test/
get_engine_status/get_results/get_time_series) and websocket event stream,
accepting plans registered over POST /api/v1/plans.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logger.NewWithLevel(cfg.Logger.Level)
	defer log.Sync()

	store := engine.NewPlanStore()
	hub := events.NewHub(log)
	dispatcher := httpdispatch.New(cfg.Engine.HTTPTimeout, cfg.Engine.MaxRedirects)
	controller := engine.New(store.Lookup, dispatcher, hub, log)

	router := api.NewRouter(controller, store, hub, log)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: router,
	}

	go func() {
		log.Info("rmeter control surface listening", zap.Int("port", cfg.API.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
