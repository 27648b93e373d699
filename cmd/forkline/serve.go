package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/nodes"
	"github.com/forkline-ai/forkline/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the thread API over HTTP with the configured checkpoint store.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		levelRaw, _ := cmd.Flags().GetString("log-level")
		logger := forkline.NewLogger(parseLogLevel(levelRaw))

		config, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(config.Store)
		if err != nil {
			return err
		}
		defer closeStore()

		graph, err := nodes.Build(defaultDeps(logger))
		if err != nil {
			return err
		}
		engine, err := forkline.NewEngine(forkline.EngineOptions{
			Graph:  graph,
			Store:  store,
			Logger: logger,
		})
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		handler := server.New(server.Options{
			Threads:  forkline.NewThreads(engine),
			Logger:   logger,
			Registry: registry,
		})

		srv := &http.Server{
			Addr:    config.Addr,
			Handler: handler,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", srv.Addr, "store", config.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("graceful shutdown did not complete", "error", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("failed to close server: %w", err)
				}
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
