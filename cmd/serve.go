// Package cmd — serve command.
// Runs the HTTP API with graceful shutdown.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/asanlama56-stack/WebToEpub-Miyo/config"
	"github.com/asanlama56-stack/WebToEpub-Miyo/server"
)

var (
	flagConfig string
	flagAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebToBook HTTP API",
	Long: `Serve starts the HTTP API: analysis, chapter downloads, document
generation, and the cover image proxy. All job state is in memory.

Examples:
  webtobook serve
  webtobook serve --addr :9090
  webtobook serve --config ./webtobook.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&flagConfig, "config", "", "Path to config file (optional)")
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if cfg.Logging.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil && !cmd.Flags().Changed("log_level") {
		logrus.SetLevel(level)
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("addr", cfg.Server.Addr).Info("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logrus.WithField("signal", sig.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
	}
	return nil
}
