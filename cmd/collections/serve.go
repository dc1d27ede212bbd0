package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"condo_collections/internal/infra/httpapi"
	"condo_collections/internal/infra/logger"
	"condo_collections/internal/infra/metrics"
	"condo_collections/internal/infra/telegram"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, the operator API and the Telegram bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := buildEnv(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.scheduler.Start(); err != nil {
			return err
		}

		addr := cfg.HTTPAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		handler := httpapi.NewHandler(e.scheduler, e.service, e.units, e.events, e.records, e.store, logger.Component("http"))
		srv := &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewRouter(handler, metrics.HTTPHandler(e.registry), cfg.CORSAllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Log.WithField("addr", addr).Info("HTTP API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		if e.bot != nil {
			admin := telegram.NewAdminHandlers(ctx, e.scheduler, cfg.AdminTelegramID, logger.Component("telegram"))
			admin.Register(e.bot)
			go e.bot.Start()
			logger.Log.Info("Telegram bot started.")
		}

		logger.Log.Info("Application setup complete. Scheduler and API are running.")

		<-gctx.Done()
		logger.Log.Info("Shutting down application...")

		if e.bot != nil {
			e.bot.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Warn("HTTP server did not shut down cleanly")
		}
		// Waits for a running cycle to finish.
		e.scheduler.Stop()

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Log.Info("Application shut down gracefully.")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (default from HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
