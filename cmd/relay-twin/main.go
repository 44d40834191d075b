// Command relay-twin runs an in-memory stand-in for the MailMate email relay.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vdavid/mailmate/internal/config"
	"github.com/vdavid/mailmate/internal/logger"
	"github.com/vdavid/mailmate/internal/relaytwin"
)

func main() {
	cfg, err := config.NewRelayTwinConfig()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Environment == "development")

	store := relaytwin.NewStore()
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      relaytwin.NewRouter(store, relaytwin.Options{APIKey: cfg.APIKey}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Relay twin listening on %s%s", srv.Addr, relaytwin.SendEmailPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Relay twin failed: %v", err)
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("Relay twin shutting down (%d submissions received)", len(store.Submissions()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Relay twin shutdown failed: %v", err)
	}
}
