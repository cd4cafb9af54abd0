// Development chat backend: channel protocol, matchmaking and uploads,
// all in memory. Run the client against it with the default config.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loungechat/internal/config"
	"github.com/loungechat/internal/devserver"
	"github.com/loungechat/internal/logger"
)

func main() {
	logger.SetPrefix("devserver")
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := devserver.New(ctx, cfg.UploadDir, cfg.MaxUploadSize)
	httpSrv := &http.Server{
		Addr:         cfg.DevAddr,
		Handler:      srv.Router(cfg.CORSAllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("devserver listening on %s (uploads: %s)", cfg.DevAddr, cfg.UploadDir)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("devserver: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("devserver shutting down...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("devserver shutdown: %v", err)
	}
}
