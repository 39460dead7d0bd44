package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"wmbench/internal/api"
	"wmbench/internal/config"
	"wmbench/internal/watermarking"

	//Import registered watermarking algorithms here
	_ "wmbench/internal/watermarking/remote"
	_ "wmbench/internal/watermarking/spread"
)

func main() {
	log := logrus.New()

	// Load configuration
	cfg, err := config.Load(os.Getenv("WMBENCH_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if lvl, err := cfg.Level(); err == nil {
		log.SetLevel(lvl)
	}

	specs, err := cfg.ProviderSpecs()
	if err != nil {
		log.Fatalf("Failed to read providers: %v", err)
	}
	set, err := watermarking.NewSet(specs)
	if err != nil {
		log.Fatalf("Failed to build providers: %v", err)
	}
	log.WithField("providers", set.Len()).Info("watermark providers loaded")

	// Set up the router and API handlers
	router := api.NewRouter(set, log)

	// Create and start the HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exiting gracefully.")
}
