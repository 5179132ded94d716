/*
Package main is the entry point for the Cloak server.

It is responsible for loading configuration, initializing the global logging system,
starting the orchestrator's event loop, setting up the HTTP server, and gracefully handling
operating system interrupt signals (SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloak/internal/configs"
	"cloak/internal/handler"
	"cloak/internal/pkg/logx"
)

// httpTransport closes the HTTP server when the orchestrator shuts down.
type httpTransport struct {
	server  *http.Server
	timeout time.Duration
}

func (t httpTransport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	return t.server.Shutdown(ctx)
}

func main() {
	// Load configuration from the optional file and environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Dur("tick_interval", cfg.Cloak.TickInterval).
		Int("min_room_members", cfg.Cloak.MinRoomMembers).
		Bool("auto_create_rooms", cfg.Cloak.AutoCreateRooms).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the orchestrator and its event loop
	orchestrator := newOrchestrator(cfg.Cloak)
	go orchestrator.Run(context.Background())

	// Setup HTTP server and routes
	router := handler.Router(ctx, &handler.AppDeps{Cloak: orchestrator, Config: cfg})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Cloak Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal, then clear users and rooms before closing the listener.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	orchestrator.Shutdown(httpTransport{server: server, timeout: 5 * time.Second})

	logx.Info("Server gracefully stopped.")
}
