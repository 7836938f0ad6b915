package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagalabs/saga/internal/server"
	"github.com/sagalabs/saga/internal/store"
)

// ServeCmd creates the serve command.
func ServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket API",
		Long: `Serve conversations over a local HTTP and WebSocket API.

The REST surface covers conversation CRUD, sends, resets, model switches,
and exports; /api/v1/conversations/{id}/ws streams reply chunks.

Examples:
  saga serve
  saga serve --addr :9000`,
		Run: func(cmd *cobra.Command, args []string) {
			runServe(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(addr string) {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := buildClient(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}
	defer client.Close()

	st := openStore(cfg)
	defer st.Close()

	sweeper, err := store.StartSweeper(st, cfg.Retention.Days, cfg.Retention.Schedule)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}
	if sweeper != nil {
		defer sweeper.Stop()
	}

	hub := server.NewHub(st, client, server.HubConfig{
		DefaultModel:      cfg.ActiveModel(),
		SystemInstruction: cfg.SystemInstruction(),
		HistoryLimit:      cfg.HistoryLimit,
		MaxAttempts:       cfg.MaxAttempts,
	})

	if addr == "" {
		addr = cfg.Serve.Addr
	}
	srv := server.New(hub, server.Options{
		Addr:           addr,
		Token:          cfg.Serve.Token,
		RateLimit:      cfg.Serve.RateLimit,
		AllowedOrigins: cfg.Serve.AllowedOrigins,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\n\033[33mReceived signal: %v - shutting down...\033[0m\n", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		}
		cancel()
	}()

	fmt.Printf("Saga API listening on %s\n", addr)
	if cfg.Serve.Token == "" {
		fmt.Println("\033[33mWarning: no API token configured, requests are unauthenticated\033[0m")
	}
	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError: %v\033[0m\n", err)
		os.Exit(1)
	}
}
