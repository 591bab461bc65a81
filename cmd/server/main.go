// Package main starts the relaychat server: the TCP relay, the optional
// WebSocket gateway and the admin console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/relaychat/internal/admin"
	"github.com/Tyrowin/relaychat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()
	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(cfg, log)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	if cfg.WebSocketAddr != "" {
		httpServer := server.CreateServer(cfg.WebSocketAddr, server.SetupRoutes(srv))
		g.Go(func() error {
			return server.StartServer(log, httpServer)
		})
		g.Go(func() error {
			<-gctx.Done()
			return server.ShutdownServer(log, httpServer, cfg.ShutdownTimeout)
		})
	}

	// The console blocks on stdin, so it stays outside the group.
	if cfg.AdminConsole {
		console := admin.NewConsole(os.Stdin, os.Stdout, srv.Hub(), log, stop)
		go func() {
			if err := console.Run(gctx); err != nil {
				log.Error("Admin console stopped", "error", err)
			}
		}()
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}
