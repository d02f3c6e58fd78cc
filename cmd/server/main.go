package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/lockstep-relay/server/internal/app"
	"github.com/lockstep-relay/server/internal/config"
	applog "github.com/lockstep-relay/server/internal/log"
)

func main() {
	bootLogger := applog.New("info")

	cfg, path, err := config.Load(bootLogger, os.Getenv("RELAY_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Flags take precedence over the resolved file/env config: each
	// flag's default is the value config.Load already produced, so an
	// unspecified flag leaves it untouched.
	flag.StringVar(&cfg.TCPAddr, "tcp-addr", cfg.TCPAddr, "TCP listen address")
	flag.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "WebSocket listen address")
	flag.StringVar(&cfg.EchoAddr, "echo-addr", cfg.EchoAddr, "echo listen address")
	flag.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "admin listen address")
	flag.DurationVar(&cfg.ReadHeaderTimeout, "read-header-timeout", cfg.ReadHeaderTimeout, "HTTP read header timeout")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
	flag.DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "player idle disconnect timeout")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.Parse()

	logger := applog.New(cfg.LogLevel)
	logger.Info().Str("path", path).Msg("configuration resolved")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, *logger)

	logger.Info().Str("tcp_addr", cfg.TCPAddr).Str("ws_addr", cfg.WSAddr).
		Str("admin_addr", cfg.AdminAddr).Msg("starting lockstep relay server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}
