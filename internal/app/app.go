package app

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/config"
	"github.com/lockstep-relay/server/internal/core"
	"github.com/lockstep-relay/server/internal/transport/admin"
	"github.com/lockstep-relay/server/internal/transport/echo"
	"github.com/lockstep-relay/server/internal/transport/tcp"
	"github.com/lockstep-relay/server/internal/transport/ws"
)

// App wires together the dispatcher and every transport adapter.
type App struct {
	dispatcher *core.Dispatcher
	metrics    *core.IdleWatchdogMetrics

	tcpServer   *tcp.Server
	wsServer    *stdhttp.Server
	echoServer  *echo.Server
	adminServer *admin.Server

	shutdownTimeout time.Duration
	log             zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger zerolog.Logger) *App {
	sessionCfg := core.SessionConfig{
		SyncActiveWindow:  cfg.SyncActiveWindow,
		SyncRetryInterval: cfg.SyncRetryInterval,
	}
	dispatcher := core.NewDispatcher(sessionCfg, logger)
	metrics := core.NewIdleWatchdogMetrics()

	tcpServer := tcp.New(cfg.TCPAddr, dispatcher, cfg.InboundBufferSize, cfg.OutboundBufferSize,
		cfg.WatchdogInterval, cfg.IdleTimeout, metrics, logger)
	wsHandler := ws.New(dispatcher, cfg.InboundBufferSize, cfg.OutboundBufferSize,
		cfg.WatchdogInterval, cfg.IdleTimeout, metrics, logger)

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", wsHandler)
	wsServer := &stdhttp.Server{
		Addr:              cfg.WSAddr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	echoServer := echo.New(cfg.EchoAddr, logger)
	adminServer := admin.New(cfg.AdminAddr, dispatcher, metrics, cfg.ReadHeaderTimeout, logger)

	return &App{
		dispatcher:      dispatcher,
		metrics:         metrics,
		tcpServer:       tcpServer,
		wsServer:        wsServer,
		echoServer:      echoServer,
		adminServer:     adminServer,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}
}

// Run starts every transport and the dispatcher, blocking until ctx is
// cancelled or any component returns a fatal error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.log.Info().Msg("starting relay transports")

	errCh := make(chan error, 4)

	go a.dispatcher.Run(ctx)

	go func() { errCh <- a.tcpServer.ListenAndServe(ctx) }()
	go func() { errCh <- a.echoServer.ListenAndServe(ctx) }()
	go func() { errCh <- a.adminServer.ListenAndServe(ctx) }()
	go func() {
		err := a.wsServer.ListenAndServe()
		if err == stdhttp.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer shutdownCancel()
		_ = a.wsServer.Shutdown(shutdownCtx)
	}()

	var firstErr error
	for i := 0; i < 4; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	a.metrics.Stop()
	return firstErr
}
