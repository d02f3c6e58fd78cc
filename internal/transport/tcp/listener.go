// Package tcp implements the newline-delimited TCP transport adapter:
// one JSON object per line, UTF-8, LF-terminated in both directions.
package tcp

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/core"
	"github.com/lockstep-relay/server/internal/proto"
)

const maxLineBytes = 1 << 20 // 1MiB, generous headroom over typical game payloads

// Server accepts newline-delimited TCP connections and feeds admitted
// players into a dispatcher.
type Server struct {
	addr       string
	dispatcher *core.Dispatcher
	log        zerolog.Logger

	inboundBufferSize  int
	outboundBufferSize int
	watchdogInterval   time.Duration
	idleTimeout        time.Duration
	metrics            *core.IdleWatchdogMetrics
}

// New constructs a TCP transport server.
func New(addr string, dispatcher *core.Dispatcher, inboundBufferSize, outboundBufferSize int, watchdogInterval, idleTimeout time.Duration, metrics *core.IdleWatchdogMetrics, log zerolog.Logger) *Server {
	return &Server{
		addr:               addr,
		dispatcher:         dispatcher,
		log:                log.With().Str("transport", "tcp").Logger(),
		inboundBufferSize:  inboundBufferSize,
		outboundBufferSize: outboundBufferSize,
		watchdogInterval:   watchdogInterval,
		idleTimeout:        idleTimeout,
		metrics:            metrics,
	}
}

// ListenAndServe listens on addr and serves connections until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", s.addr).Msg("tcp transport listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.Warn().Err(err).Msg("tcp accept error")
				continue
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(parentCtx context.Context, conn net.Conn) {
	id := uuid.NewString()
	p := core.NewPlayer(id, s.inboundBufferSize, s.outboundBufferSize)
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	go p.PumpLocalInbound(ctx)
	go core.Watchdog(ctx, p, s.watchdogInterval, s.idleTimeout, func() {
		s.metrics.RecordDisconnect()
		conn.Close()
	})
	go s.writeLoop(ctx, cancel, conn, p)
	go s.readLoop(ctx, cancel, conn, p)

	if !core.Handshake(ctx, p, s.log) {
		conn.Close()
		return
	}

	s.dispatcher.Events() <- core.LifecycleEvent{Player: p}
	s.log.Debug().Str("player_id", id).Msg("player admitted over tcp")

	<-ctx.Done()
	p.MarkDisconnected()
	conn.Close()
	s.dispatcher.Events() <- core.LifecycleEvent{Player: p, Disconnected: true}
}

// readLoop is p.Inbound's single producer: it owns closing the channel
// on exit so pumpPlayer (whose lifetime otherwise outlives a single
// departed player, tied to the dispatcher's long-lived context) sees
// ok=false and returns instead of leaking.
func (s *Server) readLoop(ctx context.Context, cancel context.CancelFunc, conn net.Conn, p *core.Player) {
	defer cancel()
	defer close(p.Inbound)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := proto.Decode(line)
		if err != nil {
			s.log.Warn().Err(err).Str("player_id", p.ID).Msg("dropped malformed tcp frame")
			continue
		}
		p.Touch()
		p.PushInbound(msg)
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn net.Conn, p *core.Player) {
	for {
		select {
		case m := <-p.Outbound:
			data, err := proto.Encode(m)
			if err != nil {
				s.log.Warn().Err(err).Str("player_id", p.ID).Msg("failed to encode outbound message")
				continue
			}
			data = append(data, '\n')
			if _, err := conn.Write(data); err != nil {
				cancel()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
