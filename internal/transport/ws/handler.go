// Package ws implements the WebSocket transport adapter: each text or
// binary frame carries exactly one JSON object, in either direction.
package ws

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/core"
	"github.com/lockstep-relay/server/internal/proto"
)

const subprotocol = "binary"

// Handler upgrades HTTP connections to WebSocket and bridges them into
// a dispatcher, exactly as the TCP transport does for raw sockets.
type Handler struct {
	dispatcher *core.Dispatcher
	log        zerolog.Logger

	inboundBufferSize  int
	outboundBufferSize int
	watchdogInterval   time.Duration
	idleTimeout        time.Duration
	metrics            *core.IdleWatchdogMetrics
}

// New constructs a WebSocket transport handler.
func New(dispatcher *core.Dispatcher, inboundBufferSize, outboundBufferSize int, watchdogInterval, idleTimeout time.Duration, metrics *core.IdleWatchdogMetrics, log zerolog.Logger) *Handler {
	return &Handler{
		dispatcher:         dispatcher,
		log:                log.With().Str("transport", "ws").Logger(),
		inboundBufferSize:  inboundBufferSize,
		outboundBufferSize: outboundBufferSize,
		watchdogInterval:   watchdogInterval,
		idleTimeout:        idleTimeout,
		metrics:            metrics,
	}
}

// ServeHTTP negotiates the required "binary" subprotocol before
// upgrading; a client that never offered it gets a plain HTTP 400,
// never a WebSocket close frame.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !offersSubprotocol(r, subprotocol) {
		http.Error(w, "missing required subprotocol", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{subprotocol},
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	id := uuid.NewString()
	p := core.NewPlayer(id, h.inboundBufferSize, h.outboundBufferSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go p.PumpLocalInbound(ctx)
	go core.Watchdog(ctx, p, h.watchdogInterval, h.idleTimeout, func() {
		h.metrics.RecordDisconnect()
		conn.Close(websocket.StatusPolicyViolation, "idle timeout")
	})

	errCh := make(chan error, 2)
	go func() { errCh <- h.readLoop(ctx, conn, p) }()
	go func() { errCh <- h.writeLoop(ctx, conn, p) }()

	if !core.Handshake(ctx, p, h.log) {
		cancel()
		<-errCh
		<-errCh
		conn.Close(websocket.StatusNormalClosure, "no handshake")
		return
	}

	h.dispatcher.Events() <- core.LifecycleEvent{Player: p}
	h.log.Debug().Str("player_id", id).Msg("player admitted over ws")

	readErr := <-errCh
	cancel()
	<-errCh

	p.MarkDisconnected()
	h.dispatcher.Events() <- core.LifecycleEvent{Player: p, Disconnected: true}

	status := websocket.StatusNormalClosure
	reason := "closing"
	if readErr != nil && !errors.Is(readErr, context.Canceled) && !errors.Is(readErr, io.EOF) {
		status = websocket.StatusInternalError
		reason = readErr.Error()
		h.log.Warn().Err(readErr).Str("player_id", id).Msg("ws connection closed with error")
	}
	conn.Close(status, reason)
}

// readLoop is p.Inbound's single producer: it owns closing the channel
// on exit so pumpPlayer (whose lifetime otherwise outlives a single
// departed player, tied to the dispatcher's long-lived context) sees
// ok=false and returns instead of leaking.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, p *core.Player) error {
	defer close(p.Inbound)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		msg, err := proto.Decode(data)
		if err != nil {
			h.log.Warn().Err(err).Str("player_id", p.ID).Msg("dropped malformed ws frame")
			continue
		}
		p.Touch()
		p.PushInbound(msg)
	}
}

func (h *Handler) writeLoop(ctx context.Context, conn *websocket.Conn, p *core.Player) error {
	for {
		select {
		case m := <-p.Outbound:
			data, err := proto.Encode(m)
			if err != nil {
				h.log.Warn().Err(err).Str("player_id", p.ID).Msg("failed to encode outbound message")
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// offersSubprotocol reports whether r's Sec-WebSocket-Protocol header
// lists name among its comma-separated values.
func offersSubprotocol(r *http.Request, name string) bool {
	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, candidate := range strings.Split(header, ",") {
			if strings.TrimSpace(candidate) == name {
				return true
			}
		}
	}
	return false
}
