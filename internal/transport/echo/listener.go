// Package echo implements the auxiliary echo endpoint: a plain TCP
// listener that writes back whatever it reads, untouched by framing,
// handshake, or session logic. It exists for connectivity smoke tests
// and carries no game-relay semantics.
package echo

import (
	"context"
	"io"
	"net"

	"github.com/rs/zerolog"
)

// Server is a bare byte-for-byte TCP echo listener.
type Server struct {
	addr string
	log  zerolog.Logger
}

// New constructs an echo server.
func New(addr string, log zerolog.Logger) *Server {
	return &Server{addr: addr, log: log.With().Str("transport", "echo").Logger()}
}

// ListenAndServe listens on addr and echoes connections until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.log.Info().Str("addr", s.addr).Msg("echo transport listening")

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
				s.log.Warn().Err(err).Msg("echo accept error")
				continue
			}
		}
		go handle(conn)
	}
}

func handle(conn net.Conn) {
	defer conn.Close()
	io.Copy(conn, conn)
}
