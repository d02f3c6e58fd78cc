package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/proto"
)

// Handshake issues the player its UUID, then blocks on the player's
// inbound stream until a message carrying the three handshake fields
// arrives. Non-matching messages are silently dropped — they were
// never forwarded to any session, since the player isn't in one yet.
// Returns ok=false if inbound closes (the client disconnected) before
// a valid handshake is seen.
func Handshake(ctx context.Context, p *Player, log zerolog.Logger) bool {
	p.PushOutbound(proto.Welcome(p.ID))

	for {
		select {
		case m, ok := <-p.Inbound:
			if !ok {
				return false
			}
			p.Touch()
			info, ok := proto.ParseHandshake(m)
			if !ok {
				err := coreError(ErrCodeBadHandshake, "message missing gameType/maxPlayers/stepTime")
				log.Debug().Str("player_id", p.ID).Err(err).Msg("dropped non-handshake message before join")
				continue
			}
			p.GameInfo = GameInfo{
				GameType:   info.GameType,
				MaxPlayers: info.MaxPlayers,
				StepTime:   time.Duration(info.StepTime) * time.Millisecond,
			}
			return true
		case <-ctx.Done():
			return false
		}
	}
}
