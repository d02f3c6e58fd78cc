// Package proto defines the wire shape of the relay protocol: a small
// reserved vocabulary layered over otherwise-opaque JSON objects.
package proto

import "encoding/json"

// Message is a decoded JSON object flowing through the relay. Payloads
// are opaque except for the reserved keys below, so the relay never
// needs a closed schema for application events.
type Message map[string]any

// Reserved keys. The server never interprets anything outside this set.
const (
	KeyMsg          = "msg"
	KeyLock         = "lock"
	KeySync         = "sync"
	KeyJoin         = "join"
	KeyAlive        = "alive"
	KeyPlayerID     = "playerId"
	KeyStep         = "step"
	KeyDisconnected = "disconnected"

	KeyID      = "id"
	KeySyncer  = "syncer"
	KeySeed    = "seed"
	KeyNewGame = "newGame"

	KeyGameType    = "gameType"
	KeyMaxPlayers  = "maxPlayers"
	KeyStepTimeMs  = "stepTime"
	keyGameTypeAlt = "game-type"
	keyMaxPlayers2 = "max-players"
	keyStepTime2   = "step-time"
)

const (
	MsgWelcome = "Welcome!"
	MsgSync    = "sync"
	MsgAlive   = "alive"
	MsgJoin    = "join"
)

// Clone returns a shallow copy, used by WithPlayerID and WithStep so
// that stamping never mutates the message it is called on. The stamped
// copy itself is shared by every recipient it is published to.
func (m Message) Clone() Message {
	out := make(Message, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// str reads a string field, tolerating a missing or wrong-typed key.
func (m Message) str(key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// num reads a numeric field. encoding/json decodes unmarshaled numbers
// as float64 (or json.Number with UseNumber), so those are the two
// types accepted here.
func (m Message) num(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// IsAlive reports whether this is a heartbeat ({msg:"alive"}).
func (m Message) IsAlive() bool {
	s, ok := m.str(KeyMsg)
	return ok && s == MsgAlive
}

// IsSync reports whether this is a donor sync reply ({msg:"sync", ...}).
func (m Message) IsSync() bool {
	s, ok := m.str(KeyMsg)
	return ok && s == MsgSync
}

// IsJoinAnnounce reports whether this is a server join announcement.
func (m Message) IsJoinAnnounce() bool {
	s, ok := m.str(KeyMsg)
	return ok && s == MsgJoin
}

// IsLock reports whether this carries a lock tick.
func (m Message) IsLock() bool {
	_, ok := m[KeyLock]
	return ok
}

// HandshakeInfo describes the {gameType, maxPlayers, stepTime} triple a
// client must send before it is offered to the dispatcher. Alternate
// hyphenated keys are accepted for compatibility with older clients.
type HandshakeInfo struct {
	GameType   string
	MaxPlayers int
	StepTime   int // milliseconds; 0 = stepless
}

// ParseHandshake extracts a HandshakeInfo from an inbound message,
// returning ok=false if any of the three required fields is absent.
func ParseHandshake(m Message) (HandshakeInfo, bool) {
	gameType, ok := m.str(KeyGameType)
	if !ok {
		gameType, ok = m.str(keyGameTypeAlt)
	}
	if !ok {
		return HandshakeInfo{}, false
	}

	maxPlayers, ok := m.num(KeyMaxPlayers)
	if !ok {
		maxPlayers, ok = m.num(keyMaxPlayers2)
	}
	if !ok || maxPlayers <= 0 {
		return HandshakeInfo{}, false
	}

	stepTime, ok := m.num(KeyStepTimeMs)
	if !ok {
		stepTime, ok = m.num(keyStepTime2)
	}
	if !ok || stepTime < 0 {
		return HandshakeInfo{}, false
	}

	return HandshakeInfo{
		GameType:   gameType,
		MaxPlayers: int(maxPlayers),
		StepTime:   int(stepTime),
	}, true
}

// Welcome builds the handshake acknowledgement carrying the assigned
// player UUID.
func Welcome(playerID string) Message {
	return Message{KeyMsg: MsgWelcome, KeyID: playerID}
}

// Admission builds the session-admission message sent once to a
// newly-placed player.
func Admission(newGame bool, playerID int, seed int64) Message {
	return Message{
		KeyJoin:     true,
		KeyNewGame:  newGame,
		KeyPlayerID: playerID,
		KeySeed:     seed,
	}
}

// Lock builds a tick-barrier message for the given step.
func Lock(step uint64) Message {
	return Message{KeyLock: step}
}

// JoinPending builds the join announcement queued onto a session's
// join-ch, before any step stamp is known. Stepped sessions add the
// step via WithStep when the ticker flushes it; stepless sessions
// emit it exactly as built here, with no step field.
func JoinPending(syncerID string) Message {
	return Message{KeyMsg: MsgJoin, KeySyncer: syncerID}
}

// Disconnected builds the peer-departure notice delivered to a
// player's local-inbound stream.
func Disconnected(playerID int) Message {
	return Message{KeyDisconnected: playerID}
}

// WithPlayerID returns a copy of m stamped with the session-assigned
// slot, overriding any client-supplied playerId.
func (m Message) WithPlayerID(playerID int) Message {
	out := m.Clone()
	out[KeyPlayerID] = playerID
	return out
}

// WithStep returns a copy of m stamped with the session's current step.
func (m Message) WithStep(step uint64) Message {
	out := m.Clone()
	out[KeyStep] = step
	return out
}

// Topic is the small finite set that session egress routes through.
type Topic int

const (
	TopicLock Topic = iota
	TopicSync
	TopicJoin
	TopicOther
)

// Classify maps an outgoing message to its publication topic, per the
// field-inspection rule: presence of "lock" wins, then msg=="sync",
// then msg=="join", else :other.
func Classify(m Message) Topic {
	if m.IsLock() {
		return TopicLock
	}
	if m.IsSync() {
		return TopicSync
	}
	if m.IsJoinAnnounce() {
		return TopicJoin
	}
	return TopicOther
}
