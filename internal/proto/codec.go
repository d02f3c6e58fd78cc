package proto

import "encoding/json"

// Decode parses a single JSON object frame into a Message. Framing
// itself (newline splitting for TCP, frame boundaries for WebSocket)
// is the transport's job; this only handles the payload.
func Decode(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Encode serializes a Message to a single JSON object, with no
// trailing newline — callers append framing as their transport needs.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}
