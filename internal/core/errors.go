package core

// Error codes for domain errors surfaced through logs and, where the
// protocol calls for it, the wire.
const (
	ErrCodeNoDonor       = "no_donor"
	ErrCodeBadHandshake  = "bad_handshake"
	ErrCodeSessionClosed = "session_closed"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
