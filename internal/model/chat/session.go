package chat

import (
	"math/rand/v2"
	"strconv"
	"time"
)

const (
	sessionPrefix    = "session_"
	sessionSuffixLen = 9
	maxSessionIDLen  = 128
	base36Alphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Session captures one widget conversation, the lifetime of a browser tab.
type Session struct {
	ID        string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSessionID returns "session_<epochMillis>_<9 base36 chars>".
func NewSessionID(now time.Time) string {
	suffix := make([]byte, sessionSuffixLen)
	for i := range suffix {
		suffix[i] = base36Alphabet[rand.IntN(len(base36Alphabet))]
	}
	return sessionPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}

// ValidSessionID reports whether a client supplied identifier is usable as
// a session key: non-empty, bounded and limited to [A-Za-z0-9_-].
func ValidSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}
