package hub

import (
	"time"

	"github.com/lalith-99/streamgate/internal/protocol"
)

// Sender is the transport's per-connection outbound path. Send must not
// block: implementations queue into a bounded buffer and report false once
// the connection can no longer accept messages. Close tears the transport
// session down; it must be safe to call more than once.
type Sender interface {
	Send(env protocol.Envelope) bool
	Close()
}

// Meta carries the transport-level facts about a session that the registry
// records but never interprets.
type Meta struct {
	RemoteAddr  string
	ClientAgent string
}

// Connection is the registry's record of one live transport session. All
// fields are guarded by the hub mutex; nothing outside this package touches
// them directly.
type Connection struct {
	id           string
	connectedAt  time.Time
	lastActivity time.Time
	remoteAddr   string
	clientAgent  string

	// channels mirrors this connection's membership in the channel
	// registry. Both sides are always updated under the same lock hold.
	channels map[string]struct{}

	authenticated bool
	userID        string

	// Fixed one-second rate window. A burst straddling a window boundary
	// is an accepted imprecision.
	rateCount   int
	rateResetAt time.Time

	sender Sender
}

// allowMessage applies the fixed-window rate limit. Caller holds the hub
// mutex.
func (c *Connection) allowMessage(now time.Time, limit int) bool {
	if !now.Before(c.rateResetAt) {
		c.rateCount = 0
		c.rateResetAt = now.Add(time.Second)
	}
	if c.rateCount >= limit {
		return false
	}
	c.rateCount++
	return true
}
