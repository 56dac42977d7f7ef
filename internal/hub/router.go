package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/protocol"
)

// HandleMessage processes one inbound frame from a connection. The rate
// limiter runs first: a rejected message is dropped without dispatch and
// the sender is told via rate_limit_exceeded. Dispatch failures never tear
// the connection down; a panic inside a handler is recovered and surfaced
// to the sender as a generic message_error.
func (h *Hub) HandleMessage(ctx context.Context, connectionID string, raw []byte) bool {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	if !ok {
		h.mu.Unlock()
		return false
	}
	now := h.now()
	c.lastActivity = now
	allowed := c.allowMessage(now, h.cfg.RateLimitPerSecond)
	h.mu.Unlock()

	if !allowed {
		h.deliver(c, protocol.Envelope{
			Type: protocol.TypeRateLimitExceeded,
			Data: map[string]any{"limit": h.cfg.RateLimitPerSecond},
		})
		return false
	}

	return h.dispatch(ctx, c, raw)
}

func (h *Hub) dispatch(ctx context.Context, c *Connection, raw []byte) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic in message dispatch",
				zap.String("connection_id", c.id),
				zap.Any("panic", r),
			)
			h.deliver(c, protocol.Envelope{
				Type: protocol.TypeMessageError,
				Data: map[string]any{"error": "internal error handling message"},
			})
			handled = false
		}
	}()

	msg, err := protocol.Decode(raw)
	if err != nil {
		h.deliver(c, protocol.Envelope{
			Type: protocol.TypeMessageError,
			Data: map[string]any{"error": "malformed message"},
		})
		return false
	}

	switch m := msg.(type) {
	case protocol.Ping:
		h.deliver(c, protocol.Envelope{
			Type: protocol.TypePong,
			Data: map[string]any{"server_time": h.now()},
		})
		return true

	case protocol.Authenticate:
		return h.Authenticate(c.id, m.Token)

	case protocol.JoinChannel:
		return h.JoinChannel(c.id, m.Channel)

	case protocol.LeaveChannel:
		return h.LeaveChannel(c.id, m.Channel)

	case protocol.ClientMessage:
		h.mu.Lock()
		authenticated, userID := c.authenticated, c.userID
		h.mu.Unlock()
		if !authenticated {
			h.deliver(c, protocol.Envelope{
				Type: protocol.TypeMessageError,
				Data: map[string]any{"error": "authentication required"},
			})
			return false
		}
		if h.onClient != nil {
			h.onClient(userID, c.id, m.Payload)
		}
		return true

	case protocol.Unknown:
		// Not an error to the sender.
		h.logger.Debug("ignoring unknown message type",
			zap.String("connection_id", c.id),
			zap.String("type", m.Type),
		)
		return true
	}
	return false
}

// SendToConnection stamps and delivers a message to one connection.
// Unknown connection returns false without raising an error, so callers
// can treat disconnect races gracefully.
func (h *Hub) SendToConnection(connectionID string, env protocol.Envelope) bool {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	return h.deliver(c, env)
}

// SendToUserLive delivers to the connection currently representing the
// user, with no offline fallback. Callers that already persisted the
// message themselves use this so the offline queue keeps a single writer.
func (h *Hub) SendToUserLive(userID string, env protocol.Envelope) bool {
	env.Stamp(h.now())

	h.mu.Lock()
	var c *Connection
	if connectionID, ok := h.users[userID]; ok {
		c = h.conns[connectionID]
	}
	h.mu.Unlock()

	return c != nil && h.deliver(c, env)
}

// SendToUser delivers to the connection currently representing the user,
// or queues the message offline when the user has no live connection (or
// the live delivery fails). Returns true only for live delivery, so
// callers can distinguish "delivered" from "queued".
//
// Delivery is at-least-once: a user reconnecting mid-send can receive a
// message both live and from the offline queue. Clients deduplicate on the
// envelope's message_id.
func (h *Hub) SendToUser(ctx context.Context, userID string, env protocol.Envelope) bool {
	// Stamp up front so a live delivery and an offline copy of the same
	// message share one message_id.
	env.Stamp(h.now())

	h.mu.Lock()
	var c *Connection
	if connectionID, ok := h.users[userID]; ok {
		c = h.conns[connectionID]
	}
	h.mu.Unlock()

	if c != nil && h.deliver(c, env) {
		return true
	}

	if h.offline != nil {
		if err := h.offline.QueueForUser(ctx, userID, env); err != nil {
			h.logger.Error("failed to queue offline message",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
	}
	return false
}
