package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/access"
	"github.com/lalith-99/streamgate/internal/protocol"
)

// notification pairs an envelope with the connection it is destined for.
// Registry mutations collect these under the mutex and deliver after
// releasing it.
type notification struct {
	target *Connection
	env    protocol.Envelope
}

// JoinChannel adds the connection to the named channel, lazily creating it.
// Join eligibility follows the channel naming convention; a rejected join
// has no side effect and the connection receives channel_join_error. On
// success the joiner receives channel_joined with the current member count
// and the rest of the channel receives member_joined.
func (h *Hub) JoinChannel(connectionID, name string) bool {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	if !ok {
		h.mu.Unlock()
		return false
	}

	if name == "" || !access.CanJoin(c.authenticated, c.userID, name) {
		h.mu.Unlock()
		h.deliver(c, protocol.Envelope{
			Type: protocol.TypeChannelJoinError,
			Data: map[string]any{
				"channel": name,
				"error":   "join not permitted",
			},
		})
		return false
	}

	ch, exists := h.channels[name]
	if !exists {
		ch = &channel{
			name:      name,
			createdAt: h.now(),
			members:   make(map[string]*Connection),
		}
		h.channels[name] = ch
	}

	_, already := ch.members[connectionID]
	ch.members[connectionID] = c
	c.channels[name] = struct{}{}
	memberCount := len(ch.members)

	var others []*Connection
	if !already {
		for id, member := range ch.members {
			if id != connectionID {
				others = append(others, member)
			}
		}
	}
	h.mu.Unlock()

	h.deliver(c, protocol.Envelope{
		Type: protocol.TypeChannelJoined,
		Data: map[string]any{
			"channel":      name,
			"member_count": memberCount,
		},
	})
	for _, member := range others {
		h.deliver(member, protocol.Envelope{
			Type: protocol.TypeMemberJoined,
			Data: map[string]any{
				"channel":       name,
				"connection_id": connectionID,
				"user_id":       c.userID,
			},
		})
	}

	h.logger.Debug("channel joined",
		zap.String("connection_id", connectionID),
		zap.String("channel", name),
		zap.Int("member_count", memberCount),
	)
	return true
}

// LeaveChannel removes both sides of the membership and prunes the channel
// if it emptied. Leaving a channel the connection is not in returns false
// (a not-found condition, not an error).
func (h *Hub) LeaveChannel(connectionID, name string) bool {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	if !ok {
		h.mu.Unlock()
		return false
	}

	ch := h.channels[name]
	if ch == nil {
		h.mu.Unlock()
		return false
	}
	if _, member := ch.members[connectionID]; !member {
		h.mu.Unlock()
		return false
	}

	notifs := h.removeMemberLocked(ch, c)
	h.mu.Unlock()

	h.deliver(c, protocol.Envelope{
		Type: protocol.TypeChannelLeft,
		Data: map[string]any{"channel": name},
	})
	for _, n := range notifs {
		h.deliver(n.target, n.env)
	}
	return true
}

// BroadcastToChannel sends the envelope to every current member except the
// excluded connection and returns the number of successful sends. Unknown
// channel broadcasts to nobody and returns 0. This is the domain-facing
// entry point, so the message is also recorded into channel history.
func (h *Hub) BroadcastToChannel(ctx context.Context, name string, env protocol.Envelope, excludeConnectionID string) int {
	// Stamp up front so every recipient and the history record share one
	// message_id.
	env.Stamp(h.now())
	sent := h.fanout(name, env, excludeConnectionID)

	if h.history != nil {
		if err := h.history.RecordBroadcast(ctx, name, env); err != nil {
			h.logger.Error("failed to record channel history",
				zap.String("channel", name),
				zap.Error(err),
			)
		}
	}
	return sent
}

// fanout delivers to a snapshot of the channel's members. Members joining
// concurrently may or may not see the message; the snapshot guarantees the
// iteration itself is never torn.
func (h *Hub) fanout(name string, env protocol.Envelope, excludeConnectionID string) int {
	h.mu.Lock()
	ch := h.channels[name]
	var targets []*Connection
	if ch != nil {
		for id, member := range ch.members {
			if id != excludeConnectionID {
				targets = append(targets, member)
			}
		}
	}
	h.mu.Unlock()

	sent := 0
	for _, member := range targets {
		if h.deliver(member, env) {
			sent++
		}
	}
	return sent
}

// removeMemberLocked detaches the connection from one channel, prunes the
// channel if it emptied, and returns member_left notifications for any
// remaining members. Caller holds the mutex.
func (h *Hub) removeMemberLocked(ch *channel, c *Connection) []notification {
	delete(ch.members, c.id)
	delete(c.channels, ch.name)

	if len(ch.members) == 0 {
		delete(h.channels, ch.name)
		return nil
	}

	notifs := make([]notification, 0, len(ch.members))
	for _, member := range ch.members {
		notifs = append(notifs, notification{
			target: member,
			env: protocol.Envelope{
				Type: protocol.TypeMemberLeft,
				Data: map[string]any{
					"channel":       ch.name,
					"connection_id": c.id,
					"user_id":       c.userID,
				},
			},
		})
	}
	return notifs
}

// removeFromChannelsLocked detaches the connection from every channel it
// belongs to, collecting member_left notifications. Caller holds the mutex.
func (h *Hub) removeFromChannelsLocked(c *Connection) []notification {
	var notifs []notification
	for name := range c.channels {
		if ch := h.channels[name]; ch != nil {
			notifs = append(notifs, h.removeMemberLocked(ch, c)...)
		}
	}
	return notifs
}
