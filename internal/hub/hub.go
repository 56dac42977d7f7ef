// Package hub is the broker core: the connection registry, the channel
// registry, and the message router, coordinated under one coarse mutex.
// Token verification and durable-store calls are always made outside the
// mutex; broadcasts send to a snapshot of members taken under it.
package hub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/access"
	"github.com/lalith-99/streamgate/internal/models"
	"github.com/lalith-99/streamgate/internal/protocol"
)

// TokenVerifier resolves an opaque token to a user identity. Any error
// means authentication fails closed.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// OfflineQueue is the slice of the persistence layer SendToUser falls back
// to when the target user has no live connection.
type OfflineQueue interface {
	QueueForUser(ctx context.Context, userID string, env protocol.Envelope) error
}

// HistoryRecorder records domain broadcasts into channel history. Internal
// membership notifications are not recorded.
type HistoryRecorder interface {
	RecordBroadcast(ctx context.Context, channel string, env protocol.Envelope) error
}

// ClientMessageFunc is the domain-event sink for authenticated
// client_message payloads. The broker forwards them without interpreting.
type ClientMessageFunc func(userID, connectionID string, payload map[string]any)

// Config holds the broker's runtime knobs.
type Config struct {
	MaxConnections     int
	RateLimitPerSecond int
	IdleTimeout        time.Duration
}

type channel struct {
	name      string
	createdAt time.Time
	members   map[string]*Connection
}

// Hub owns all connection and channel state. Constructed once at startup
// and shared; all methods are safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	conns    map[string]*Connection
	users    map[string]string // userID -> connection id currently representing the user
	channels map[string]*channel

	cfg      Config
	verifier TokenVerifier
	offline  OfflineQueue
	history  HistoryRecorder
	onClient ClientMessageFunc
	logger   *zap.Logger

	now func() time.Time
}

func New(cfg Config, verifier TokenVerifier, offline OfflineQueue, history HistoryRecorder, logger *zap.Logger) *Hub {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 5000
	}
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 100
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	return &Hub{
		conns:    make(map[string]*Connection),
		users:    make(map[string]string),
		channels: make(map[string]*channel),
		cfg:      cfg,
		verifier: verifier,
		offline:  offline,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClientMessageHandler installs the domain-event sink. Must be called
// before the hub starts receiving traffic.
func (h *Hub) SetClientMessageHandler(fn ClientMessageFunc) {
	h.onClient = fn
}

// Connect registers a new transport session. It returns false, mutating
// nothing, when the connection cap is reached (no message is sent; there is
// no established connection to send on) or when the id is already in use.
// On success the new connection receives connection_established describing
// the broker's capabilities.
func (h *Hub) Connect(connectionID string, meta Meta, sender Sender) bool {
	h.mu.Lock()
	if len(h.conns) >= h.cfg.MaxConnections {
		h.mu.Unlock()
		h.logger.Warn("connection rejected: at capacity",
			zap.String("connection_id", connectionID),
			zap.Int("max_connections", h.cfg.MaxConnections),
		)
		return false
	}
	if _, exists := h.conns[connectionID]; exists {
		h.mu.Unlock()
		h.logger.Warn("connection rejected: duplicate id", zap.String("connection_id", connectionID))
		return false
	}

	now := h.now()
	c := &Connection{
		id:           connectionID,
		connectedAt:  now,
		lastActivity: now,
		remoteAddr:   meta.RemoteAddr,
		clientAgent:  meta.ClientAgent,
		channels:     make(map[string]struct{}),
		rateResetAt:  now.Add(time.Second),
		sender:       sender,
	}
	h.conns[connectionID] = c
	h.mu.Unlock()

	h.deliver(c, protocol.Envelope{
		Type: protocol.TypeConnectionEstablished,
		Data: map[string]any{
			"connection_id": connectionID,
			"capabilities": map[string]any{
				"authentication": true,
				"channel_types":  []string{"public", "private", "presence", "user"},
			},
		},
	})

	h.logger.Info("connection established",
		zap.String("connection_id", connectionID),
		zap.String("remote_addr", meta.RemoteAddr),
	)
	return true
}

// Disconnect removes a connection, its channel memberships, and its user
// index entry. Idempotent: unknown ids are a no-op, so transport teardown
// and the idle sweep can race freely.
func (h *Hub) Disconnect(connectionID string) {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	if !ok {
		h.mu.Unlock()
		return
	}

	notifs := h.removeFromChannelsLocked(c)

	if c.authenticated && h.users[c.userID] == connectionID {
		delete(h.users, c.userID)
	}
	delete(h.conns, connectionID)
	h.mu.Unlock()

	for _, n := range notifs {
		h.deliver(n.target, n.env)
	}
	c.sender.Close()

	h.logger.Info("connection closed", zap.String("connection_id", connectionID))
}

// Authenticate resolves the token to a user identity and promotes the
// connection. On failure the connection stays alive and unauthenticated
// (public channels remain usable) and authentication_error is sent. On
// success the user index maps the user to this connection, replacing any
// prior mapping (last authenticated wins), the user-scoped channel is
// auto-joined, and authentication_success names it.
func (h *Hub) Authenticate(connectionID, token string) bool {
	h.mu.Lock()
	c, ok := h.conns[connectionID]
	h.mu.Unlock()
	if !ok {
		return false
	}

	// Verification may be slow; never under the mutex.
	userID, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Warn("authentication failed",
			zap.String("connection_id", connectionID),
			zap.Error(err),
		)
		h.deliver(c, protocol.Envelope{
			Type: protocol.TypeAuthenticationError,
			Data: map[string]any{"error": "invalid or expired token"},
		})
		return false
	}

	h.mu.Lock()
	if _, still := h.conns[connectionID]; !still {
		// Disconnected while we were verifying.
		h.mu.Unlock()
		return false
	}
	if c.authenticated && c.userID != userID && h.users[c.userID] == connectionID {
		// Re-authentication under a different identity releases the old
		// user-index entry.
		delete(h.users, c.userID)
	}
	c.authenticated = true
	c.userID = userID
	h.users[userID] = connectionID
	h.mu.Unlock()

	userChannel := access.UserChannel(userID)
	h.JoinChannel(connectionID, userChannel)

	h.deliver(c, protocol.Envelope{
		Type: protocol.TypeAuthenticationSuccess,
		Data: map[string]any{
			"user_id": userID,
			"channel": userChannel,
		},
	})

	h.logger.Info("connection authenticated",
		zap.String("connection_id", connectionID),
		zap.String("user_id", userID),
	)
	return true
}

// CleanupExpiredConnections disconnects every connection idle longer than
// the configured timeout and returns how many it removed. Driven by an
// external ticker; each removal goes through the same path as an explicit
// disconnect, so channel pruning and member_left notifications apply.
func (h *Hub) CleanupExpiredConnections() int {
	cutoff := h.now().Add(-h.cfg.IdleTimeout)

	h.mu.Lock()
	var expired []string
	for id, c := range h.conns {
		if c.lastActivity.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	h.mu.Unlock()

	for _, id := range expired {
		h.Disconnect(id)
	}
	if len(expired) > 0 {
		h.logger.Info("idle sweep removed connections", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Stats returns the observability snapshot exposed to the domain layer.
func (h *Hub) Stats() models.BrokerStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	authed := 0
	for _, c := range h.conns {
		if c.authenticated {
			authed++
		}
	}
	return models.BrokerStats{
		Connections:   len(h.conns),
		Authenticated: authed,
		Channels:      len(h.channels),
	}
}

// deliver stamps the envelope and hands it to the connection's outbound
// path, refreshing the activity timestamp on success. Never called with the
// mutex held: Send is non-blocking by contract, but keeping delivery
// outside the lock keeps a misbehaving Sender from stalling the registry.
func (h *Hub) deliver(c *Connection, env protocol.Envelope) bool {
	env.Stamp(h.now())
	if !c.sender.Send(env) {
		return false
	}
	h.mu.Lock()
	c.lastActivity = h.now()
	h.mu.Unlock()
	return true
}
