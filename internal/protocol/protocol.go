// Package protocol defines the wire contract between the broker and its
// clients: the inbound control messages a connection may send, and the
// outbound envelope every server message is wrapped in.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outbound message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeAuthenticationSuccess = "authentication_success"
	TypeAuthenticationError   = "authentication_error"
	TypeChannelJoined         = "channel_joined"
	TypeChannelLeft           = "channel_left"
	TypeChannelJoinError      = "channel_join_error"
	TypeMemberJoined          = "member_joined"
	TypeMemberLeft            = "member_left"
	TypePong                  = "pong"
	TypeRateLimitExceeded     = "rate_limit_exceeded"
	TypeMessageError          = "message_error"
	TypeChatMessage           = "chat_message"
)

// Envelope is the outbound frame. Every message the broker writes carries a
// server timestamp and a unique message id; clients that see a message both
// live and replayed from the offline queue deduplicate on MessageID.
type Envelope struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
	MessageID string         `json:"message_id"`
}

// Stamp fills in the server timestamp and, if not already assigned, a
// fresh message id. An id assigned once sticks, so a message that reaches a
// user both live and via the offline queue carries the same MessageID.
func (e *Envelope) Stamp(now time.Time) {
	e.Timestamp = now
	if e.MessageID == "" {
		e.MessageID = uuid.NewString()
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
}

// Inbound is the decoded form of a client frame. Exactly one of the
// concrete types below comes out of Decode; Unknown captures any type the
// broker does not handle, so the router can log-and-ignore it explicitly
// instead of silently falling through.
type Inbound interface {
	inbound()
}

type Ping struct{}

type Authenticate struct {
	Token string
}

type JoinChannel struct {
	Channel string
}

type LeaveChannel struct {
	Channel string
}

// ClientMessage is an authenticated domain payload. The broker does not
// interpret it; the full decoded frame is forwarded to the domain sink.
type ClientMessage struct {
	Payload map[string]any
}

type Unknown struct {
	Type string
}

func (Ping) inbound()          {}
func (Authenticate) inbound()  {}
func (JoinChannel) inbound()   {}
func (LeaveChannel) inbound()  {}
func (ClientMessage) inbound() {}
func (Unknown) inbound()       {}

// Decode parses a raw client frame into its Inbound variant. Malformed
// JSON or a missing "type" field is an error; an unrecognized type is not
// (it decodes to Unknown).
func Decode(raw []byte) (Inbound, error) {
	var frame struct {
		Type    string `json:"type"`
		Token   string `json:"token"`
		Channel string `json:"channel"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("decode message: missing type field")
	}

	switch frame.Type {
	case "ping":
		return Ping{}, nil
	case "authenticate":
		return Authenticate{Token: frame.Token}, nil
	case "join_channel":
		return JoinChannel{Channel: frame.Channel}, nil
	case "leave_channel":
		return LeaveChannel{Channel: frame.Channel}, nil
	case "client_message":
		var payload map[string]any
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode client message: %w", err)
		}
		return ClientMessage{Payload: payload}, nil
	default:
		return Unknown{Type: frame.Type}, nil
	}
}
