package protocol

import (
	"testing"
	"time"
)

func TestDecodeVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"ping", `{"type":"ping"}`, Ping{}},
		{"authenticate", `{"type":"authenticate","token":"abc"}`, Authenticate{Token: "abc"}},
		{"join", `{"type":"join_channel","channel":"room1"}`, JoinChannel{Channel: "room1"}},
		{"leave", `{"type":"leave_channel","channel":"room1"}`, LeaveChannel{Channel: "room1"}},
		{"unknown", `{"type":"frobnicate"}`, Unknown{Type: "frobnicate"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode(%s) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Decode(%s) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodeClientMessage(t *testing.T) {
	got, err := Decode([]byte(`{"type":"client_message","action":"order.create","qty":3}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	cm, ok := got.(ClientMessage)
	if !ok {
		t.Fatalf("expected ClientMessage, got %#v", got)
	}
	if cm.Payload["action"] != "order.create" {
		t.Errorf("payload action = %v, want order.create", cm.Payload["action"])
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := Decode([]byte(`{"channel":"room1"}`)); err == nil {
		t.Error("expected error for missing type field")
	}
}

func TestStampAssignsOnce(t *testing.T) {
	now := time.Now()

	var env Envelope
	env.Stamp(now)
	if env.MessageID == "" {
		t.Fatal("Stamp should assign a message id")
	}
	if !env.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", env.Timestamp, now)
	}
	if env.Data == nil {
		t.Error("Stamp should initialize Data")
	}

	// A second stamp refreshes the timestamp but keeps the id, so a live
	// delivery and an offline replay of the same message stay dedupable.
	first := env.MessageID
	env.Stamp(now.Add(time.Second))
	if env.MessageID != first {
		t.Errorf("MessageID changed on restamp: %q -> %q", first, env.MessageID)
	}
}
