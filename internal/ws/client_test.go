package ws

import (
	"sync"
	"testing"

	"github.com/lalith-99/streamgate/internal/observ"
	"github.com/lalith-99/streamgate/internal/protocol"
)

func newTestClient(bufferSize int) *Client {
	return &Client{
		id:     "test-conn",
		logger: observ.NewNop(),
		send:   make(chan protocol.Envelope, bufferSize),
		done:   make(chan struct{}),
	}
}

func TestSendQueuesUntilBufferFull(t *testing.T) {
	c := newTestClient(2)

	env := protocol.Envelope{Type: protocol.TypePong}
	if !c.Send(env) {
		t.Fatal("first Send = false, want true")
	}
	if !c.Send(env) {
		t.Fatal("second Send = false, want true")
	}

	// Buffer is full and nothing drains it: overflow closes the client.
	if c.Send(env) {
		t.Fatal("overflow Send = true, want false")
	}
	select {
	case <-c.done:
	default:
		t.Error("client not closed after overflow")
	}

	if c.Send(env) {
		t.Error("Send after close = true, want false")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := newTestClient(1)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()

	select {
	case <-c.done:
	default:
		t.Error("done not closed")
	}
}
