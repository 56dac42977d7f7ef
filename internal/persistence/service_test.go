package persistence_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lalith-99/streamgate/internal/models"
	"github.com/lalith-99/streamgate/internal/observ"
	"github.com/lalith-99/streamgate/internal/persistence"
	"github.com/lalith-99/streamgate/internal/protocol"
	"github.com/lalith-99/streamgate/internal/repository/memory"
)

func newService(offlineCap int) (*persistence.Service, *memory.OfflineStore, *memory.HistoryStore, *memory.ChatStore) {
	offline := memory.NewOfflineStore(offlineCap)
	history := memory.NewHistoryStore(1000)
	chat := memory.NewChatStore()
	svc := persistence.NewService(offline, history, chat, persistence.Retention{}, observ.NewNop())
	return svc, offline, history, chat
}

func TestOfflineQueueCap(t *testing.T) {
	svc, _, _, _ := newService(100)
	ctx := context.Background()

	for i := 1; i <= 105; i++ {
		if _, err := svc.StoreOfflineMessage(ctx, "42", map[string]any{"seq": i}, "note"); err != nil {
			t.Fatalf("StoreOfflineMessage #%d: %v", i, err)
		}
	}

	msgs, err := svc.GetOfflineMessages(ctx, "42", 0)
	if err != nil {
		t.Fatalf("GetOfflineMessages: %v", err)
	}
	if len(msgs) != 100 {
		t.Fatalf("queued = %d, want 100", len(msgs))
	}
	// Most recent first; the five oldest were evicted.
	if msgs[0].Payload["seq"] != 105 {
		t.Errorf("newest seq = %v, want 105", msgs[0].Payload["seq"])
	}
	if msgs[len(msgs)-1].Payload["seq"] != 6 {
		t.Errorf("oldest surviving seq = %v, want 6", msgs[len(msgs)-1].Payload["seq"])
	}
}

func TestClearOfflineMessages(t *testing.T) {
	svc, _, _, _ := newService(100)
	ctx := context.Background()

	if _, err := svc.StoreOfflineMessage(ctx, "42", map[string]any{}, "note"); err != nil {
		t.Fatalf("StoreOfflineMessage: %v", err)
	}
	if err := svc.ClearOfflineMessages(ctx, "42"); err != nil {
		t.Fatalf("ClearOfflineMessages: %v", err)
	}

	msgs, err := svc.GetOfflineMessages(ctx, "42", 10)
	if err != nil {
		t.Fatalf("GetOfflineMessages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("queued after clear = %d, want 0", len(msgs))
	}
}

func TestStoreChatMessageQueuesOfflineNotification(t *testing.T) {
	svc, _, _, _ := newService(100)
	ctx := context.Background()

	msg, err := svc.StoreChatMessage(ctx, "7", "42", "hello", "text")
	if err != nil {
		t.Fatalf("StoreChatMessage: %v", err)
	}
	if msg.ID == 0 {
		t.Error("chat message should have an id")
	}

	queued, err := svc.GetOfflineMessages(ctx, "42", 10)
	if err != nil {
		t.Fatalf("GetOfflineMessages: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("queued = %d, want 1", len(queued))
	}
	if queued[0].PayloadType != protocol.TypeChatMessage {
		t.Errorf("payload type = %q, want %q", queued[0].PayloadType, protocol.TypeChatMessage)
	}
	if queued[0].Payload["from_user_id"] != "7" {
		t.Errorf("from_user_id = %v, want 7", queued[0].Payload["from_user_id"])
	}
}

// failingChatStore rejects every write.
type failingChatStore struct{}

func (failingChatStore) Create(context.Context, string, string, string, string) (*models.ChatMessage, error) {
	return nil, fmt.Errorf("durable store unavailable")
}
func (failingChatStore) ListBetween(context.Context, string, string, int64, int) ([]models.ChatMessage, error) {
	return nil, nil
}
func (failingChatStore) MarkRead(context.Context, string, string) (int, error) { return 0, nil }
func (failingChatStore) CountUnread(context.Context, string) (int, error)      { return 0, nil }
func (failingChatStore) PurgeOlderThan(context.Context, time.Time) (int, error) {
	return 0, nil
}

func TestStoreChatMessageDurableFailureLeavesNoPartialState(t *testing.T) {
	offline := memory.NewOfflineStore(100)
	svc := persistence.NewService(offline, memory.NewHistoryStore(1000), failingChatStore{},
		persistence.Retention{}, observ.NewNop())
	ctx := context.Background()

	if _, err := svc.StoreChatMessage(ctx, "7", "42", "hello", "text"); err == nil {
		t.Fatal("expected error when the durable write fails")
	}

	queued, err := svc.GetOfflineMessages(ctx, "42", 10)
	if err != nil {
		t.Fatalf("GetOfflineMessages: %v", err)
	}
	if len(queued) != 0 {
		t.Error("a failed durable write must not leave a dangling offline message")
	}
}

func TestMarkChatMessagesAsReadIdempotent(t *testing.T) {
	svc, _, _, _ := newService(100)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.StoreChatMessage(ctx, "7", "42", "hi", "text"); err != nil {
			t.Fatalf("StoreChatMessage: %v", err)
		}
	}

	updated, err := svc.MarkChatMessagesAsRead(ctx, "42", "7")
	if err != nil {
		t.Fatalf("MarkChatMessagesAsRead: %v", err)
	}
	if updated != 3 {
		t.Errorf("first mark = %d, want 3", updated)
	}

	updated, err = svc.MarkChatMessagesAsRead(ctx, "42", "7")
	if err != nil {
		t.Fatalf("MarkChatMessagesAsRead (second): %v", err)
	}
	if updated != 0 {
		t.Errorf("second mark = %d, want 0", updated)
	}
}

func TestGetChatHistoryBothDirections(t *testing.T) {
	svc, _, _, _ := newService(100)
	ctx := context.Background()

	svc.StoreChatMessage(ctx, "7", "42", "one", "text")
	svc.StoreChatMessage(ctx, "42", "7", "two", "text")
	svc.StoreChatMessage(ctx, "7", "99", "other pair", "text")

	msgs, err := svc.GetChatHistory(ctx, "7", "42", 10, 0)
	if err != nil {
		t.Fatalf("GetChatHistory: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("history = %d messages, want 2", len(msgs))
	}
	if msgs[0].Body != "one" || msgs[1].Body != "two" {
		t.Errorf("history out of order: %q, %q", msgs[0].Body, msgs[1].Body)
	}

	// Cursor pages strictly older than the given id.
	page, err := svc.GetChatHistory(ctx, "7", "42", 10, msgs[1].ID)
	if err != nil {
		t.Fatalf("GetChatHistory with cursor: %v", err)
	}
	if len(page) != 1 || page[0].Body != "one" {
		t.Errorf("cursor page = %+v, want only the first message", page)
	}
}

func TestGetUnreadMessageStats(t *testing.T) {
	svc, _, _, _ := newService(100)
	ctx := context.Background()

	// Two chat messages; each also queues an offline notification.
	svc.StoreChatMessage(ctx, "7", "42", "a", "text")
	svc.StoreChatMessage(ctx, "8", "42", "b", "text")
	// One plain offline message on top.
	svc.StoreOfflineMessage(ctx, "42", map[string]any{}, "note")

	stats, err := svc.GetUnreadMessageStats(ctx, "42")
	if err != nil {
		t.Fatalf("GetUnreadMessageStats: %v", err)
	}
	if stats.OfflineMessages != 3 {
		t.Errorf("OfflineMessages = %d, want 3", stats.OfflineMessages)
	}
	if stats.UnreadChats != 2 {
		t.Errorf("UnreadChats = %d, want 2", stats.UnreadChats)
	}
	if stats.Total != 5 {
		t.Errorf("Total = %d, want 5", stats.Total)
	}
}

func TestChannelHistoryPagination(t *testing.T) {
	svc, _, history, _ := newService(100)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		entry := models.ChannelHistoryEntry{
			ID:          fmt.Sprintf("e%d", i),
			Channel:     "room1",
			Payload:     map[string]any{"seq": i},
			PayloadType: "update",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := history.Append(ctx, entry); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	// Latest page, replay order.
	page, err := svc.GetChannelHistory(ctx, "room1", 2, time.Time{})
	if err != nil {
		t.Fatalf("GetChannelHistory: %v", err)
	}
	if len(page) != 2 || page[0].ID != "e3" || page[1].ID != "e4" {
		t.Fatalf("latest page = %+v, want [e3 e4]", page)
	}

	// Backward pagination: strictly older than e3.
	page, err = svc.GetChannelHistory(ctx, "room1", 2, page[0].CreatedAt)
	if err != nil {
		t.Fatalf("GetChannelHistory (before): %v", err)
	}
	if len(page) != 2 || page[0].ID != "e1" || page[1].ID != "e2" {
		t.Fatalf("older page = %+v, want [e1 e2]", page)
	}
}

func TestCleanupExpiredMessages(t *testing.T) {
	offline := memory.NewOfflineStore(100)
	history := memory.NewHistoryStore(1000)
	chat := memory.NewChatStore()
	svc := persistence.NewService(offline, history, chat,
		persistence.Retention{History: time.Hour}, observ.NewNop())
	ctx := context.Background()
	now := time.Now()

	// One expired and one live offline message, injected at the store
	// level to control ExpiresAt.
	offline.Store(ctx, models.OfflineMessage{
		ID: "dead", UserID: "42", ExpiresAt: now.Add(-time.Minute),
	})
	offline.Store(ctx, models.OfflineMessage{
		ID: "live", UserID: "42", ExpiresAt: now.Add(time.Hour),
	})

	// One history entry outside the one-hour retention, one inside.
	history.Append(ctx, models.ChannelHistoryEntry{
		ID: "old", Channel: "room1", CreatedAt: now.Add(-2 * time.Hour),
	})
	history.Append(ctx, models.ChannelHistoryEntry{
		ID: "new", Channel: "room1", CreatedAt: now,
	})

	counts := svc.CleanupExpiredMessages(ctx)
	if counts.Offline != 1 {
		t.Errorf("Offline = %d, want 1", counts.Offline)
	}
	if counts.Channel != 1 {
		t.Errorf("Channel = %d, want 1", counts.Channel)
	}
	if counts.Chat != 0 {
		t.Errorf("Chat = %d, want 0", counts.Chat)
	}

	remaining, _ := svc.GetOfflineMessages(ctx, "42", 10)
	if len(remaining) != 1 || remaining[0].ID != "live" {
		t.Errorf("surviving offline queue = %+v, want only live", remaining)
	}
}

func TestQueueForUserPreservesEnvelope(t *testing.T) {
	svc, _, _, _ := newService(100)
	ctx := context.Background()

	env := protocol.Envelope{Type: "order_update", Data: map[string]any{"order": 9}}
	env.Stamp(time.Now())

	if err := svc.QueueForUser(ctx, "42", env); err != nil {
		t.Fatalf("QueueForUser: %v", err)
	}

	queued, err := svc.GetOfflineMessages(ctx, "42", 10)
	if err != nil {
		t.Fatalf("GetOfflineMessages: %v", err)
	}
	if len(queued) != 1 {
		t.Fatalf("queued = %d, want 1", len(queued))
	}
	if queued[0].Payload["message_id"] != env.MessageID {
		t.Error("queued payload should preserve the original message_id")
	}
}
