package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"consult-platform/internal/apperr"
	"consult-platform/internal/events"
	"consult-platform/internal/models"
	"consult-platform/internal/repo"
	"consult-platform/internal/store"
)

func newDispatcher(t *testing.T) (*Dispatcher, *events.Bus) {
	t.Helper()
	kv := store.NewMemory(0)
	bus := events.NewBus()
	d := NewDispatcher(repo.NewMessages(kv), repo.NewNotifications(kv), bus)
	return d, bus
}

func TestConversationKeyUnordered(t *testing.T) {
	if ConversationKey("a", "b") != ConversationKey("b", "a") {
		t.Fatal("key depends on participant order")
	}
	if ConversationKey("a", "b") == ConversationKey("a", "c") {
		t.Fatal("distinct pairs share a key")
	}
}

func TestSendValidation(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	var validation *apperr.ValidationError
	if _, err := d.Send(ctx, "a", "a", "hi", ""); !errors.As(err, &validation) {
		t.Errorf("self-message = %v, want ValidationError", err)
	}
	if _, err := d.Send(ctx, "a", "b", "", ""); !errors.As(err, &validation) {
		t.Errorf("empty content = %v, want ValidationError", err)
	}
}

func TestSendEmitsEventButNoNotification(t *testing.T) {
	d, bus := newDispatcher(t)
	ctx := context.Background()

	var sent int
	bus.Subscribe(func(ev events.Event) {
		if _, ok := ev.(events.MessageSent); ok {
			sent++
		}
	})

	if _, err := d.Send(ctx, "a", "b", "hello", ""); err != nil {
		t.Fatal(err)
	}

	if sent != 1 {
		t.Errorf("message.sent published %d times, want 1", sent)
	}
	for _, id := range []string{"a", "b"} {
		list, err := d.Notifications(ctx, id)
		if err != nil || len(list) != 0 {
			t.Errorf("chat message created a notification for %s", id)
		}
	}
}

func TestConversationsDerivation(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	base := time.Now()
	stamp := func(ts time.Time) { d.now = func() time.Time { return ts } }

	stamp(base)
	if _, err := d.Send(ctx, "viewer", "alice", "hi alice", ""); err != nil {
		t.Fatal(err)
	}
	stamp(base.Add(time.Minute))
	if _, err := d.Send(ctx, "alice", "viewer", "hi back", ""); err != nil {
		t.Fatal(err)
	}
	stamp(base.Add(2 * time.Minute))
	if _, err := d.Send(ctx, "alice", "viewer", "you there?", ""); err != nil {
		t.Fatal(err)
	}
	stamp(base.Add(3 * time.Minute))
	if _, err := d.Send(ctx, "bob", "viewer", "yo", ""); err != nil {
		t.Fatal(err)
	}

	convs, err := d.Conversations(ctx, "viewer")
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}

	// Most recent activity first.
	if convs[0].PartnerID != "bob" || convs[1].PartnerID != "alice" {
		t.Errorf("order = %s, %s", convs[0].PartnerID, convs[1].PartnerID)
	}

	alice := convs[1]
	if alice.UnreadCount != 2 {
		t.Errorf("alice unread = %d, want 2 (only messages addressed to viewer)", alice.UnreadCount)
	}
	if alice.LastMessage.Content != "you there?" {
		t.Errorf("last message = %q", alice.LastMessage.Content)
	}
}

func TestMarkConversationReadIdempotent(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := d.Send(ctx, "alice", "viewer", "msg", ""); err != nil {
			t.Fatal(err)
		}
	}

	unread := func() int {
		convs, err := d.Conversations(ctx, "viewer")
		if err != nil || len(convs) != 1 {
			t.Fatalf("conversations = %d, %v", len(convs), err)
		}
		return convs[0].UnreadCount
	}

	if got := unread(); got != 3 {
		t.Fatalf("unread = %d, want 3", got)
	}

	if err := d.MarkConversationRead(ctx, "viewer", "alice"); err != nil {
		t.Fatal(err)
	}
	after := unread()
	if after != 0 {
		t.Fatalf("unread after mark = %d, want 0", after)
	}

	// Second call: same count, no error, nothing new.
	if err := d.MarkConversationRead(ctx, "viewer", "alice"); err != nil {
		t.Fatal(err)
	}
	if got := unread(); got != after {
		t.Errorf("second mark changed unread to %d", got)
	}

	// Reading must not touch messages the viewer sent.
	if _, err := d.Send(ctx, "viewer", "alice", "reply", ""); err != nil {
		t.Fatal(err)
	}
	if err := d.MarkConversationRead(ctx, "alice", "viewer"); err != nil {
		t.Fatal(err)
	}
	convs, _ := d.Conversations(ctx, "viewer")
	if convs[0].UnreadCount != 0 {
		t.Errorf("viewer unread = %d after partner read", convs[0].UnreadCount)
	}
}

type captureSink struct {
	pushes []string
}

func (s *captureSink) Push(accountID string, n models.Notification) {
	s.pushes = append(s.pushes, accountID)
}

func TestPublishLifecycleNotification(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	sink := &captureSink{}
	d.SetSink(sink)

	d.PublishLifecycleNotification(ctx, "acct", models.NotifSuccess, "Booking confirmed", "details", "/bookings/b1")

	list, err := d.Notifications(ctx, "acct")
	if err != nil || len(list) != 1 {
		t.Fatalf("inbox = %d, %v", len(list), err)
	}
	n := list[0]
	if n.Kind != models.NotifSuccess || n.Title != "Booking confirmed" || n.Link != "/bookings/b1" {
		t.Errorf("stored notification = %+v", n)
	}
	if n.IsRead {
		t.Errorf("new notification already read")
	}
	if len(sink.pushes) != 1 || sink.pushes[0] != "acct" {
		t.Errorf("sink pushes = %v", sink.pushes)
	}
}

func TestMarkNotificationReadIdempotent(t *testing.T) {
	d, _ := newDispatcher(t)
	ctx := context.Background()

	d.PublishLifecycleNotification(ctx, "acct", models.NotifInfo, "t", "m", "")
	list, _ := d.Notifications(ctx, "acct")
	id := list[0].ID

	for i := 0; i < 2; i++ {
		if err := d.MarkNotificationRead(ctx, "acct", id); err != nil {
			t.Fatal(err)
		}
	}
	list, _ = d.Notifications(ctx, "acct")
	if !list[0].IsRead {
		t.Errorf("notification still unread")
	}
}
