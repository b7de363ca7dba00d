// Package messaging threads direct messages into conversations and is the
// single choke point through which lifecycle notifications are created.
package messaging

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"consult-platform/internal/apperr"
	"consult-platform/internal/events"
	"consult-platform/internal/models"
	"consult-platform/internal/repo"
	"consult-platform/pkg/logger"
)

// Sink receives notifications for live delivery (the websocket hub in the
// real wiring). Fire and forget; implementations must not block.
type Sink interface {
	Push(accountID string, n models.Notification)
}

type Dispatcher struct {
	messages      *repo.Messages
	notifications *repo.Notifications
	bus           *events.Bus
	sink          Sink
	now           func() time.Time
}

func NewDispatcher(messages *repo.Messages, notifications *repo.Notifications, bus *events.Bus) *Dispatcher {
	return &Dispatcher{
		messages:      messages,
		notifications: notifications,
		bus:           bus,
		now:           time.Now,
	}
}

// SetSink attaches a live-delivery sink. Optional.
func (d *Dispatcher) SetSink(s Sink) {
	d.sink = s
}

// ConversationKey is the unordered-pair key for two participants.
func ConversationKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Send appends a direct message. Chat messages deliberately do not create
// Notification records; those are reserved for lifecycle transitions.
func (d *Dispatcher) Send(ctx context.Context, senderID, receiverID, content, bookingID string) (models.Message, error) {
	if senderID == receiverID {
		return models.Message{}, &apperr.ValidationError{Reason: "cannot message yourself"}
	}
	if content == "" {
		return models.Message{}, &apperr.ValidationError{Reason: "empty message"}
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		IsRead:     false,
		Timestamp:  d.now(),
		BookingID:  bookingID,
	}

	key := ConversationKey(senderID, receiverID)
	if err := d.messages.Append(ctx, key, msg); err != nil {
		// Truncated chat history is cosmetic, not financial.
		logger.Warnf("messaging: message %s not durably saved: %v", msg.ID, err)
	}

	d.bus.Publish(events.MessageSent{ConversationKey: key})
	return msg, nil
}

// Conversations derives the viewer's thread list from the stored message
// set: one entry per partner, last message by timestamp, unread count over
// messages addressed to the viewer.
func (d *Dispatcher) Conversations(ctx context.Context, viewerID string) ([]models.Conversation, error) {
	keys, err := d.messages.Keys(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	out := make([]models.Conversation, 0, len(keys))
	for _, key := range keys {
		msgs, err := d.messages.Conversation(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			continue
		}

		conv := models.Conversation{Key: key}
		for _, m := range msgs {
			if m.SenderID == viewerID {
				conv.PartnerID = m.ReceiverID
			} else {
				conv.PartnerID = m.SenderID
			}
			if m.Timestamp.After(conv.LastMessage.Timestamp) {
				conv.LastMessage = m
			}
			if m.ReceiverID == viewerID && !m.IsRead {
				conv.UnreadCount++
			}
		}
		out = append(out, conv)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.Timestamp.After(out[j].LastMessage.Timestamp)
	})
	return out, nil
}

// MarkConversationRead flips every unread message from partner to viewer.
// Idempotent: a second call finds nothing unread, writes nothing, and emits
// nothing.
func (d *Dispatcher) MarkConversationRead(ctx context.Context, viewerID, partnerID string) error {
	key := ConversationKey(viewerID, partnerID)
	_, err := d.messages.UpdateConversation(ctx, key, func(msgs []models.Message) ([]models.Message, bool) {
		changed := false
		for i := range msgs {
			if msgs[i].ReceiverID == viewerID && !msgs[i].IsRead {
				msgs[i].IsRead = true
				changed = true
			}
		}
		return msgs, changed
	})
	return err
}

// PublishLifecycleNotification creates exactly one Notification record for a
// triggering transition and pushes it to the live sink. Booking and wallet
// code must call this, never the notification store directly.
func (d *Dispatcher) PublishLifecycleNotification(ctx context.Context, accountID string, kind models.NotificationKind, title, message, link string) {
	n := models.Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Kind:      kind,
		Timestamp: d.now(),
		Link:      link,
	}
	if err := d.notifications.Append(ctx, accountID, n); err != nil {
		// Inbox loss is cosmetic; the state transition already happened.
		logger.Warnf("messaging: notification for %s not durably saved: %v", accountID, err)
	}
	if d.sink != nil {
		d.sink.Push(accountID, n)
	}
}

func (d *Dispatcher) Notifications(ctx context.Context, accountID string) ([]models.Notification, error) {
	return d.notifications.List(ctx, accountID)
}

func (d *Dispatcher) MarkNotificationRead(ctx context.Context, accountID, notificationID string) error {
	_, err := d.notifications.MarkRead(ctx, accountID, notificationID)
	return err
}
