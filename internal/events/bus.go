// Package events is the typed in-process bus for lifecycle events. Delivery
// is synchronous so tests can assert "exactly one event of kind X" without
// sleeps.
package events

import (
	"sync"

	"consult-platform/internal/models"
)

type Event interface {
	Name() string
}

type BookingConfirmed struct {
	BookingID   string
	CreatorID   string
	RequesterID string
}

func (BookingConfirmed) Name() string { return "booking.confirmed" }

type BookingCancelled struct {
	BookingID string
}

func (BookingCancelled) Name() string { return "booking.cancelled" }

type WithdrawalStatusChanged struct {
	WithdrawalID string
	Status       models.WithdrawalStatus
}

func (WithdrawalStatusChanged) Name() string { return "withdrawal.status_changed" }

type MessageSent struct {
	ConversationKey string
}

func (MessageSent) Name() string { return "message.sent" }

type Bus struct {
	mu   sync.RWMutex
	subs []func(Event)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, fn)
}

// Publish delivers the event to every subscriber on the caller's goroutine.
// Subscribers must not block.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]func(Event), len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}
