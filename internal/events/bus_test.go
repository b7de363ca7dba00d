package events

import (
	"testing"

	"consult-platform/internal/models"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()

	var a, b []string
	bus.Subscribe(func(ev Event) { a = append(a, ev.Name()) })
	bus.Subscribe(func(ev Event) { b = append(b, ev.Name()) })

	bus.Publish(BookingConfirmed{BookingID: "b1"})
	bus.Publish(WithdrawalStatusChanged{WithdrawalID: "w1", Status: models.WithdrawalPending})

	want := []string{"booking.confirmed", "withdrawal.status_changed"}
	for _, got := range [][]string{a, b} {
		if len(got) != len(want) {
			t.Fatalf("delivered %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("event %d = %s, want %s", i, got[i], want[i])
			}
		}
	}
}

func TestBusWithoutSubscribers(t *testing.T) {
	bus := NewBus()
	// Publishing into the void must not panic.
	bus.Publish(MessageSent{ConversationKey: "a:b"})
	bus.Publish(BookingCancelled{BookingID: "b1"})
}
