package repo

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"consult-platform/internal/apperr"
	"consult-platform/internal/models"
	"consult-platform/internal/store"
)

// brokenStore fails writes of a key prefix, everything else passes through.
type brokenStore struct {
	store.Store
	failPrefix string
}

func (s *brokenStore) Set(ctx context.Context, key string, value []byte) error {
	if s.failPrefix != "" && strings.HasPrefix(key, s.failPrefix) {
		return store.ErrCapacityExceeded
	}
	return s.Store.Set(ctx, key, value)
}

func testBooking() models.Booking {
	return models.Booking{
		ID:          "b1",
		CreatorID:   "creator",
		RequesterID: "fan",
		Status:      models.BookingScheduled,
		CreatedAt:   time.Now(),
	}
}

func TestBookingsPutUnwindsOnIndexFailure(t *testing.T) {
	kv := &brokenStore{Store: store.NewMemory(0)}
	r := NewBookings(kv)
	ctx := context.Background()

	kv.failPrefix = "booking_index_"

	err := r.Put(ctx, testBooking())
	var persistence *apperr.PersistenceFailure
	if !errors.As(err, &persistence) {
		t.Fatalf("Put with failing index = %v, want PersistenceFailure", err)
	}

	kv.failPrefix = ""

	// No orphaned record and nothing indexed.
	if _, err := r.Get(ctx, "b1"); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("record survived the unwind: %v", err)
	}
	for _, owner := range []string{"creator", "fan"} {
		list, err := r.ListByParticipant(ctx, owner)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 0 {
			t.Errorf("%s still lists %d bookings", owner, len(list))
		}
	}

	// The same booking can be stored once writes recover.
	if err := r.Put(ctx, testBooking()); err != nil {
		t.Fatalf("Put after recovery: %v", err)
	}
	list, err := r.ListByParticipant(ctx, "fan")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListByParticipant after recovery = %d, %v", len(list), err)
	}
}
