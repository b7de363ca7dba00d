package repo

import (
	"context"
	"errors"

	"consult-platform/internal/models"
	"consult-platform/internal/store"
	"consult-platform/pkg/logger"
)

var ErrBookingNotFound = errors.New("booking not found")

type Bookings struct {
	store store.Store
	locks *keyLocks
}

func NewBookings(s store.Store) *Bookings {
	return &Bookings{store: s, locks: newKeyLocks()}
}

// Put stores a new booking and links it into both participants' indexes.
// A failed index write unwinds the record and any index entry already made,
// so a half-linked booking never lingers.
func (r *Bookings) Put(ctx context.Context, b models.Booking) error {
	if err := setJSON(ctx, r.store, keyBooking+b.ID, b); err != nil {
		return err
	}
	owners := []string{b.CreatorID, b.RequesterID}
	for i, owner := range owners {
		if err := r.addToIndex(ctx, owner, b.ID); err != nil {
			if rmErr := r.store.Remove(ctx, keyBooking+b.ID); rmErr != nil {
				logger.Errorf("bookings: unwind of record %s failed: %v", b.ID, rmErr)
			}
			for _, prev := range owners[:i] {
				if rbErr := r.removeFromIndex(ctx, prev, b.ID); rbErr != nil {
					logger.Warnf("bookings: unwind of index %s failed: %v", prev, rbErr)
				}
			}
			return err
		}
	}
	return nil
}

// Delete removes a booking record and its index entries. Used only to roll
// back a creation whose credit failed to persist; settled bookings are kept
// as history.
func (r *Bookings) Delete(ctx context.Context, b models.Booking) error {
	if err := r.store.Remove(ctx, keyBooking+b.ID); err != nil {
		return err
	}
	for _, owner := range []string{b.CreatorID, b.RequesterID} {
		if err := r.removeFromIndex(ctx, owner, b.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Bookings) removeFromIndex(ctx context.Context, owner, bookingID string) error {
	unlock := r.locks.Lock(keyBookingIndex + owner)
	defer unlock()

	var ids []string
	if _, err := getJSON(ctx, r.store, keyBookingIndex+owner, &ids); err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != bookingID {
			kept = append(kept, id)
		}
	}
	return setJSON(ctx, r.store, keyBookingIndex+owner, kept)
}

func (r *Bookings) addToIndex(ctx context.Context, owner, bookingID string) error {
	unlock := r.locks.Lock(keyBookingIndex + owner)
	defer unlock()

	var ids []string
	if _, err := getJSON(ctx, r.store, keyBookingIndex+owner, &ids); err != nil {
		return err
	}
	ids = append(ids, bookingID)
	return setJSON(ctx, r.store, keyBookingIndex+owner, ids)
}

func (r *Bookings) Get(ctx context.Context, id string) (models.Booking, error) {
	var b models.Booking
	found, err := getJSON(ctx, r.store, keyBooking+id, &b)
	if err != nil {
		return models.Booking{}, err
	}
	if !found {
		return models.Booking{}, ErrBookingNotFound
	}
	return b, nil
}

// Update is the transactional read-modify-write for one booking's status.
func (r *Bookings) Update(ctx context.Context, id string, fn func(*models.Booking) error) (models.Booking, error) {
	unlock := r.locks.Lock(keyBooking + id)
	defer unlock()

	b, err := r.Get(ctx, id)
	if err != nil {
		return models.Booking{}, err
	}
	if err := fn(&b); err != nil {
		return models.Booking{}, err
	}
	if err := setJSON(ctx, r.store, keyBooking+id, b); err != nil {
		return models.Booking{}, err
	}
	return b, nil
}

// ListByParticipant returns every booking the account takes part in, in
// unspecified order; callers sort per query type.
func (r *Bookings) ListByParticipant(ctx context.Context, accountID string) ([]models.Booking, error) {
	var ids []string
	if _, err := getJSON(ctx, r.store, keyBookingIndex+accountID, &ids); err != nil {
		return nil, err
	}

	out := make([]models.Booking, 0, len(ids))
	for _, id := range ids {
		b, err := r.Get(ctx, id)
		if err == ErrBookingNotFound {
			continue // index entry for a rolled-back record
		}
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
