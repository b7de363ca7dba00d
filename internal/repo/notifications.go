package repo

import (
	"context"

	"consult-platform/internal/models"
	"consult-platform/internal/store"
)

// Notifications is each account's inbox, newest last in storage.
type Notifications struct {
	store store.Store
	locks *keyLocks
}

func NewNotifications(s store.Store) *Notifications {
	return &Notifications{store: s, locks: newKeyLocks()}
}

func (r *Notifications) Append(ctx context.Context, accountID string, n models.Notification) error {
	unlock := r.locks.Lock(keyNotifications + accountID)
	defer unlock()

	var list []models.Notification
	if _, err := getJSON(ctx, r.store, keyNotifications+accountID, &list); err != nil {
		return err
	}
	list = append(list, n)
	return setJSON(ctx, r.store, keyNotifications+accountID, list)
}

// List returns the inbox newest first.
func (r *Notifications) List(ctx context.Context, accountID string) ([]models.Notification, error) {
	var list []models.Notification
	if _, err := getJSON(ctx, r.store, keyNotifications+accountID, &list); err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// MarkRead flips one notification's read flag. Reports whether anything
// changed; repeat calls are no-ops.
func (r *Notifications) MarkRead(ctx context.Context, accountID, notificationID string) (bool, error) {
	unlock := r.locks.Lock(keyNotifications + accountID)
	defer unlock()

	var list []models.Notification
	if _, err := getJSON(ctx, r.store, keyNotifications+accountID, &list); err != nil {
		return false, err
	}
	for i := range list {
		if list[i].ID != notificationID || list[i].IsRead {
			continue
		}
		list[i].IsRead = true
		if err := setJSON(ctx, r.store, keyNotifications+accountID, list); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
