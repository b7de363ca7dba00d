package repo

import (
	"context"
	"errors"
	"sort"

	"consult-platform/internal/models"
	"consult-platform/internal/store"
)

var ErrWithdrawalNotFound = errors.New("withdrawal not found")

// Withdrawals keeps each creator's full withdrawal history under a single
// key, read and written whole per the store contract.
type Withdrawals struct {
	store store.Store
	locks *keyLocks
}

func NewWithdrawals(s store.Store) *Withdrawals {
	return &Withdrawals{store: s, locks: newKeyLocks()}
}

func (r *Withdrawals) Append(ctx context.Context, w models.Withdrawal) error {
	unlock := r.locks.Lock(keyWithdrawals + w.CreatorID)
	defer unlock()

	var list []models.Withdrawal
	if _, err := getJSON(ctx, r.store, keyWithdrawals+w.CreatorID, &list); err != nil {
		return err
	}
	list = append(list, w)
	return setJSON(ctx, r.store, keyWithdrawals+w.CreatorID, list)
}

// Remove deletes one record. Only used to roll back an initiation whose
// account write failed.
func (r *Withdrawals) Remove(ctx context.Context, creatorID, withdrawalID string) error {
	unlock := r.locks.Lock(keyWithdrawals + creatorID)
	defer unlock()

	var list []models.Withdrawal
	if _, err := getJSON(ctx, r.store, keyWithdrawals+creatorID, &list); err != nil {
		return err
	}
	kept := list[:0]
	for _, w := range list {
		if w.ID != withdrawalID {
			kept = append(kept, w)
		}
	}
	return setJSON(ctx, r.store, keyWithdrawals+creatorID, kept)
}

// List returns the creator's withdrawals newest first.
func (r *Withdrawals) List(ctx context.Context, creatorID string) ([]models.Withdrawal, error) {
	var list []models.Withdrawal
	if _, err := getJSON(ctx, r.store, keyWithdrawals+creatorID, &list); err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *Withdrawals) Get(ctx context.Context, creatorID, withdrawalID string) (models.Withdrawal, error) {
	var list []models.Withdrawal
	if _, err := getJSON(ctx, r.store, keyWithdrawals+creatorID, &list); err != nil {
		return models.Withdrawal{}, err
	}
	for _, w := range list {
		if w.ID == withdrawalID {
			return w, nil
		}
	}
	return models.Withdrawal{}, ErrWithdrawalNotFound
}

// Update applies fn to one record under the creator's lock. fn returning an
// error aborts without writing.
func (r *Withdrawals) Update(ctx context.Context, creatorID, withdrawalID string, fn func(*models.Withdrawal) error) (models.Withdrawal, error) {
	unlock := r.locks.Lock(keyWithdrawals + creatorID)
	defer unlock()

	var list []models.Withdrawal
	if _, err := getJSON(ctx, r.store, keyWithdrawals+creatorID, &list); err != nil {
		return models.Withdrawal{}, err
	}
	for i := range list {
		if list[i].ID != withdrawalID {
			continue
		}
		if err := fn(&list[i]); err != nil {
			return models.Withdrawal{}, err
		}
		if err := setJSON(ctx, r.store, keyWithdrawals+creatorID, list); err != nil {
			return models.Withdrawal{}, err
		}
		return list[i], nil
	}
	return models.Withdrawal{}, ErrWithdrawalNotFound
}
