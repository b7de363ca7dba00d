// Package repo layers per-entity repositories on top of the key→value store.
// Every mutation of shared balance/status state goes through a per-owner lock
// and re-reads the stored value before writing it back, so no caller can carry
// a stale balance across a suspension point.
package repo

import (
	"context"
	"encoding/json"
	"sync"

	"consult-platform/internal/apperr"
	"consult-platform/internal/store"
)

// Key namespaces, one per domain/entity pair.
const (
	keyAccount       = "account_record_"
	keyAccountEmail  = "account_email_"
	keyAccountIndex  = "account_index_all"
	keyBooking       = "booking_record_"
	keyBookingIndex  = "booking_index_"
	keyWithdrawals   = "wallet_withdrawals_"
	keyConversation  = "chat_messages_"
	keyChatIndex     = "chat_index_"
	keyNotifications = "notify_inbox_"
)

// keyLocks hands out one mutex per key. Lock returns the unlock func so call
// sites read as a single line with defer.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *keyLocks) Lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func getJSON(ctx context.Context, s store.Store, key string, out interface{}) (bool, error) {
	raw, err := s.Get(ctx, key)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, &apperr.PersistenceFailure{Key: key, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &apperr.PersistenceFailure{Key: key, Err: err}
	}
	return true, nil
}

func setJSON(ctx context.Context, s store.Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return &apperr.PersistenceFailure{Key: key, Err: err}
	}
	if err := s.Set(ctx, key, raw); err != nil {
		return &apperr.PersistenceFailure{Key: key, Err: err}
	}
	return nil
}
