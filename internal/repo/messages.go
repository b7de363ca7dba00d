package repo

import (
	"context"

	"consult-platform/internal/models"
	"consult-platform/internal/store"
)

// Messages stores each conversation's ordered message list under the
// unordered-pair key, plus a per-account index of conversation keys.
type Messages struct {
	store store.Store
	locks *keyLocks
}

func NewMessages(s store.Store) *Messages {
	return &Messages{store: s, locks: newKeyLocks()}
}

func (r *Messages) Append(ctx context.Context, key string, msg models.Message) error {
	unlock := r.locks.Lock(keyConversation + key)
	defer unlock()

	var list []models.Message
	if _, err := getJSON(ctx, r.store, keyConversation+key, &list); err != nil {
		return err
	}
	list = append(list, msg)
	if err := setJSON(ctx, r.store, keyConversation+key, list); err != nil {
		return err
	}

	for _, owner := range []string{msg.SenderID, msg.ReceiverID} {
		if err := r.indexKey(ctx, owner, key); err != nil {
			return err
		}
	}
	return nil
}

func (r *Messages) indexKey(ctx context.Context, owner, key string) error {
	unlock := r.locks.Lock(keyChatIndex + owner)
	defer unlock()

	var keys []string
	if _, err := getJSON(ctx, r.store, keyChatIndex+owner, &keys); err != nil {
		return err
	}
	for _, k := range keys {
		if k == key {
			return nil
		}
	}
	keys = append(keys, key)
	return setJSON(ctx, r.store, keyChatIndex+owner, keys)
}

func (r *Messages) Conversation(ctx context.Context, key string) ([]models.Message, error) {
	var list []models.Message
	if _, err := getJSON(ctx, r.store, keyConversation+key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *Messages) Keys(ctx context.Context, accountID string) ([]string, error) {
	var keys []string
	if _, err := getJSON(ctx, r.store, keyChatIndex+accountID, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// UpdateConversation applies fn to the full message list under the
// conversation lock. fn reports whether anything changed; an unchanged list
// is not rewritten, which is what makes mark-as-read idempotent at the store
// level.
func (r *Messages) UpdateConversation(ctx context.Context, key string, fn func([]models.Message) ([]models.Message, bool)) (bool, error) {
	unlock := r.locks.Lock(keyConversation + key)
	defer unlock()

	var list []models.Message
	if _, err := getJSON(ctx, r.store, keyConversation+key, &list); err != nil {
		return false, err
	}
	updated, changed := fn(list)
	if !changed {
		return false, nil
	}
	if err := setJSON(ctx, r.store, keyConversation+key, updated); err != nil {
		return false, err
	}
	return true, nil
}
