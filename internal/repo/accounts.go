package repo

import (
	"context"
	"errors"
	"strings"

	"consult-platform/internal/apperr"
	"consult-platform/internal/models"
	"consult-platform/internal/store"
)

var ErrAccountNotFound = errors.New("account not found")
var ErrEmailTaken = errors.New("email already registered")

type Accounts struct {
	store store.Store
	locks *keyLocks
}

func NewAccounts(s store.Store) *Accounts {
	return &Accounts{store: s, locks: newKeyLocks()}
}

func (r *Accounts) Create(ctx context.Context, acct models.Account) error {
	emailKey := keyAccountEmail + strings.ToLower(acct.Email)

	unlock := r.locks.Lock(emailKey)
	defer unlock()

	var existing string
	found, err := getJSON(ctx, r.store, emailKey, &existing)
	if err != nil {
		return err
	}
	if found {
		return ErrEmailTaken
	}
	if err := setJSON(ctx, r.store, keyAccount+acct.ID, acct); err != nil {
		return err
	}
	if err := setJSON(ctx, r.store, emailKey, acct.ID); err != nil {
		return err
	}
	return r.addToRegistry(ctx, acct.ID)
}

// The registry lists every account id; the KV contract has no scan, and the
// wallet needs the full set to re-arm withdrawal timers after a restart.
func (r *Accounts) addToRegistry(ctx context.Context, id string) error {
	unlock := r.locks.Lock(keyAccountIndex)
	defer unlock()

	var ids []string
	if _, err := getJSON(ctx, r.store, keyAccountIndex, &ids); err != nil {
		return err
	}
	ids = append(ids, id)
	return setJSON(ctx, r.store, keyAccountIndex, ids)
}

// ListIDs returns every registered account id.
func (r *Accounts) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if _, err := getJSON(ctx, r.store, keyAccountIndex, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Accounts) Get(ctx context.Context, id string) (models.Account, error) {
	var acct models.Account
	found, err := getJSON(ctx, r.store, keyAccount+id, &acct)
	if err != nil {
		return models.Account{}, err
	}
	if !found {
		return models.Account{}, ErrAccountNotFound
	}
	return acct, nil
}

func (r *Accounts) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	var id string
	found, err := getJSON(ctx, r.store, keyAccountEmail+strings.ToLower(email), &id)
	if err != nil {
		return models.Account{}, err
	}
	if !found {
		return models.Account{}, ErrAccountNotFound
	}
	return r.Get(ctx, id)
}

// Update is the transactional read-modify-write for an account. fn runs under
// the per-account lock against the freshly read record; returning an error
// aborts without writing. fn may perform dependent store writes (e.g. append
// a withdrawal record) knowing no other mutator holds the account.
func (r *Accounts) Update(ctx context.Context, id string, fn func(*models.Account) error) (models.Account, error) {
	unlock := r.locks.Lock(keyAccount + id)
	defer unlock()

	acct, err := r.Get(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	if err := fn(&acct); err != nil {
		return models.Account{}, err
	}
	if acct.Balance < 0 {
		// Never persisted; every mutation path guards this already.
		return models.Account{}, &apperr.ValidationError{Reason: "balance would go negative"}
	}
	if err := setJSON(ctx, r.store, keyAccount+id, acct); err != nil {
		return models.Account{}, err
	}
	return acct, nil
}
