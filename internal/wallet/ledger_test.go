package wallet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"consult-platform/internal/apperr"
	"consult-platform/internal/events"
	"consult-platform/internal/messaging"
	"consult-platform/internal/models"
	"consult-platform/internal/repo"
	"consult-platform/internal/store"
)

type fixture struct {
	ledger      *Ledger
	accounts    *repo.Accounts
	withdrawals *repo.Withdrawals
	dispatcher  *messaging.Dispatcher
	bus         *events.Bus
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	kv := store.NewMemory(0)
	accounts := repo.NewAccounts(kv)
	withdrawals := repo.NewWithdrawals(kv)
	bus := events.NewBus()
	dispatcher := messaging.NewDispatcher(repo.NewMessages(kv), repo.NewNotifications(kv), bus)
	l := NewLedger(accounts, withdrawals, dispatcher, bus, cfg)
	t.Cleanup(l.Stop)
	return &fixture{ledger: l, accounts: accounts, withdrawals: withdrawals, dispatcher: dispatcher, bus: bus}
}

func (f *fixture) seedCreator(t *testing.T, id string, balance int64) {
	t.Helper()
	err := f.accounts.Create(context.Background(), models.Account{
		ID:           id,
		Email:        id + "@example.com",
		DisplayName:  "Creator " + id,
		IsCreator:    true,
		Balance:      balance,
		CurrencyCode: "IDR",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func TestCreditRejectsNegative(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 0)

	err := f.ledger.Credit(context.Background(), "c1", -1)
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("Credit(-1) = %v, want ValidationError", err)
	}

	acct, _ := f.accounts.Get(context.Background(), "c1")
	if acct.Balance != 0 {
		t.Errorf("balance mutated to %d", acct.Balance)
	}
}

func TestCreditAccrues(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 0)
	ctx := context.Background()

	for _, amount := range []int64{100000, 0, 25000} {
		if err := f.ledger.Credit(ctx, "c1", amount); err != nil {
			t.Fatalf("Credit(%d): %v", amount, err)
		}
	}

	acct, _ := f.accounts.Get(ctx, "c1")
	if acct.Balance != 125000 {
		t.Errorf("balance = %d, want 125000", acct.Balance)
	}
}

func TestInitiateWithdrawalHappyPath(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 100000)
	ctx := context.Background()

	w, err := f.ledger.InitiateWithdrawal(ctx, "c1")
	if err != nil {
		t.Fatalf("InitiateWithdrawal: %v", err)
	}

	if w.Fee != 10000 || w.Amount != 90000 {
		t.Errorf("split = (%d, %d), want (90000, 10000)", w.Amount, w.Fee)
	}
	if w.Status != models.WithdrawalPending {
		t.Errorf("status = %s, want pending", w.Status)
	}

	acct, _ := f.accounts.Get(ctx, "c1")
	if acct.Balance != 0 {
		t.Errorf("balance = %d, want 0", acct.Balance)
	}
	if acct.TotalWithdrawn != 90000 {
		t.Errorf("total withdrawn = %d, want 90000", acct.TotalWithdrawn)
	}

	list, err := f.ledger.ListWithdrawals(ctx, "c1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListWithdrawals = %d records, %v", len(list), err)
	}
	if list[0].Amount+list[0].Fee != 100000 {
		t.Errorf("amount + fee = %d, want the 100000 snapshot", list[0].Amount+list[0].Fee)
	}
}

func TestInitiateWithdrawalBelowMinimum(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 40000)
	ctx := context.Background()

	_, err := f.ledger.InitiateWithdrawal(ctx, "c1")
	var insufficient *apperr.InsufficientBalance
	if !errors.As(err, &insufficient) {
		t.Fatalf("got %v, want InsufficientBalance", err)
	}

	// No mutation of any kind.
	acct, _ := f.accounts.Get(ctx, "c1")
	if acct.Balance != 40000 || acct.TotalWithdrawn != 0 {
		t.Errorf("account mutated: balance %d, withdrawn %d", acct.Balance, acct.TotalWithdrawn)
	}
	list, _ := f.ledger.ListWithdrawals(ctx, "c1")
	if len(list) != 0 {
		t.Errorf("withdrawal record created on failure")
	}
}

func TestConcurrentWithdrawalsExactlyOneSucceeds(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 100000)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.InitiateWithdrawal(ctx, "c1")
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		var ib *apperr.InsufficientBalance
		switch {
		case err == nil:
			ok++
		case errors.As(err, &ib):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("got %d successes and %d InsufficientBalance, want 1 and 1", ok, insufficient)
	}

	acct, _ := f.accounts.Get(ctx, "c1")
	if acct.Balance != 0 {
		t.Errorf("balance = %d, want 0", acct.Balance)
	}
	list, _ := f.ledger.ListWithdrawals(ctx, "c1")
	if len(list) != 1 {
		t.Errorf("%d withdrawal records, want 1", len(list))
	}
}

func TestWithdrawalProgressesOnSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProcessingAfter = 10 * time.Millisecond
	cfg.CompletedAfter = 25 * time.Millisecond
	f := newFixture(t, cfg)
	f.seedCreator(t, "c1", 100000)
	ctx := context.Background()

	w, err := f.ledger.InitiateWithdrawal(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := f.withdrawals.Get(ctx, "c1", w.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == models.WithdrawalCompleted {
			if !got.UpdatedAt.After(got.CreatedAt) {
				t.Errorf("UpdatedAt not bumped")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stuck at %s", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAdvanceIsIdempotentOnTerminalState(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 100000)
	ctx := context.Background()

	w, err := f.ledger.InitiateWithdrawal(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}

	var statusEvents int
	f.bus.Subscribe(func(ev events.Event) {
		if _, ok := ev.(events.WithdrawalStatusChanged); ok {
			statusEvents++
		}
	})

	// Drive the machine by hand: pending → processing → completed.
	for i := 0; i < 2; i++ {
		if err := f.ledger.advance(ctx, "c1", w.ID); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := f.withdrawals.Get(ctx, "c1", w.ID)
	if got.Status != models.WithdrawalCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}

	// A late timer firing must not regress or re-notify.
	eventsBefore := statusEvents
	for i := 0; i < 3; i++ {
		if err := f.ledger.advance(ctx, "c1", w.ID); err != nil {
			t.Fatal(err)
		}
	}
	got, _ = f.withdrawals.Get(ctx, "c1", w.ID)
	if got.Status != models.WithdrawalCompleted {
		t.Errorf("status regressed to %s", got.Status)
	}
	if statusEvents != eventsBefore {
		t.Errorf("terminal state re-published %d events", statusEvents-eventsBefore)
	}
}

func TestFailRestoresBalance(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 100000)
	ctx := context.Background()

	w, err := f.ledger.InitiateWithdrawal(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}

	if err := f.ledger.Fail(ctx, "c1", w.ID, "payout channel rejected"); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	got, _ := f.withdrawals.Get(ctx, "c1", w.ID)
	if got.Status != models.WithdrawalFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.FailureReason == "" {
		t.Errorf("failure reason missing")
	}

	acct, _ := f.accounts.Get(ctx, "c1")
	if acct.Balance != 100000 {
		t.Errorf("balance = %d, want the full 100000 restored", acct.Balance)
	}

	// Terminal: failing again is rejected.
	err = f.ledger.Fail(ctx, "c1", w.ID, "again")
	var transition *apperr.InvalidTransition
	if !errors.As(err, &transition) {
		t.Fatalf("second Fail = %v, want InvalidTransition", err)
	}
}

// A restart must pick in-flight withdrawals back up from the store: a fresh
// ledger over the same data re-arms the timers and drives the record to
// completed.
func TestRescanResumesProgression(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 100000)
	ctx := context.Background()

	w, err := f.ledger.InitiateWithdrawal(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	// Simulate the process dying before the day-scale timers fire.
	f.ledger.Stop()

	got, _ := f.withdrawals.Get(ctx, "c1", w.ID)
	if got.Status != models.WithdrawalPending {
		t.Fatalf("status before restart = %s, want pending", got.Status)
	}

	cfg := DefaultConfig()
	cfg.ProcessingAfter = 5 * time.Millisecond
	cfg.CompletedAfter = 10 * time.Millisecond
	restarted := NewLedger(f.accounts, f.withdrawals, f.dispatcher, f.bus, cfg)
	t.Cleanup(restarted.Stop)

	ids, err := f.accounts.ListIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	restarted.Rescan(ctx, ids)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := f.withdrawals.Get(ctx, "c1", w.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status == models.WithdrawalCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stuck at %s after rescan", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestListWithdrawalsNewestFirst(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.seedCreator(t, "c1", 100000)
	ctx := context.Background()

	base := time.Now()
	times := []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)}
	for i, ts := range times {
		f.ledger.now = func() time.Time { return ts }
		if err := f.ledger.Credit(ctx, "c1", 100000); err != nil {
			t.Fatal(err)
		}
		if _, err := f.ledger.InitiateWithdrawal(ctx, "c1"); err != nil {
			t.Fatalf("withdrawal %d: %v", i, err)
		}
	}

	list, err := f.ledger.ListWithdrawals(ctx, "c1")
	if err != nil || len(list) != 3 {
		t.Fatalf("ListWithdrawals = %d, %v", len(list), err)
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Errorf("list not newest first at %d", i)
		}
	}
}
