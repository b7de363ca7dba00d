// Package wallet is the creator balance ledger: credit accrual, withdrawal
// initiation and the timed withdrawal status machine.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"consult-platform/internal/apperr"
	"consult-platform/internal/currency"
	"consult-platform/internal/events"
	"consult-platform/internal/messaging"
	"consult-platform/internal/models"
	"consult-platform/internal/pricing"
	"consult-platform/internal/repo"
	"consult-platform/pkg/logger"
)

type Config struct {
	FeeRate           float64
	MinimumWithdrawal int64
	// ProcessingAfter is how long a withdrawal sits pending before it moves
	// to processing; CompletedAfter is measured from creation and doubles as
	// the estimated completion SLA.
	ProcessingAfter time.Duration
	CompletedAfter  time.Duration
}

func DefaultConfig() Config {
	return Config{
		FeeRate:           pricing.DefaultFeeRate,
		MinimumWithdrawal: 50_000,
		ProcessingAfter:   24 * time.Hour,
		CompletedAfter:    48 * time.Hour,
	}
}

type Ledger struct {
	accounts    *repo.Accounts
	withdrawals *repo.Withdrawals
	dispatcher  *messaging.Dispatcher
	bus         *events.Bus
	sched       *Scheduler
	cfg         Config
	now         func() time.Time
}

func NewLedger(accounts *repo.Accounts, withdrawals *repo.Withdrawals, dispatcher *messaging.Dispatcher, bus *events.Bus, cfg Config) *Ledger {
	return &Ledger{
		accounts:    accounts,
		withdrawals: withdrawals,
		dispatcher:  dispatcher,
		bus:         bus,
		sched:       NewScheduler(),
		cfg:         cfg,
		now:         time.Now,
	}
}

// Stop cancels pending progression timers. State stays in the store; a
// Rescan on next start picks it back up.
func (l *Ledger) Stop() {
	l.sched.Stop()
}

// Credit adds amount to the account's balance. Persistence failure here is
// fatal to the caller's operation, never downgraded.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount int64) error {
	if amount < 0 {
		return &apperr.ValidationError{Reason: "credit amount must be non-negative"}
	}
	if amount == 0 {
		return nil
	}
	_, err := l.accounts.Update(ctx, accountID, func(a *models.Account) error {
		a.Balance += amount
		return nil
	})
	return err
}

// Debit removes up to amount from the balance and returns what was actually
// taken. Supports booking-cancellation reversal, where the creator may have
// already withdrawn part of the accrued credit; the balance is floored at
// zero rather than driven negative.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, &apperr.ValidationError{Reason: "debit amount must be non-negative"}
	}
	var taken int64
	_, err := l.accounts.Update(ctx, accountID, func(a *models.Account) error {
		taken = amount
		if taken > a.Balance {
			taken = a.Balance
		}
		a.Balance -= taken
		return nil
	})
	if err != nil {
		return 0, err
	}
	return taken, nil
}

// InitiateWithdrawal snapshots the full balance, splits off the platform fee
// and creates a pending withdrawal. The withdrawal record is written before
// the account is zeroed, both under the account lock, so a crash in between
// can leave an extra record but never a zeroed balance without one; if the
// account write fails the record is removed and the error propagates.
func (l *Ledger) InitiateWithdrawal(ctx context.Context, accountID string) (models.Withdrawal, error) {
	var w models.Withdrawal

	_, err := l.accounts.Update(ctx, accountID, func(a *models.Account) error {
		if a.Balance < l.cfg.MinimumWithdrawal {
			return &apperr.InsufficientBalance{Balance: a.Balance, Minimum: l.cfg.MinimumWithdrawal}
		}

		payout, fee := pricing.ApplyPlatformFee(a.Balance, l.cfg.FeeRate)
		now := l.now()
		w = models.Withdrawal{
			ID:                  uuid.NewString(),
			CreatorID:           accountID,
			Amount:              payout,
			Fee:                 fee,
			Status:              models.WithdrawalPending,
			CreatedAt:           now,
			UpdatedAt:           now,
			EstimatedCompletion: now.Add(l.cfg.CompletedAfter),
		}
		if err := l.withdrawals.Append(ctx, w); err != nil {
			return err
		}

		a.Balance = 0
		a.TotalWithdrawn += payout
		return nil
	})
	if err != nil {
		if w.ID != "" {
			// Record went in but the account write failed; take it back out.
			if rbErr := l.withdrawals.Remove(ctx, accountID, w.ID); rbErr != nil {
				logger.Errorf("wallet: rollback of withdrawal %s failed: %v", w.ID, rbErr)
			}
		}
		return models.Withdrawal{}, err
	}

	acct, acctErr := l.accounts.Get(ctx, accountID)
	code := "IDR"
	if acctErr == nil {
		code = acct.CurrencyCode
	}
	l.dispatcher.PublishLifecycleNotification(ctx, accountID, models.NotifInfo,
		"Withdrawal requested",
		fmt.Sprintf("Paying out %s after a %s platform fee.",
			currency.Format(w.Amount, code), currency.Format(w.Fee, code)),
		"/wallet/withdrawals/"+w.ID)
	l.bus.Publish(events.WithdrawalStatusChanged{WithdrawalID: w.ID, Status: w.Status})

	l.scheduleProgression(w)
	return w, nil
}

// ListWithdrawals returns the account's withdrawal history, newest first.
func (l *Ledger) ListWithdrawals(ctx context.Context, accountID string) ([]models.Withdrawal, error) {
	return l.withdrawals.List(ctx, accountID)
}

// Rescan re-arms progression timers for every non-terminal withdrawal of the
// given accounts. Called on startup so progression survives a restart when
// the store backend is durable.
func (l *Ledger) Rescan(ctx context.Context, accountIDs []string) {
	for _, id := range accountIDs {
		list, err := l.withdrawals.List(ctx, id)
		if err != nil {
			logger.Warnf("wallet: rescan of %s failed: %v", id, err)
			continue
		}
		for _, w := range list {
			if !w.Status.Terminal() {
				l.scheduleProgression(w)
			}
		}
	}
}

func (l *Ledger) scheduleProgression(w models.Withdrawal) {
	var at time.Time
	switch w.Status {
	case models.WithdrawalPending:
		at = w.CreatedAt.Add(l.cfg.ProcessingAfter)
	case models.WithdrawalProcessing:
		at = w.CreatedAt.Add(l.cfg.CompletedAfter)
	default:
		return
	}

	creatorID := w.CreatorID
	l.sched.ScheduleAt(at, w.ID, func(id string) {
		if err := l.advance(context.Background(), creatorID, id); err != nil {
			logger.Errorf("wallet: progression of withdrawal %s failed: %v", id, err)
		}
	})
}

// advance moves a withdrawal one step along pending → processing →
// completed. Idempotent: a terminal record ignores the firing entirely.
func (l *Ledger) advance(ctx context.Context, creatorID, withdrawalID string) error {
	var skipped bool
	w, err := l.withdrawals.Update(ctx, creatorID, withdrawalID, func(w *models.Withdrawal) error {
		switch w.Status {
		case models.WithdrawalPending:
			w.Status = models.WithdrawalProcessing
		case models.WithdrawalProcessing:
			w.Status = models.WithdrawalCompleted
		default:
			skipped = true
			return nil
		}
		w.UpdatedAt = l.now()
		return nil
	})
	if err != nil || skipped {
		return err
	}

	l.notifyStatus(ctx, w)
	if !w.Status.Terminal() {
		l.scheduleProgression(w)
	}
	return nil
}

// Fail marks a withdrawal failed from any non-terminal state and restores
// amount + fee to the account, reversing the snapshot taken at initiation.
func (l *Ledger) Fail(ctx context.Context, creatorID, withdrawalID, reason string) error {
	var restore int64
	w, err := l.withdrawals.Update(ctx, creatorID, withdrawalID, func(w *models.Withdrawal) error {
		if w.Status.Terminal() {
			return &apperr.InvalidTransition{Entity: "withdrawal", From: string(w.Status), To: string(models.WithdrawalFailed)}
		}
		w.Status = models.WithdrawalFailed
		w.FailureReason = reason
		w.UpdatedAt = l.now()
		restore = w.Amount + w.Fee
		return nil
	})
	if err != nil {
		return err
	}

	l.sched.Cancel(withdrawalID)

	// TotalWithdrawn stays where it is: it is monotonically non-decreasing
	// by contract, and the restored balance can be withdrawn again.
	_, err = l.accounts.Update(ctx, creatorID, func(a *models.Account) error {
		a.Balance += restore
		return nil
	})
	if err != nil {
		return err
	}

	l.notifyStatus(ctx, w)
	return nil
}

func (l *Ledger) notifyStatus(ctx context.Context, w models.Withdrawal) {
	kind := models.NotifInfo
	msg := "Your withdrawal is now " + string(w.Status) + "."
	switch w.Status {
	case models.WithdrawalCompleted:
		kind = models.NotifSuccess
		msg = "Your withdrawal has been paid out."
	case models.WithdrawalFailed:
		kind = models.NotifError
		msg = "Your withdrawal failed: " + w.FailureReason + ". The amount was returned to your balance."
	}
	l.dispatcher.PublishLifecycleNotification(ctx, w.CreatorID, kind,
		"Withdrawal "+string(w.Status), msg, "/wallet/withdrawals/"+w.ID)
	l.bus.Publish(events.WithdrawalStatusChanged{WithdrawalID: w.ID, Status: w.Status})
}
