// Package booking owns the consultation lifecycle: creation with pricing and
// settlement, cancellation with credit reversal, and completion.
package booking

import (
	"context"
	"fmt"
	"sort"
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

type CreateRequest struct {
	CreatorID        string
	RequesterID      string
	Date             string // 2006-01-02
	Time             string // 15:04
	DurationMinutes  int64
	ConsultationType models.ConsultationType
	PaymentType      models.PaymentType
	IsGift           bool
}

type Manager struct {
	accounts   *repo.Accounts
	bookings   *repo.Bookings
	ledger     Ledger
	dispatcher *messaging.Dispatcher
	bus        *events.Bus
	now        func() time.Time
}

// Ledger is the slice of the wallet the booking flow needs.
type Ledger interface {
	Credit(ctx context.Context, accountID string, amount int64) error
	Debit(ctx context.Context, accountID string, amount int64) (int64, error)
}

func NewManager(accounts *repo.Accounts, bookings *repo.Bookings, ledger Ledger, dispatcher *messaging.Dispatcher, bus *events.Bus) *Manager {
	return &Manager{
		accounts:   accounts,
		bookings:   bookings,
		ledger:     ledger,
		dispatcher: dispatcher,
		bus:        bus,
		now:        time.Now,
	}
}

// Create validates, prices and persists a booking, then settles it: credit
// the creator (paid bookings), notify both parties exactly once, drop a
// system message into the pair's conversation, and publish the confirmed
// event — strictly in that order. A credit that fails to persist rolls the
// stored booking back and aborts.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (models.Booking, error) {
	if req.RequesterID == req.CreatorID {
		return models.Booking{}, &apperr.PolicyViolation{Reason: "cannot book a consultation with yourself"}
	}
	if !req.ConsultationType.Valid() {
		return models.Booking{}, &apperr.ValidationError{Reason: "unknown consultation type"}
	}
	if !req.PaymentType.Valid() {
		return models.Booking{}, &apperr.ValidationError{Reason: "unknown payment type"}
	}
	if _, err := time.Parse("2006-01-02", req.Date); err != nil {
		return models.Booking{}, &apperr.ValidationError{Reason: "date must be YYYY-MM-DD"}
	}
	if _, err := time.Parse("15:04", req.Time); err != nil {
		return models.Booking{}, &apperr.ValidationError{Reason: "time must be HH:MM"}
	}

	creator, err := m.accounts.Get(ctx, req.CreatorID)
	if err != nil {
		return models.Booking{}, err
	}
	if !creator.IsCreator {
		return models.Booking{}, &apperr.PolicyViolation{Reason: "account does not offer consultations"}
	}
	if creator.MinuteIncrement <= 0 {
		return models.Booking{}, &apperr.ValidationError{Reason: "creator has no valid minute increment"}
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes%creator.MinuteIncrement != 0 {
		return models.Booking{}, &apperr.ValidationError{
			Reason: fmt.Sprintf("duration must be a positive multiple of %d minutes", creator.MinuteIncrement),
		}
	}

	requester, err := m.accounts.Get(ctx, req.RequesterID)
	if err != nil {
		return models.Booking{}, err
	}
	if req.PaymentType == models.PaymentFree && !pricing.CanOfferFree(requester) {
		return models.Booking{}, &apperr.PolicyViolation{Reason: "account is not eligible for free bookings"}
	}

	b := models.Booking{
		ID:               uuid.NewString(),
		CreatorID:        req.CreatorID,
		RequesterID:      req.RequesterID,
		Date:             req.Date,
		Time:             req.Time,
		DurationMinutes:  req.DurationMinutes,
		ConsultationType: req.ConsultationType,
		PaymentType:      req.PaymentType,
		TotalPrice:       pricing.ComputePrice(creator.RatePerMinute, req.DurationMinutes, req.PaymentType),
		Status:           models.BookingScheduled,
		IsGift:           req.IsGift,
		CreatedAt:        m.now(),
	}

	if err := m.bookings.Put(ctx, b); err != nil {
		return models.Booking{}, err
	}

	// Settlement policy: credit on creation, reversed on cancellation.
	if b.PaymentType == models.PaymentPaid && b.TotalPrice > 0 {
		if err := m.ledger.Credit(ctx, b.CreatorID, b.TotalPrice); err != nil {
			if delErr := m.bookings.Delete(ctx, b); delErr != nil {
				logger.Errorf("booking: rollback of %s failed: %v", b.ID, delErr)
			}
			return models.Booking{}, err
		}
	}

	link := "/bookings/" + b.ID
	when := b.Date + " " + b.Time
	m.dispatcher.PublishLifecycleNotification(ctx, b.CreatorID, models.NotifSuccess,
		"Booking confirmed",
		fmt.Sprintf("%s booked a %d-minute %s consultation on %s (%s).",
			requester.DisplayName, b.DurationMinutes, b.ConsultationType, when,
			currency.Format(b.TotalPrice, creator.CurrencyCode)),
		link)
	m.dispatcher.PublishLifecycleNotification(ctx, b.RequesterID, models.NotifSuccess,
		"Booking confirmed",
		fmt.Sprintf("Your %d-minute %s consultation with %s on %s is confirmed.",
			b.DurationMinutes, b.ConsultationType, creator.DisplayName, when),
		link)

	if _, err := m.dispatcher.Send(ctx, b.RequesterID, b.CreatorID,
		fmt.Sprintf("Booked a %s consultation for %s.", b.ConsultationType, when), b.ID); err != nil {
		logger.Warnf("booking: system message for %s not sent: %v", b.ID, err)
	}

	m.bus.Publish(events.BookingConfirmed{
		BookingID:   b.ID,
		CreatorID:   b.CreatorID,
		RequesterID: b.RequesterID,
	})
	return b, nil
}

// Cancel moves a scheduled booking to cancelled. Only a participant may
// cancel. Paid bookings debit the creator's accrued credit back; the debit
// is capped at the current balance (the creator may have withdrawn since),
// with any shortfall logged.
func (m *Manager) Cancel(ctx context.Context, bookingID, actorID string) (models.Booking, error) {
	b, err := m.bookings.Update(ctx, bookingID, func(b *models.Booking) error {
		if b.CreatorID != actorID && b.RequesterID != actorID {
			return &apperr.PolicyViolation{Reason: "only a participant may cancel a booking"}
		}
		if b.Status != models.BookingScheduled {
			return &apperr.InvalidTransition{Entity: "booking", From: string(b.Status), To: string(models.BookingCancelled)}
		}
		b.Status = models.BookingCancelled
		return nil
	})
	if err != nil {
		return models.Booking{}, err
	}

	if b.PaymentType == models.PaymentPaid && b.TotalPrice > 0 {
		taken, err := m.ledger.Debit(ctx, b.CreatorID, b.TotalPrice)
		if err != nil {
			// The debit did not persist; put the booking back so the
			// cancellation can be retried instead of stranding the credit.
			_, rbErr := m.bookings.Update(ctx, bookingID, func(b *models.Booking) error {
				b.Status = models.BookingScheduled
				return nil
			})
			if rbErr != nil {
				logger.Errorf("booking: status restore for %s failed: %v", b.ID, rbErr)
			}
			return models.Booking{}, err
		}
		if taken < b.TotalPrice {
			logger.Warnf("booking: reversal for %s short by %d (already withdrawn)", b.ID, b.TotalPrice-taken)
		}
	}

	link := "/bookings/" + b.ID
	for _, party := range []string{b.CreatorID, b.RequesterID} {
		m.dispatcher.PublishLifecycleNotification(ctx, party, models.NotifWarning,
			"Booking cancelled",
			fmt.Sprintf("The consultation on %s %s was cancelled.", b.Date, b.Time), link)
	}
	m.bus.Publish(events.BookingCancelled{BookingID: b.ID})
	return b, nil
}

// Complete marks a scheduled booking delivered. Creator only. No monetary
// effect — the credit was applied at creation.
func (m *Manager) Complete(ctx context.Context, bookingID, actorID string) (models.Booking, error) {
	return m.bookings.Update(ctx, bookingID, func(b *models.Booking) error {
		if b.CreatorID != actorID {
			return &apperr.PolicyViolation{Reason: "only the creator may complete a booking"}
		}
		if b.Status != models.BookingScheduled {
			return &apperr.InvalidTransition{Entity: "booking", From: string(b.Status), To: string(models.BookingCompleted)}
		}
		b.Status = models.BookingCompleted
		return nil
	})
}

// ListUpcoming returns the participant's scheduled bookings, soonest first
// (date, then time).
func (m *Manager) ListUpcoming(ctx context.Context, accountID string) ([]models.Booking, error) {
	all, err := m.bookings.ListByParticipant(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Booking, 0, len(all))
	for _, b := range all {
		if b.Status == models.BookingScheduled {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

// ListHistory returns the participant's terminal bookings, newest first by
// creation time.
func (m *Manager) ListHistory(ctx context.Context, accountID string) ([]models.Booking, error) {
	all, err := m.bookings.ListByParticipant(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Booking, 0, len(all))
	for _, b := range all {
		if b.Status.Terminal() {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
