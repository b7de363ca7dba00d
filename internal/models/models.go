package models

import "time"

// All monetary amounts are integers in the account's minor currency unit
// (cents, rupiah, ...). Nothing in the core does float math on money.

type ConsultationType string

const (
	ConsultationVideo ConsultationType = "video"
	ConsultationAudio ConsultationType = "audio"
	ConsultationChat  ConsultationType = "chat"
)

func (t ConsultationType) Valid() bool {
	switch t {
	case ConsultationVideo, ConsultationAudio, ConsultationChat:
		return true
	}
	return false
}

type PaymentType string

const (
	PaymentPaid PaymentType = "paid"
	PaymentFree PaymentType = "free"
)

func (t PaymentType) Valid() bool {
	return t == PaymentPaid || t == PaymentFree
}

type BookingStatus string

const (
	BookingScheduled BookingStatus = "scheduled"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
)

func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalCompleted || s == WithdrawalFailed
}

type NotificationKind string

const (
	NotifInfo    NotificationKind = "info"
	NotifSuccess NotificationKind = "success"
	NotifWarning NotificationKind = "warning"
	NotifError   NotificationKind = "error"
)

// Account represents a user who may also be a creator.
// Balance is mutated only by the wallet ledger.
type Account struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	DisplayName     string    `json:"display_name"`
	IsCreator       bool      `json:"is_creator"`
	RatePerMinute   int64     `json:"rate_per_minute"`
	MinuteIncrement int64     `json:"minute_increment"`
	FreeCredits     int64     `json:"free_credits"`
	Balance         int64     `json:"balance"`
	TotalWithdrawn  int64     `json:"total_withdrawn"`
	CurrencyCode    string    `json:"currency_code"`
	CreatedAt       time.Time `json:"created_at"`
}

// Booking is a scheduled consultation between a requester and a creator.
// TotalPrice is fixed at creation and never recomputed, even if the
// creator's rate changes later.
type Booking struct {
	ID               string           `json:"id"`
	CreatorID        string           `json:"creator_id"`
	RequesterID      string           `json:"requester_id"`
	Date             string           `json:"date"` // 2006-01-02
	Time             string           `json:"time"` // 15:04
	DurationMinutes  int64            `json:"duration_minutes"`
	ConsultationType ConsultationType `json:"consultation_type"`
	PaymentType      PaymentType      `json:"payment_type"`
	TotalPrice       int64            `json:"total_price"`
	Status           BookingStatus    `json:"status"`
	IsGift           bool             `json:"is_gift"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Withdrawal is a creator's cash-out request. Amount is the post-fee payout;
// Amount + Fee equals the balance snapshot taken at request time.
type Withdrawal struct {
	ID                  string           `json:"id"`
	CreatorID           string           `json:"creator_id"`
	Amount              int64            `json:"amount"`
	Fee                 int64            `json:"fee"`
	Status              WithdrawalStatus `json:"status"`
	FailureReason       string           `json:"failure_reason,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	EstimatedCompletion time.Time        `json:"estimated_completion"`
}

// Message is a direct message, optionally tied to a booking.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	IsRead     bool      `json:"is_read"`
	Timestamp  time.Time `json:"timestamp"`
	BookingID  string    `json:"booking_id,omitempty"`
}

// Conversation is derived from the message set, never stored.
type Conversation struct {
	Key         string  `json:"key"`
	PartnerID   string  `json:"partner_id"`
	LastMessage Message `json:"last_message"`
	UnreadCount int     `json:"unread_count"`
}

// Notification is a fire-once record of a lifecycle change. Immutable except
// for IsRead.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	IsRead    bool             `json:"is_read"`
	Timestamp time.Time        `json:"timestamp"`
	Link      string           `json:"link,omitempty"`
}
