// Package pricing holds the pure money math: booking price and platform fee.
package pricing

import (
	"consult-platform/internal/models"
)

// DefaultFeeRate is the platform's cut of a withdrawal.
const DefaultFeeRate = 0.10

// ComputePrice returns the total price of a booking in minor units. Free
// bookings always price to zero; paid bookings are rate × duration, both
// integers, so there is no rounding.
func ComputePrice(ratePerMinute, durationMinutes int64, paymentType models.PaymentType) int64 {
	if paymentType == models.PaymentFree {
		return 0
	}
	return ratePerMinute * durationMinutes
}

// CanOfferFree reports whether the account may check out a free booking:
// creators always can, everyone else needs free credits.
func CanOfferFree(acct models.Account) bool {
	return acct.IsCreator || acct.FreeCredits > 0
}

// ApplyPlatformFee splits amount into payout and fee. The fee is
// round-half-up of amount × rate, and payout + fee == amount exactly — the
// remainder is never duplicated or leaked.
func ApplyPlatformFee(amount int64, feeRate float64) (payout, fee int64) {
	if amount <= 0 {
		return 0, 0
	}
	fee = int64(float64(amount)*feeRate + 0.5)
	if fee > amount {
		fee = amount
	}
	return amount - fee, fee
}
