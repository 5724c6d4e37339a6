package models

import "github.com/shopspring/decimal"

const (
	// BookingCost is what one consultation costs the patient, in credits.
	BookingCost int64 = 2

	PlatformFeePerCredit    int64 = 2
	DoctorEarningsPerCredit int64 = 8
	CreditValue                   = PlatformFeePerCredit + DoctorEarningsPerCredit
)

// NewPayout prices a PROCESSING payout for the given number of credits.
func NewPayout(doctorID, destination string, credits int64) *Payout {
	return &Payout{
		DoctorID:    doctorID,
		Amount:      decimal.NewFromInt(credits * CreditValue),
		Credits:     credits,
		PlatformFee: decimal.NewFromInt(credits * PlatformFeePerCredit),
		NetAmount:   decimal.NewFromInt(credits * DoctorEarningsPerCredit),
		PaypalEmail: destination,
		Status:      PayoutProcessing,
	}
}

// DoctorEarnings converts credits into the doctor's share.
func DoctorEarnings(credits int64) decimal.Decimal {
	return decimal.NewFromInt(credits * DoctorEarningsPerCredit)
}
