package models

// TransactionType is the cause of a credit balance change.
type TransactionType string

const (
	TxCreditPurchase       TransactionType = "CREDIT_PURCHASE"
	TxAppointmentDeduction TransactionType = "APPOINTMENT_DEDUCTION"
	TxPayoutReservation    TransactionType = "PAYOUT_RESERVATION"
	TxAdminAdjustment      TransactionType = "ADMIN_ADJUSTMENT"
)

// CreditTransaction is an append-only ledger row. Amount is signed: debits
// are negative, credits positive. Rows are never updated or deleted.
type CreditTransaction struct {
	BaseModel
	UserID        string          `gorm:"size:36;not null;index" json:"userId"`
	Amount        int64           `gorm:"not null" json:"amount"`
	Type          TransactionType `gorm:"size:40;not null" json:"type"`
	AppointmentID *string         `gorm:"size:36;index" json:"appointmentId,omitempty"`
}
