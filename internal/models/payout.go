package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayoutStatus tracks a payout request through admin processing.
type PayoutStatus string

const (
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutProcessed  PayoutStatus = "PROCESSED"
	PayoutRejected   PayoutStatus = "REJECTED"
)

// Payout is a doctor's request to convert credits into money. At most one
// PROCESSING payout exists per doctor.
type Payout struct {
	BaseModel
	DoctorID    string          `gorm:"size:36;not null;index" json:"doctorId"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Credits     int64           `gorm:"not null" json:"credits"`
	PlatformFee decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"platformFee"`
	NetAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"netAmount"`
	PaypalEmail string          `gorm:"size:255;not null" json:"paypalEmail"`
	Status      PayoutStatus    `gorm:"size:20;default:'PROCESSING';index" json:"status"`
	ProcessedAt *time.Time      `json:"processedAt,omitempty"`
	ProcessedBy *string         `gorm:"size:36" json:"processedBy,omitempty"`
}
