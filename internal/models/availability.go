package models

import "time"

// AvailabilityStatus marks whether a window is used for slot generation.
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "AVAILABLE"
	AvailabilityInactive  AvailabilityStatus = "INACTIVE"
)

// Availability is a doctor's recurring daily window. Only the clock part of
// StartTime and EndTime is meaningful; the date is ignored.
type Availability struct {
	BaseModel
	DoctorID  string             `gorm:"size:36;not null;index" json:"doctorId"`
	StartTime time.Time          `gorm:"not null" json:"startTime"`
	EndTime   time.Time          `gorm:"not null" json:"endTime"`
	Status    AvailabilityStatus `gorm:"size:20;default:'AVAILABLE';index" json:"status"`

	Doctor *User `gorm:"foreignKey:DoctorID" json:"-"`
}
