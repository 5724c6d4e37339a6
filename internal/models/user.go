package models

import (
	"time"
)

// Role enum
type Role string

const (
	RoleUnassigned Role = "UNASSIGNED"
	RolePatient    Role = "PATIENT"
	RoleDoctor     Role = "DOCTOR"
	RoleAdmin      Role = "ADMIN"
)

// VerificationStatus tracks admin review of a doctor's credentials.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// User represents a user in the system. ExternalID is the subject issued by
// the identity provider; Credits is never negative.
type User struct {
	BaseModel
	ExternalID         string             `gorm:"uniqueIndex;size:255;not null" json:"-"`
	Email              string             `gorm:"size:255" json:"email"`
	Name               string             `gorm:"size:255" json:"name"`
	ImageURL           string             `gorm:"size:512" json:"imageUrl,omitempty"`
	Role               Role               `gorm:"size:20;default:'UNASSIGNED';index" json:"role"`
	Specialty          string             `gorm:"size:100" json:"specialty,omitempty"`
	Experience         int                `json:"experience,omitempty"`
	Description        string             `gorm:"type:text" json:"description,omitempty"`
	VerificationStatus VerificationStatus `gorm:"size:20;default:'PENDING'" json:"verificationStatus"`
	Credits            int64              `gorm:"not null;default:0" json:"credits"`

	// Relations (not always preloaded)
	Availabilities      []Availability      `gorm:"foreignKey:DoctorID" json:"-"`
	DoctorAppointments  []Appointment       `gorm:"foreignKey:DoctorID" json:"-"`
	PatientAppointments []Appointment       `gorm:"foreignKey:PatientID" json:"-"`
	Transactions        []CreditTransaction `gorm:"foreignKey:UserID" json:"-"`
	Payouts             []Payout            `gorm:"foreignKey:DoctorID" json:"-"`
}

// IsBookableDoctor reports whether patients may book this user.
func (u *User) IsBookableDoctor() bool {
	return u.Role == RoleDoctor && u.VerificationStatus == VerificationVerified
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Email              string             `json:"email"`
	ImageURL           string             `json:"imageUrl,omitempty"`
	Role               Role               `json:"role"`
	Specialty          string             `json:"specialty,omitempty"`
	Experience         int                `json:"experience,omitempty"`
	Description        string             `json:"description,omitempty"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// Sanitize creates a UserSanitized struct from a User model, excluding
// identity and balance data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		ImageURL:           u.ImageURL,
		Role:               u.Role,
		Specialty:          u.Specialty,
		Experience:         u.Experience,
		Description:        u.Description,
		VerificationStatus: u.VerificationStatus,
		CreatedAt:          u.CreatedAt,
	}
}
