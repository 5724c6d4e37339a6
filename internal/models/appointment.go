package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

// Appointment represents one reserved consultation. For a given doctor no two
// SCHEDULED appointments overlap on [StartTime, EndTime).
type Appointment struct {
	BaseModel
	PatientID          string            `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID           string            `gorm:"size:36;not null;index:idx_appointments_doctor_window,priority:1" json:"doctorId"`
	StartTime          time.Time         `gorm:"not null;index:idx_appointments_doctor_window,priority:3" json:"startTime"`
	EndTime            time.Time         `gorm:"not null" json:"endTime"`
	Status             AppointmentStatus `gorm:"size:20;default:'SCHEDULED';index:idx_appointments_doctor_window,priority:2" json:"status"`
	PatientDescription *string           `gorm:"type:text" json:"patientDescription,omitempty"`
	VideoSessionID     *string           `gorm:"size:255" json:"videoSessionId,omitempty"`
	PatientVideoToken  *string           `gorm:"type:text" json:"-"`
	DoctorVideoToken   *string           `gorm:"type:text" json:"-"`

	// Relations
	Patient *User `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Doctor  *User `gorm:"foreignKey:DoctorID" json:"doctor,omitempty"`
}

// HasVideoSession reports whether a provider session was provisioned.
func (a *Appointment) HasVideoSession() bool {
	return a.VideoSessionID != nil && *a.VideoSessionID != ""
}

// IsParticipant reports whether userID is the doctor or the patient.
func (a *Appointment) IsParticipant(userID string) bool {
	return userID != "" && (a.DoctorID == userID || a.PatientID == userID)
}

// VideoTokenFor returns the join token last issued to the participant, or nil.
func (a *Appointment) VideoTokenFor(userID string) *string {
	var token *string
	switch userID {
	case "":
		return nil
	case a.PatientID:
		token = a.PatientVideoToken
	case a.DoctorID:
		token = a.DoctorVideoToken
	}
	if token == nil || *token == "" {
		return nil
	}
	return token
}

// WithoutParticipants returns a copy with the Patient and Doctor relations
// cleared, for responses that must not expose the other participant.
func (a *Appointment) WithoutParticipants() *Appointment {
	out := *a
	out.Patient = nil
	out.Doctor = nil
	return &out
}
