// Package repository persists users, availability windows, appointments,
// ledger rows and payouts. Operations that must be atomic (booking, credit
// transfer, payout request) are single methods so each implementation can
// run them inside one transaction.
package repository

import (
	"context"
	"time"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/models"
)

// Repository is the storage boundary used by the services.
type Repository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	ListVerifiedDoctors(ctx context.Context, specialty string) ([]models.User, error)

	// SetAvailability deactivates the doctor's current windows and stores
	// the new one as the single AVAILABLE window.
	SetAvailability(ctx context.Context, doctorID string, start, end time.Time) (*models.Availability, error)
	ActiveAvailability(ctx context.Context, doctorID string) (*models.Availability, error)

	ScheduledAppointments(ctx context.Context, doctorID string, from, to time.Time) ([]models.Appointment, error)
	HasOverlap(ctx context.Context, doctorID string, start, end time.Time) (bool, error)
	// BookAppointment re-checks overlap, moves cost credits from patient to
	// doctor and inserts appt, all or nothing.
	BookAppointment(ctx context.Context, appt *models.Appointment, cost int64) error
	FindAppointment(ctx context.Context, id string) (*models.Appointment, error)
	ListAppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error)
	// SetVideoSession stores sessionID only when the appointment has none and
	// reports whether it did.
	SetVideoSession(ctx context.Context, appointmentID, sessionID string) (bool, error)
	SaveVideoToken(ctx context.Context, appointmentID, participantID, token string) error

	Transfer(ctx context.Context, t TransferRequest) error
	ListTransactions(ctx context.Context, userID string) ([]models.CreditTransaction, error)
	SumEarnedCredits(ctx context.Context, userID string) (int64, error)

	// RequestPayout creates a PROCESSING payout for the doctor's whole
	// balance and reserves those credits.
	RequestPayout(ctx context.Context, doctorID, destination string) (*models.Payout, error)
	ListPayouts(ctx context.Context, doctorID string) ([]models.Payout, error)
	SumPayoutCredits(ctx context.Context, doctorID string) (int64, error)
}

// TransferRequest moves Amount credits between two users.
type TransferRequest struct {
	FromUserID    string
	ToUserID      string
	Amount        int64
	Type          models.TransactionType
	AppointmentID *string
}

func validateTransfer(t TransferRequest) error {
	if t.Amount <= 0 {
		return apperr.New(apperr.KindValidation, "transfer amount must be positive")
	}
	if t.FromUserID == "" || t.ToUserID == "" {
		return apperr.New(apperr.KindValidation, "transfer requires both parties")
	}
	if t.FromUserID == t.ToUserID {
		return apperr.New(apperr.KindValidation, "cannot transfer credits to the same user")
	}
	return nil
}

func notFound(what string) error {
	return apperr.Newf(apperr.KindNotFound, "%s not found", what)
}

func insufficientCredits(balance, amount int64) error {
	return apperr.Newf(apperr.KindInsufficientCredits,
		"insufficient credits: balance %d, required %d", balance, amount)
}
