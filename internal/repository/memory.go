package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/models"
	"telehealth-server/internal/scheduling"
)

// MemoryRepository keeps everything in process. A single mutex serialises
// writers, which gives every multi-step method the same all-or-nothing
// behaviour as a database transaction. Used for local development and tests.
type MemoryRepository struct {
	mu             sync.RWMutex
	users          map[string]*models.User
	availabilities []models.Availability
	appointments   map[string]*models.Appointment
	transactions   []models.CreditTransaction
	payouts        []models.Payout
	now            func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[string]*models.User),
		appointments: make(map[string]*models.Appointment),
		now:          time.Now,
	}
}

func (r *MemoryRepository) stamp(base *models.BaseModel) {
	now := r.now()
	if base.ID == "" {
		base.ID = uuid.NewString()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

func (r *MemoryRepository) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Credits < 0 {
		return apperr.New(apperr.KindValidation, "credits cannot be negative")
	}
	for _, u := range r.users {
		if u.ExternalID == user.ExternalID {
			return apperr.Newf(apperr.KindValidation, "user with external id %q already exists", user.ExternalID)
		}
	}
	if user.Role == "" {
		user.Role = models.RoleUnassigned
	}
	if user.VerificationStatus == "" {
		user.VerificationStatus = models.VerificationPending
	}
	r.stamp(&user.BaseModel)
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, notFound("user")
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) FindUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ExternalID == externalID {
			out := *u
			return &out, nil
		}
	}
	return nil, notFound("user")
}

func (r *MemoryRepository) ListVerifiedDoctors(_ context.Context, specialty string) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctors := []models.User{}
	for _, u := range r.users {
		if !u.IsBookableDoctor() {
			continue
		}
		if specialty != "" && !strings.EqualFold(u.Specialty, specialty) {
			continue
		}
		doctors = append(doctors, *u)
	}
	sort.Slice(doctors, func(i, j int) bool { return doctors[i].Name < doctors[j].Name })
	return doctors, nil
}

func (r *MemoryRepository) SetAvailability(_ context.Context, doctorID string, start, end time.Time) (*models.Availability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[doctorID]; !ok {
		return nil, notFound("doctor")
	}
	now := r.now()
	for i := range r.availabilities {
		a := &r.availabilities[i]
		if a.DoctorID == doctorID && a.Status == models.AvailabilityAvailable {
			a.Status = models.AvailabilityInactive
			a.UpdatedAt = now
		}
	}
	a := models.Availability{
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		Status:    models.AvailabilityAvailable,
	}
	r.stamp(&a.BaseModel)
	r.availabilities = append(r.availabilities, a)
	return &a, nil
}

func (r *MemoryRepository) ActiveAvailability(_ context.Context, doctorID string) (*models.Availability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.availabilities) - 1; i >= 0; i-- {
		a := r.availabilities[i]
		if a.DoctorID == doctorID && a.Status == models.AvailabilityAvailable {
			return &a, nil
		}
	}
	return nil, notFound("availability")
}

func (r *MemoryRepository) ScheduledAppointments(_ context.Context, doctorID string, from, to time.Time) ([]models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Appointment{}
	for _, a := range r.appointments {
		if a.DoctorID != doctorID || a.Status != models.StatusScheduled {
			continue
		}
		if a.StartTime.Before(to) && a.EndTime.After(from) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *MemoryRepository) HasOverlap(_ context.Context, doctorID string, start, end time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overlapLocked(doctorID, start, end), nil
}

func (r *MemoryRepository) overlapLocked(doctorID string, start, end time.Time) bool {
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Status == models.StatusScheduled &&
			scheduling.Overlaps(start, end, a.StartTime, a.EndTime) {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) BookAppointment(_ context.Context, appt *models.Appointment, cost int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	patient, ok := r.users[appt.PatientID]
	if !ok {
		return notFound("patient")
	}
	if _, ok := r.users[appt.DoctorID]; !ok {
		return notFound("doctor")
	}
	if r.overlapLocked(appt.DoctorID, appt.StartTime, appt.EndTime) {
		return apperr.ErrSlotUnavailable
	}
	if patient.Credits < cost {
		return insufficientCredits(patient.Credits, cost)
	}

	if appt.Status == "" {
		appt.Status = models.StatusScheduled
	}
	r.stamp(&appt.BaseModel)
	if cost > 0 {
		id := appt.ID
		r.transferLocked(TransferRequest{
			FromUserID:    appt.PatientID,
			ToUserID:      appt.DoctorID,
			Amount:        cost,
			Type:          models.TxAppointmentDeduction,
			AppointmentID: &id,
		})
	}
	stored := *appt
	stored.Patient, stored.Doctor = nil, nil
	r.appointments[appt.ID] = &stored
	return nil
}

func (r *MemoryRepository) FindAppointment(_ context.Context, id string) (*models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, notFound("appointment")
	}
	out := *a
	if p, ok := r.users[a.PatientID]; ok {
		patient := *p
		out.Patient = &patient
	}
	if d, ok := r.users[a.DoctorID]; ok {
		doctor := *d
		out.Doctor = &doctor
	}
	return &out, nil
}

func (r *MemoryRepository) ListAppointmentsForUser(_ context.Context, userID string) ([]models.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Appointment{}
	for _, a := range r.appointments {
		if a.IsParticipant(userID) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *MemoryRepository) SetVideoSession(_ context.Context, appointmentID, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[appointmentID]
	if !ok {
		return false, notFound("appointment")
	}
	if a.VideoSessionID != nil {
		return false, nil
	}
	a.VideoSessionID = &sessionID
	a.UpdatedAt = r.now()
	return true, nil
}

func (r *MemoryRepository) SaveVideoToken(_ context.Context, appointmentID, participantID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[appointmentID]
	if !ok {
		return notFound("appointment")
	}
	switch participantID {
	case a.PatientID:
		a.PatientVideoToken = &token
	case a.DoctorID:
		a.DoctorVideoToken = &token
	default:
		return notFound("appointment participant")
	}
	a.UpdatedAt = r.now()
	return nil
}

func (r *MemoryRepository) Transfer(_ context.Context, t TransferRequest) error {
	if err := validateTransfer(t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	from, ok := r.users[t.FromUserID]
	if !ok {
		return notFound("user")
	}
	if _, ok := r.users[t.ToUserID]; !ok {
		return notFound("user")
	}
	if from.Credits < t.Amount {
		return insufficientCredits(from.Credits, t.Amount)
	}
	r.transferLocked(t)
	return nil
}

// transferLocked applies a validated transfer. Callers hold r.mu and have
// checked the balance.
func (r *MemoryRepository) transferLocked(t TransferRequest) {
	now := r.now()
	r.users[t.FromUserID].Credits -= t.Amount
	r.users[t.FromUserID].UpdatedAt = now
	r.users[t.ToUserID].Credits += t.Amount
	r.users[t.ToUserID].UpdatedAt = now
	r.appendTransactionLocked(t.FromUserID, -t.Amount, t.Type, t.AppointmentID)
	r.appendTransactionLocked(t.ToUserID, t.Amount, t.Type, t.AppointmentID)
}

func (r *MemoryRepository) appendTransactionLocked(userID string, amount int64, typ models.TransactionType, appointmentID *string) {
	tx := models.CreditTransaction{
		UserID:        userID,
		Amount:        amount,
		Type:          typ,
		AppointmentID: appointmentID,
	}
	r.stamp(&tx.BaseModel)
	r.transactions = append(r.transactions, tx)
}

func (r *MemoryRepository) ListTransactions(_ context.Context, userID string) ([]models.CreditTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.CreditTransaction{}
	for i := len(r.transactions) - 1; i >= 0; i-- {
		if r.transactions[i].UserID == userID {
			out = append(out, r.transactions[i])
		}
	}
	return out, nil
}

func (r *MemoryRepository) SumEarnedCredits(_ context.Context, userID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, tx := range r.transactions {
		if tx.UserID == userID && tx.Amount > 0 {
			total += tx.Amount
		}
	}
	return total, nil
}

func (r *MemoryRepository) RequestPayout(_ context.Context, doctorID, destination string) (*models.Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doctor, ok := r.users[doctorID]
	if !ok {
		return nil, notFound("doctor")
	}
	for _, p := range r.payouts {
		if p.DoctorID == doctorID && p.Status == models.PayoutProcessing {
			return nil, apperr.ErrPendingPayoutExists
		}
	}
	if doctor.Credits < 1 {
		return nil, apperr.ErrNoCredits
	}

	payout := models.NewPayout(doctorID, destination, doctor.Credits)
	r.stamp(&payout.BaseModel)
	r.payouts = append(r.payouts, *payout)

	r.appendTransactionLocked(doctorID, -doctor.Credits, models.TxPayoutReservation, nil)
	doctor.Credits = 0
	doctor.UpdatedAt = r.now()
	return payout, nil
}

func (r *MemoryRepository) ListPayouts(_ context.Context, doctorID string) ([]models.Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Payout{}
	for i := len(r.payouts) - 1; i >= 0; i-- {
		if r.payouts[i].DoctorID == doctorID {
			out = append(out, r.payouts[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) SumPayoutCredits(_ context.Context, doctorID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total int64
	for _, p := range r.payouts {
		if p.DoctorID == doctorID && (p.Status == models.PayoutProcessing || p.Status == models.PayoutProcessed) {
			total += p.Credits
		}
	}
	return total, nil
}

func sortByStart(appts []models.Appointment) {
	sort.Slice(appts, func(i, j int) bool { return appts[i].StartTime.Before(appts[j].StartTime) })
}

var _ Repository = (*MemoryRepository)(nil)
