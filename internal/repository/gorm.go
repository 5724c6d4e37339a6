package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/models"
)

// Overlap against existing [start_time, end_time): the candidate start falls
// inside, the candidate end falls inside, or the candidate contains it.
const overlapCondition = "doctor_id = ? AND status = ? AND (" +
	"(start_time <= ? AND end_time > ?) OR " +
	"(start_time < ? AND end_time >= ?) OR " +
	"(start_time >= ? AND end_time <= ?))"

func overlapArgs(doctorID string, start, end time.Time) []any {
	return []any{doctorID, models.StatusScheduled, start, start, end, end, start, end}
}

// GormRepository stores everything through gorm. Multi-step writes run in a
// transaction that locks the affected user rows in ascending id order and is
// retried on deadlocks and serialization failures.
type GormRepository struct {
	db         *gorm.DB
	maxRetries int
}

// NewGormRepository wraps an open gorm handle.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db, maxRetries: defaultMaxRetries}
}

func (r *GormRepository) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryable(err) || attempt >= r.maxRetries {
			break
		}
		if waitErr := backoff(ctx, attempt); waitErr != nil {
			return waitErr
		}
	}
	return err
}

// lockUsers takes row locks on the given users in ascending id order.
func lockUsers(tx *gorm.DB, ids ...string) (map[string]*models.User, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	locked := make(map[string]*models.User, len(sorted))
	for _, id := range sorted {
		if _, done := locked[id]; done {
			continue
		}
		var u models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&u, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		if err != nil {
			return nil, fmt.Errorf("repository: lock user: %w", err)
		}
		locked[id] = &u
	}
	return locked, nil
}

// moveCredits debits and credits balances and appends the two ledger rows.
// The debit is conditional on the balance so a negative balance can never be
// written even if the caller skipped its own check.
func moveCredits(tx *gorm.DB, t TransferRequest) error {
	debit := tx.Model(&models.User{}).
		Where("id = ? AND credits >= ?", t.FromUserID, t.Amount).
		Update("credits", gorm.Expr("credits - ?", t.Amount))
	if debit.Error != nil {
		return fmt.Errorf("repository: debit credits: %w", debit.Error)
	}
	if debit.RowsAffected == 0 {
		return apperr.ErrInsufficientCredits
	}

	credit := tx.Model(&models.User{}).
		Where("id = ?", t.ToUserID).
		Update("credits", gorm.Expr("credits + ?", t.Amount))
	if credit.Error != nil {
		return fmt.Errorf("repository: credit credits: %w", credit.Error)
	}
	if credit.RowsAffected == 0 {
		return notFound("user")
	}

	rows := []models.CreditTransaction{
		{UserID: t.FromUserID, Amount: -t.Amount, Type: t.Type, AppointmentID: t.AppointmentID},
		{UserID: t.ToUserID, Amount: t.Amount, Type: t.Type, AppointmentID: t.AppointmentID},
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("repository: append ledger rows: %w", err)
	}
	return nil
}

func (r *GormRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Credits < 0 {
		return apperr.New(apperr.KindValidation, "credits cannot be negative")
	}
	err := r.db.WithContext(ctx).Create(user).Error
	if isUniqueViolation(err) {
		return apperr.Newf(apperr.KindValidation, "user with external id %q already exists", user.ExternalID)
	}
	if err != nil {
		return fmt.Errorf("repository: create user: %w", err)
	}
	return nil
}

func (r *GormRepository) findUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find user: %w", err)
	}
	return &u, nil
}

func (r *GormRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return r.findUser(ctx, "id = ?", id)
}

func (r *GormRepository) FindUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return r.findUser(ctx, "external_id = ?", externalID)
}

func (r *GormRepository) ListVerifiedDoctors(ctx context.Context, specialty string) ([]models.User, error) {
	q := r.db.WithContext(ctx).
		Where("role = ? AND verification_status = ?", models.RoleDoctor, models.VerificationVerified)
	if specialty != "" {
		q = q.Where("LOWER(specialty) = LOWER(?)", specialty)
	}
	doctors := []models.User{}
	if err := q.Order("name ASC").Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("repository: list doctors: %w", err)
	}
	return doctors, nil
}

func (r *GormRepository) SetAvailability(ctx context.Context, doctorID string, start, end time.Time) (*models.Availability, error) {
	a := &models.Availability{
		DoctorID:  doctorID,
		StartTime: start,
		EndTime:   end,
		Status:    models.AvailabilityAvailable,
	}
	err := r.transaction(ctx, func(tx *gorm.DB) error {
		if _, err := lockUsers(tx, doctorID); err != nil {
			return err
		}
		err := tx.Model(&models.Availability{}).
			Where("doctor_id = ? AND status = ?", doctorID, models.AvailabilityAvailable).
			Update("status", models.AvailabilityInactive).Error
		if err != nil {
			return fmt.Errorf("repository: deactivate availability: %w", err)
		}
		a.ID = ""
		if err := tx.Create(a).Error; err != nil {
			return fmt.Errorf("repository: create availability: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *GormRepository) ActiveAvailability(ctx context.Context, doctorID string) (*models.Availability, error) {
	var a models.Availability
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND status = ?", doctorID, models.AvailabilityAvailable).
		Order("updated_at DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("availability")
	}
	if err != nil {
		return nil, fmt.Errorf("repository: active availability: %w", err)
	}
	return &a, nil
}

func (r *GormRepository) ScheduledAppointments(ctx context.Context, doctorID string, from, to time.Time) ([]models.Appointment, error) {
	appts := []models.Appointment{}
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND status = ?", doctorID, models.StatusScheduled).
		Where("start_time < ? AND end_time > ?", to, from).
		Order("start_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("repository: scheduled appointments: %w", err)
	}
	return appts, nil
}

func countOverlaps(tx *gorm.DB, doctorID string, start, end time.Time) (int64, error) {
	var n int64
	err := tx.Model(&models.Appointment{}).
		Where(overlapCondition, overlapArgs(doctorID, start, end)...).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("repository: overlap check: %w", err)
	}
	return n, nil
}

func (r *GormRepository) HasOverlap(ctx context.Context, doctorID string, start, end time.Time) (bool, error) {
	n, err := countOverlaps(r.db.WithContext(ctx), doctorID, start, end)
	return n > 0, err
}

func (r *GormRepository) BookAppointment(ctx context.Context, appt *models.Appointment, cost int64) error {
	if appt.Status == "" {
		appt.Status = models.StatusScheduled
	}
	return r.transaction(ctx, func(tx *gorm.DB) error {
		// The doctor row lock serialises bookings per doctor, so the overlap
		// re-check and the insert below cannot interleave with another booking.
		users, err := lockUsers(tx, appt.PatientID, appt.DoctorID)
		if err != nil {
			return err
		}
		n, err := countOverlaps(tx, appt.DoctorID, appt.StartTime, appt.EndTime)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrSlotUnavailable
		}
		if patient := users[appt.PatientID]; patient.Credits < cost {
			return insufficientCredits(patient.Credits, cost)
		}

		appt.ID = ""
		if err := tx.Omit(clause.Associations).Create(appt).Error; err != nil {
			return fmt.Errorf("repository: create appointment: %w", err)
		}
		if cost == 0 {
			return nil
		}
		id := appt.ID
		return moveCredits(tx, TransferRequest{
			FromUserID:    appt.PatientID,
			ToUserID:      appt.DoctorID,
			Amount:        cost,
			Type:          models.TxAppointmentDeduction,
			AppointmentID: &id,
		})
	})
}

func (r *GormRepository) FindAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	var a models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("appointment")
	}
	if err != nil {
		return nil, fmt.Errorf("repository: find appointment: %w", err)
	}
	return &a, nil
}

func (r *GormRepository) ListAppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	appts := []models.Appointment{}
	err := r.db.WithContext(ctx).
		Where("patient_id = ? OR doctor_id = ?", userID, userID).
		Order("start_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list appointments: %w", err)
	}
	return appts, nil
}

func (r *GormRepository) SetVideoSession(ctx context.Context, appointmentID, sessionID string) (bool, error) {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Appointment{}).
		Where("id = ? AND video_session_id IS NULL", appointmentID).
		Update("video_session_id", sessionID)
	if res.Error != nil {
		return false, fmt.Errorf("repository: set video session: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var n int64
	if err := db.Model(&models.Appointment{}).Where("id = ?", appointmentID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("repository: set video session: %w", err)
	}
	if n == 0 {
		return false, notFound("appointment")
	}
	return false, nil
}

// SaveVideoToken stores token in the column of whichever side of the
// appointment participantID is.
func (r *GormRepository) SaveVideoToken(ctx context.Context, appointmentID, participantID, token string) error {
	db := r.db.WithContext(ctx)
	columns := []struct{ owner, column string }{
		{"patient_id", "patient_video_token"},
		{"doctor_id", "doctor_video_token"},
	}
	for _, c := range columns {
		res := db.Model(&models.Appointment{}).
			Where("id = ? AND "+c.owner+" = ?", appointmentID, participantID).
			Update(c.column, token)
		if res.Error != nil {
			return fmt.Errorf("repository: save video token: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return notFound("appointment participant")
}

func (r *GormRepository) Transfer(ctx context.Context, t TransferRequest) error {
	if err := validateTransfer(t); err != nil {
		return err
	}
	return r.transaction(ctx, func(tx *gorm.DB) error {
		users, err := lockUsers(tx, t.FromUserID, t.ToUserID)
		if err != nil {
			return err
		}
		if from := users[t.FromUserID]; from.Credits < t.Amount {
			return insufficientCredits(from.Credits, t.Amount)
		}
		return moveCredits(tx, t)
	})
}

func (r *GormRepository) ListTransactions(ctx context.Context, userID string) ([]models.CreditTransaction, error) {
	txs := []models.CreditTransaction{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&txs).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list transactions: %w", err)
	}
	return txs, nil
}

func (r *GormRepository) SumEarnedCredits(ctx context.Context, userID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.CreditTransaction{}).
		Where("user_id = ? AND amount > 0", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("repository: sum earned credits: %w", err)
	}
	return total, nil
}

func (r *GormRepository) RequestPayout(ctx context.Context, doctorID, destination string) (*models.Payout, error) {
	var payout *models.Payout
	err := r.transaction(ctx, func(tx *gorm.DB) error {
		users, err := lockUsers(tx, doctorID)
		if err != nil {
			return err
		}
		doctor := users[doctorID]

		var pending int64
		err = tx.Model(&models.Payout{}).
			Where("doctor_id = ? AND status = ?", doctorID, models.PayoutProcessing).
			Count(&pending).Error
		if err != nil {
			return fmt.Errorf("repository: pending payout check: %w", err)
		}
		if pending > 0 {
			return apperr.ErrPendingPayoutExists
		}
		if doctor.Credits < 1 {
			return apperr.ErrNoCredits
		}

		payout = models.NewPayout(doctorID, destination, doctor.Credits)
		if err := tx.Create(payout).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.ErrPendingPayoutExists
			}
			return fmt.Errorf("repository: create payout: %w", err)
		}

		res := tx.Model(&models.User{}).
			Where("id = ? AND credits = ?", doctorID, doctor.Credits).
			Update("credits", 0)
		if res.Error != nil {
			return fmt.Errorf("repository: reserve payout credits: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.New(apperr.KindLedgerFailure, "balance changed while reserving payout credits")
		}
		reservation := models.CreditTransaction{
			UserID: doctorID,
			Amount: -doctor.Credits,
			Type:   models.TxPayoutReservation,
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return fmt.Errorf("repository: append reservation row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

func (r *GormRepository) ListPayouts(ctx context.Context, doctorID string) ([]models.Payout, error) {
	payouts := []models.Payout{}
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("created_at DESC").
		Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("repository: list payouts: %w", err)
	}
	return payouts, nil
}

func (r *GormRepository) SumPayoutCredits(ctx context.Context, doctorID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.Payout{}).
		Where("doctor_id = ? AND status IN ?", doctorID, []models.PayoutStatus{models.PayoutProcessing, models.PayoutProcessed}).
		Select("COALESCE(SUM(credits), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("repository: sum payout credits: %w", err)
	}
	return total, nil
}

var _ Repository = (*GormRepository)(nil)
