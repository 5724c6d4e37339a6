package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/events"
	"telehealth-server/internal/metrics"
	"telehealth-server/internal/models"
	"telehealth-server/internal/scheduling"
	"telehealth-server/internal/video"
)

const (
	// JoinWindow is how long before the start participants may join.
	JoinWindow = 30 * time.Minute
	// TokenGrace is how long a join token outlives the appointment.
	TokenGrace = time.Hour
)

// BookingRequest is a patient's request for a doctor's time.
type BookingRequest struct {
	DoctorID    string
	StartTime   time.Time
	EndTime     time.Time
	Description string
}

// JoinToken is what a participant needs to enter the video room.
type JoinToken struct {
	AppointmentID string    `json:"appointmentId"`
	SessionID     string    `json:"videoSessionId"`
	Token         string    `json:"token"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

type connectionData struct {
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
	UserID string      `json:"userId"`
}

// BookingService reserves slots, generates slot listings and issues video
// join tokens.
type BookingService struct {
	deps  Deps
	slots scheduling.Generator
}

// NewBookingService constructs a booking service.
func NewBookingService(deps Deps) *BookingService {
	deps = deps.withDefaults()
	return &BookingService{deps: deps, slots: scheduling.NewGenerator(deps.Location)}
}

// BookAppointment reserves [StartTime, EndTime) with the doctor for the
// calling patient and charges models.BookingCost credits. The overlap check,
// the credit transfer and the insert commit together or not at all.
func (s *BookingService) BookAppointment(ctx context.Context, callerID string, req BookingRequest) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.book_appointment")
	defer span.End()
	span.SetAttributes(attribute.String("doctor.id", req.DoctorID))

	started := time.Now()
	appt, err := s.bookAppointment(ctx, callerID, req)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		outcome := metrics.OutcomeRejected
		if k := apperr.KindOf(err); k == apperr.KindInternal || k == apperr.KindLedgerFailure {
			outcome = metrics.OutcomeError
		}
		s.deps.Metrics.ObserveBooking(outcome, string(apperr.KindOf(err)), elapsed)
		return nil, fail(span, err)
	}
	s.deps.Metrics.ObserveBooking(metrics.OutcomeSuccess, "", elapsed)
	span.SetAttributes(attribute.String("appointment.id", appt.ID))
	return appt, nil
}

func (s *BookingService) bookAppointment(ctx context.Context, callerID string, req BookingRequest) (*models.Appointment, error) {
	patient, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(patient, models.RolePatient, "only patients can book appointments"); err != nil {
		return nil, err
	}

	doctor, err := s.bookableDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, apperr.New(apperr.KindValidation, "start and end time are required")
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, apperr.New(apperr.KindValidation, "start time must be before end time")
	}
	if req.StartTime.Before(s.deps.Now()) {
		return nil, apperr.New(apperr.KindValidation, "appointment cannot start in the past")
	}

	if patient.Credits < models.BookingCost {
		return nil, apperr.Newf(apperr.KindInsufficientCredits,
			"insufficient credits to book an appointment: %d required", models.BookingCost)
	}

	overlap, err := s.deps.Repo.HasOverlap(ctx, doctor.ID, req.StartTime, req.EndTime)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to check availability", err)
	}
	if overlap {
		return nil, apperr.ErrSlotUnavailable
	}

	// Provisioned before the transaction; a failure leaves the session absent
	// and ProvisionVideoSession can retry later.
	sessionID := s.createSession(ctx)

	appt := &models.Appointment{
		PatientID:      patient.ID,
		DoctorID:       doctor.ID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Status:         models.StatusScheduled,
		VideoSessionID: sessionID,
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		appt.PatientDescription = &desc
	}

	if err := s.deps.Repo.BookAppointment(ctx, appt, models.BookingCost); err != nil {
		return nil, ledgerError("failed to book appointment", err)
	}

	s.deps.Logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", doctor.ID,
		"patient_id", patient.ID,
		"start_time", appt.StartTime,
		"video_session", sessionID != nil,
	)
	publish(ctx, s.deps, events.AppointmentBooked, map[string]any{
		"appointmentId": appt.ID,
		"doctorId":      appt.DoctorID,
		"patientId":     appt.PatientID,
		"startTime":     appt.StartTime,
		"endTime":       appt.EndTime,
		"videoSession":  sessionID != nil,
	})
	return appt, nil
}

func (s *BookingService) bookableDoctor(ctx context.Context, doctorID string) (*models.User, error) {
	if doctorID == "" {
		return nil, apperr.New(apperr.KindValidation, "doctor id is required")
	}
	doctor, err := s.deps.Repo.FindUserByID(ctx, doctorID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "doctor not found or not verified")
	}
	if err != nil {
		return nil, err
	}
	if !doctor.IsBookableDoctor() {
		return nil, apperr.New(apperr.KindNotFound, "doctor not found or not verified")
	}
	return doctor, nil
}

func (s *BookingService) createSession(ctx context.Context) *string {
	id, err := s.deps.Video.CreateSession(ctx)
	if err != nil {
		s.deps.Metrics.ObserveVideoSession(metrics.OutcomeError)
		s.deps.Logger.Warn("video session creation failed, booking without session", "error", err)
		return nil
	}
	s.deps.Metrics.ObserveVideoSession(metrics.OutcomeSuccess)
	return &id
}

// GetAvailableSlots lists the doctor's free slots for the next
// scheduling.DefaultHorizonDays days, today included.
func (s *BookingService) GetAvailableSlots(ctx context.Context, doctorID string) ([]scheduling.DaySlots, error) {
	ctx, span := tracer.Start(ctx, "booking.available_slots")
	defer span.End()
	span.SetAttributes(attribute.String("doctor.id", doctorID))

	doctor, err := s.bookableDoctor(ctx, doctorID)
	if err != nil {
		return nil, fail(span, err)
	}

	availability, err := s.deps.Repo.ActiveAvailability(ctx, doctor.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fail(span, apperr.New(apperr.KindNotConfigured, "doctor has not set availability"))
	}
	if err != nil {
		return nil, fail(span, err)
	}

	now := s.deps.Now()
	from, to := s.slots.Horizon(now)
	appts, err := s.deps.Repo.ScheduledAppointments(ctx, doctor.ID, from, to)
	if err != nil {
		return nil, fail(span, err)
	}
	booked := make([]scheduling.Interval, 0, len(appts))
	for _, a := range appts {
		booked = append(booked, scheduling.Interval{Start: a.StartTime, End: a.EndTime})
	}

	window := scheduling.Window{Start: availability.StartTime, End: availability.EndTime}
	return s.slots.Generate(window, booked, now), nil
}

// ListAppointments returns the caller's appointments from either side.
func (s *BookingService) ListAppointments(ctx context.Context, callerID string) ([]models.Appointment, error) {
	user, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, err
	}
	return s.deps.Repo.ListAppointmentsForUser(ctx, user.ID)
}

// participantAppointment loads an appointment the caller takes part in.
func (s *BookingService) participantAppointment(ctx context.Context, callerID, appointmentID string) (*models.User, *models.Appointment, error) {
	caller, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, nil, err
	}
	appt, err := s.deps.Repo.FindAppointment(ctx, appointmentID)
	if err != nil {
		return nil, nil, err
	}
	if !appt.IsParticipant(caller.ID) {
		return nil, nil, apperr.New(apperr.KindUnauthorized, "you are not authorized to join this call")
	}
	if appt.Status != models.StatusScheduled {
		return nil, nil, apperr.New(apperr.KindNotScheduled, "this appointment is not currently scheduled")
	}
	return caller, appt.WithoutParticipants(), nil
}

// GenerateJoinToken issues a publisher token for the caller. Joining opens
// JoinWindow before the start and closes at the end; the token stays valid
// until TokenGrace after the end.
func (s *BookingService) GenerateJoinToken(ctx context.Context, callerID, appointmentID string) (*JoinToken, error) {
	ctx, span := tracer.Start(ctx, "booking.generate_join_token")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", appointmentID))

	token, err := s.generateJoinToken(ctx, callerID, appointmentID)
	if err != nil {
		outcome := metrics.OutcomeRejected
		if k := apperr.KindOf(err); k == apperr.KindInternal || k == apperr.KindVideoProvider {
			outcome = metrics.OutcomeError
		}
		s.deps.Metrics.ObserveJoinToken(outcome, string(apperr.KindOf(err)))
		return nil, fail(span, err)
	}
	s.deps.Metrics.ObserveJoinToken(metrics.OutcomeSuccess, "")
	return token, nil
}

func (s *BookingService) generateJoinToken(ctx context.Context, callerID, appointmentID string) (*JoinToken, error) {
	caller, appt, err := s.participantAppointment(ctx, callerID, appointmentID)
	if err != nil {
		return nil, err
	}

	now := s.deps.Now()
	if now.Before(appt.StartTime.Add(-JoinWindow)) {
		return nil, apperr.New(apperr.KindTooEarly,
			"the call will be available 30 minutes before the scheduled time")
	}
	if now.After(appt.EndTime) {
		return nil, apperr.ErrAppointmentEnded
	}
	if !appt.HasVideoSession() {
		return nil, apperr.New(apperr.KindVideoUnavailable, "video session not available for this appointment")
	}

	expires := appt.EndTime.Add(TokenGrace)
	result := &JoinToken{AppointmentID: appt.ID, SessionID: *appt.VideoSessionID, ExpiresAt: expires}

	if cached, ok := s.deps.Tokens.Get(ctx, appt.ID, caller.ID); ok {
		result.Token = cached
		return result, nil
	}
	// The session and expiry never change once set, so a stored token stays
	// valid for as long as joining is allowed.
	if stored := appt.VideoTokenFor(caller.ID); stored != nil {
		s.deps.Tokens.Put(ctx, appt.ID, caller.ID, *stored, expires.Sub(now))
		result.Token = *stored
		return result, nil
	}

	data, err := json.Marshal(connectionData{Name: caller.Name, Role: caller.Role, UserID: caller.ID})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to encode connection data", err)
	}
	token, err := s.deps.Video.GenerateToken(*appt.VideoSessionID, video.TokenOptions{
		Role:       video.RolePublisher,
		ExpireTime: expires,
		Data:       string(data),
	})
	if errors.Is(err, video.ErrDisabled) {
		return nil, apperr.Wrap(apperr.KindVideoUnavailable, "video service is not configured", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindVideoProvider, "failed to generate video token", err)
	}

	if err := s.deps.Repo.SaveVideoToken(ctx, appt.ID, caller.ID, token); err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to store video token", err)
	}
	s.deps.Tokens.Put(ctx, appt.ID, caller.ID, token, expires.Sub(now))

	s.deps.Logger.Info("join token issued", "appointment_id", appt.ID, "user_id", caller.ID)
	result.Token = token
	return result, nil
}

// ProvisionVideoSession creates the video session for an appointment booked
// while the provider was unavailable. Concurrent calls end with one session.
func (s *BookingService) ProvisionVideoSession(ctx context.Context, callerID, appointmentID string) (*models.Appointment, error) {
	ctx, span := tracer.Start(ctx, "booking.provision_video_session")
	defer span.End()
	span.SetAttributes(attribute.String("appointment.id", appointmentID))

	_, appt, err := s.participantAppointment(ctx, callerID, appointmentID)
	if err != nil {
		return nil, fail(span, err)
	}
	if appt.HasVideoSession() {
		return appt, nil
	}
	if s.deps.Now().After(appt.EndTime) {
		return nil, fail(span, apperr.ErrAppointmentEnded)
	}

	sessionID, err := s.deps.Video.CreateSession(ctx)
	if errors.Is(err, video.ErrDisabled) {
		s.deps.Metrics.ObserveVideoSession(metrics.OutcomeError)
		return nil, fail(span, apperr.Wrap(apperr.KindVideoUnavailable, "video service is not configured", err))
	}
	if err != nil {
		s.deps.Metrics.ObserveVideoSession(metrics.OutcomeError)
		return nil, fail(span, apperr.Wrap(apperr.KindVideoProvider, "failed to create video session", err))
	}
	s.deps.Metrics.ObserveVideoSession(metrics.OutcomeSuccess)

	stored, err := s.deps.Repo.SetVideoSession(ctx, appt.ID, sessionID)
	if err != nil {
		return nil, fail(span, err)
	}
	if !stored {
		// Another request stored its session first; keep that one.
		s.deps.Logger.Info("video session already provisioned", "appointment_id", appt.ID)
		current, err := s.deps.Repo.FindAppointment(ctx, appt.ID)
		if err != nil {
			return nil, fail(span, err)
		}
		return current.WithoutParticipants(), nil
	}
	appt.VideoSessionID = &sessionID
	s.deps.Logger.Info("video session provisioned", "appointment_id", appt.ID)
	return appt, nil
}
