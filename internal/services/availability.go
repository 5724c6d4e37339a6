package services

import (
	"context"
	"errors"
	"time"

	"telehealth-server/internal/apperr"
	"telehealth-server/internal/models"
	"telehealth-server/internal/scheduling"
)

// AvailabilityService manages a doctor's recurring daily window.
type AvailabilityService struct {
	deps Deps
}

func NewAvailabilityService(deps Deps) *AvailabilityService {
	return &AvailabilityService{deps: deps.withDefaults()}
}

// SetAvailability replaces the calling doctor's window. Only the clock part
// of start and end is used.
func (s *AvailabilityService) SetAvailability(ctx context.Context, callerID string, start, end time.Time) (*models.Availability, error) {
	ctx, span := tracer.Start(ctx, "availability.set")
	defer span.End()

	doctor, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, fail(span, err)
	}
	if err := requireRole(doctor, models.RoleDoctor, "only doctors can set availability"); err != nil {
		return nil, fail(span, err)
	}
	if !scheduling.ValidWindow(scheduling.Window{Start: start, End: end}, s.deps.Location) {
		return nil, fail(span, apperr.New(apperr.KindValidation, "start time must be before end time"))
	}

	a, err := s.deps.Repo.SetAvailability(ctx, doctor.ID, start, end)
	if err != nil {
		return nil, fail(span, err)
	}
	s.deps.Logger.Info("availability updated", "doctor_id", doctor.ID,
		"start", start.In(s.deps.Location).Format("15:04"), "end", end.In(s.deps.Location).Format("15:04"))
	return a, nil
}

// GetAvailability returns the calling doctor's active window.
func (s *AvailabilityService) GetAvailability(ctx context.Context, callerID string) (*models.Availability, error) {
	doctor, err := resolveCaller(ctx, s.deps.Repo, callerID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(doctor, models.RoleDoctor, "only doctors have availability"); err != nil {
		return nil, err
	}
	a, err := s.deps.Repo.ActiveAvailability(ctx, doctor.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotConfigured, "availability has not been set")
	}
	return a, err
}
